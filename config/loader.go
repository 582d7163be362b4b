package config

// loader.go - configuration loading from a config file and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (TCPROBE_*)
//   3. Config file  (--config or TCPROBE_CONFIG; YAML, JSON or TOML)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ── Keys ─────────────────────────────────────────────────────────────
//
// Nested keys map to env vars with "." and "-" replaced by "_", e.g.
// log.max-size-mb → TCPROBE_LOG_MAX_SIZE_MB.

const (
	keyHost          = "host"
	keyPort          = "port"
	keyPorts         = "ports"
	keyLocalPort     = "local-port"
	keyTimeout       = "timeout"
	keyZeroIO        = "zero-io"
	keyVerbose       = "verbose"
	keyStats         = "stats"
	keyLogFormat     = "log.format"
	keyLogFile       = "log.file"
	keyLogMaxSizeMB  = "log.max-size-mb"
	keyLogMaxBackups = "log.max-backups"
)

var allKeys = []string{
	keyHost, keyPort, keyPorts, keyLocalPort, keyTimeout, keyZeroIO,
	keyVerbose, keyStats, keyLogFormat, keyLogFile, keyLogMaxSizeMB,
	keyLogMaxBackups,
}

// Load overlays the config file at path (if any) and then TCPROBE_*
// environment variables onto cfg.  Only keys that are actually set
// override existing values.  An empty path falls back to TCPROBE_CONFIG;
// with neither, no file is read.
func Load(cfg *Config, path string) error {
	v := newViper()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return fmt.Errorf("config file %s: not found", path)
			}
			return fmt.Errorf("read config %s: %w", path, err)
		}
		cfg.ConfigFile = v.ConfigFileUsed()
	}

	return apply(v, cfg)
}

// LoadFromEnv overlays environment variables onto cfg.  This should be
// called BEFORE CLI flag values are applied so that flags take
// precedence.
func LoadFromEnv(cfg *Config) error {
	return apply(newViper(), cfg)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys {
		// BindEnv makes env-only keys visible to IsSet.
		_ = v.BindEnv(k)
	}
	return v
}

// apply copies every set key from v onto cfg.
func apply(v *viper.Viper, cfg *Config) error {
	if v.IsSet(keyHost) {
		cfg.Host = v.GetString(keyHost)
	}
	if v.IsSet(keyPorts) {
		ranges, err := ParsePorts(splitList(v.GetStringSlice(keyPorts)))
		if err != nil {
			return fmt.Errorf("%s: %w", keyPorts, err)
		}
		cfg.Ports = ranges
		if len(ranges) > 0 {
			cfg.Port = ranges[0].Start
		}
	}
	if v.IsSet(keyPort) {
		pr, err := ParsePortSpec(v.GetString(keyPort))
		if err != nil {
			return fmt.Errorf("%s: %w", keyPort, err)
		}
		cfg.Port = pr.Start
		if len(cfg.Ports) == 0 {
			cfg.Ports = []PortRange{pr}
		}
	}
	if v.IsSet(keyLocalPort) {
		cfg.LocalPort = v.GetInt(keyLocalPort)
	}
	if v.IsSet(keyTimeout) {
		d, err := ParseTimeout(v.GetString(keyTimeout))
		if err != nil {
			return fmt.Errorf("%s: %w", keyTimeout, err)
		}
		cfg.Timeout = d
	}
	if v.IsSet(keyZeroIO) {
		cfg.ZeroIO = parseBool(v.GetString(keyZeroIO))
	}
	if v.IsSet(keyVerbose) {
		cfg.Verbose = v.GetInt(keyVerbose)
	}
	if v.IsSet(keyStats) {
		cfg.Stats = parseBool(v.GetString(keyStats))
	}
	if v.IsSet(keyLogFormat) {
		cfg.LogFormat = strings.ToLower(v.GetString(keyLogFormat))
	}
	if v.IsSet(keyLogFile) {
		cfg.LogFile = v.GetString(keyLogFile)
	}
	if v.IsSet(keyLogMaxSizeMB) {
		cfg.LogMaxSizeMB = v.GetInt(keyLogMaxSizeMB)
	}
	if v.IsSet(keyLogMaxBackups) {
		cfg.LogMaxBackups = v.GetInt(keyLogMaxBackups)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// parseBool accepts "1", "true", "yes", "on" (case-insensitive).
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// splitList flattens comma-separated entries so "20-25,80" and
// ["20-25", "80"] mean the same thing.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
