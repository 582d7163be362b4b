// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"tcprobe/config"
	"tcprobe/internal/core"
	"tcprobe/internal/metrics"
	"tcprobe/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tcprobe/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Output streams, swapped out in tests.
var (
	stdout io.Writer = os.Stdout //nolint:gochecknoglobals
	stderr io.Writer = os.Stderr //nolint:gochecknoglobals
)

// Execute parses args and runs the appropriate tcprobe mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	fs := flag.NewFlagSet("tcprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── connection ───────────────────────────────────────────────
	var localPort int
	var timeout string
	var zeroIO bool
	fs.IntVarP(&localPort, "port", "p", 0, "Local source port")
	fs.StringVarP(&timeout, "timeout", "w", "", "Connect timeout (e.g. 1.5s, or milliseconds)")
	fs.BoolVarP(&zeroIO, "zero-io", "z", false, "Zero-I/O mode (port scanning)")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var stats bool
	var logFormat, logFile string
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&stats, "stats", false, "Print connect statistics to stderr on exit")
	fs.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log encoding: console or json")
	fs.StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stderr")

	// ── misc ─────────────────────────────────────────────────────
	var configPath string
	var dryRun, showVersion, showHelp bool
	fs.StringVar(&configPath, "config", "", "Config file (YAML, JSON or TOML)")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "tcprobe %s\n", version)
		return nil
	}

	// ── file + environment, then flags on top ────────────────────
	if err := config.Load(cfg, configPath); err != nil {
		return err
	}
	if fs.Changed("port") {
		cfg.LocalPort = localPort
	}
	if fs.Changed("timeout") {
		d, err := config.ParseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("-w: %w", err)
		}
		cfg.Timeout = d
	}
	if fs.Changed("zero-io") {
		cfg.ZeroIO = zeroIO
	}
	if fs.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if fs.Changed("stats") {
		cfg.Stats = stats
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if fs.Changed("log-file") {
		cfg.LogFile = logFile
	}
	cfg.DryRun = dryRun

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	m := metrics.New()
	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		describe(cfg)
		return nil
	}

	err = mode.Run(ctx)
	if cfg.Stats {
		printStats(stderr, m)
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

func newLogger(cfg *config.Config) *util.Logger {
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	logger.SetFormat(cfg.LogFormat)
	if cfg.LogFile != "" {
		logger.SetFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}
	return logger
}

// parsePositional reads "host port [port …]".  With no positional
// arguments the host and ports from the config file or environment are
// kept.
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) == 0 {
		return nil
	}
	cfg.Host = remaining[0]

	if len(remaining) < 2 {
		if cfg.Port == 0 {
			return fmt.Errorf("port required")
		}
		return nil
	}

	ranges, err := config.ParsePorts(remaining[1:])
	if err != nil {
		return err
	}
	cfg.Ports = ranges
	cfg.Port = ranges[0].Start
	return nil
}

// describe prints what a run would do without opening any socket.
func describe(cfg *config.Config) {
	mode := "connect"
	if cfg.Scanning() {
		mode = "scan"
	}
	fmt.Fprintf(stdout, "mode:     %s\n", mode)
	fmt.Fprintf(stdout, "target:   %s\n", cfg.Host)
	fmt.Fprintf(stdout, "ports:    %d\n", len(cfg.AllPorts()))
	fmt.Fprintf(stdout, "timeout:  %s\n", cfg.EffectiveTimeout())
	if cfg.LocalPort > 0 {
		fmt.Fprintf(stdout, "source:   :%d\n", cfg.LocalPort)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(stdout, "config:   %s\n", cfg.ConfigFile)
	}
}

// printStats writes the metrics snapshot, indented for a terminal and
// compact for pipes and files.
func printStats(w io.Writer, m *metrics.Collector) {
	fmt.Fprintln(w, statsText(m, isTerminal(w)))
}

func statsText(m *metrics.Collector, tty bool) string {
	if tty {
		return m.JSON()
	}
	return m.CompactJSON()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stderr, `tcprobe - deadline-bounded TCP connect and port probe v%s

Usage:
  tcprobe [options] <ip> <port>               Connect and relay stdin/stdout
  tcprobe -z [options] <ip> <ports...>        Probe ports

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(stderr, `
Examples:
  tcprobe -w 2s 192.0.2.10 80                 Connect within 2 seconds
  tcprobe -vz -w 500 10.0.0.5 20-25 80 443    Probe ports, 500ms each
  echo "hello" | tcprobe ::1 9000             Pipe data
  tcprobe --stats -z 127.0.0.1 22             Probe and print statistics

Environment:
  TCPROBE_HOST, TCPROBE_PORTS, TCPROBE_TIMEOUT, TCPROBE_LOG_FORMAT, ...
  TCPROBE_CONFIG names a config file when --config is not given.
`)
}
