package core

import (
	"tcprobe/config"
	"tcprobe/deadline"
	"tcprobe/internal/capability"
	"tcprobe/internal/metrics"
	"tcprobe/internal/transport"
	"tcprobe/util"
)

// Build constructs the appropriate Mode from the given configuration.
// Metrics may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if cfg.Scanning() {
		return buildScan(cfg, logger, m)
	}
	return buildConnect(cfg, logger, m)
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	ap, err := util.ParseEndpoint(cfg.Host, cfg.Port)
	if err != nil {
		return nil, err
	}

	return &ConnectMode{
		Dialer:     buildDialer(cfg, logger, m),
		Capability: &capability.Relay{},
		Network:    "tcp",
		Address:    ap.String(),
		Logger:     logger,
		Metrics:    m,
	}, nil
}

func buildScan(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	ports := cfg.AllPorts()
	for _, p := range ports {
		if _, err := util.ParseEndpoint(cfg.Host, p); err != nil {
			return nil, err
		}
	}

	return &ScanMode{
		Dialer:  buildDialer(cfg, logger, m),
		Host:    cfg.Host,
		Ports:   ports,
		Timeout: cfg.EffectiveTimeout(),
		Logger:  logger,
		Verbose: cfg.Verbose,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the deadline-backed transport for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger, m *metrics.Collector) transport.Dialer {
	return &transport.TCPDialer{
		Connector: &deadline.Connector{
			LocalPort: cfg.LocalPort,
			Logger:    logger,
			Metrics:   m,
		},
		Timeout: cfg.EffectiveTimeout(),
	}
}
