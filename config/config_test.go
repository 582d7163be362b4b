package config

import (
	"testing"
	"time"
)

// ── ParsePortSpec ────────────────────────────────────────────────────

func TestParsePortSpec(t *testing.T) {
	tests := []struct {
		input     string
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{"80", 80, 80, false},
		{"443", 443, 443, false},
		{"80-90", 80, 90, false},
		{"1-65535", 1, 65535, false},
		{"0", 0, 0, true},
		{"70000", 0, 0, true},
		{"abc", 0, 0, true},
		{"90-80", 0, 0, true}, // reversed range
		{"0-100", 0, 0, true}, // start below 1
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			pr, err := ParsePortSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePortSpec(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if pr.Start != tt.wantStart || pr.End != tt.wantEnd {
				t.Errorf("got {%d, %d}, want {%d, %d}", pr.Start, pr.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParsePorts(t *testing.T) {
	got, err := ParsePorts([]string{"22", " 20-21 ", "443"})
	if err != nil {
		t.Fatal(err)
	}
	want := []PortRange{{22, 22}, {20, 21}, {443, 443}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := ParsePorts([]string{"80", "x"}); err == nil {
		t.Error("expected error for bad entry")
	}
}

// ── PortRange ────────────────────────────────────────────────────────

func TestPortRangeExpand(t *testing.T) {
	pr := PortRange{Start: 20, End: 25}
	got := pr.Expand()
	want := []int{20, 21, 22, 23, 24, 25}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPortRangeString(t *testing.T) {
	if s := (PortRange{80, 80}).String(); s != "80" {
		t.Errorf("got %q", s)
	}
	if s := (PortRange{20, 25}).String(); s != "20-25" {
		t.Errorf("got %q", s)
	}
}

func TestAllPorts(t *testing.T) {
	cfg := Config{Port: 8080}
	if got := cfg.AllPorts(); len(got) != 1 || got[0] != 8080 {
		t.Errorf("fallback to Port: got %v", got)
	}

	cfg.Ports = []PortRange{{443, 443}, {20, 21}}
	got := cfg.AllPorts()
	if len(got) != 3 || got[0] != 443 || got[1] != 20 || got[2] != 21 {
		t.Errorf("got %v, want [443 20 21]", got)
	}
}

func TestScanning(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"single port", Config{Port: 80}, false},
		{"zero-io", Config{Port: 80, ZeroIO: true}, true},
		{"range", Config{Ports: []PortRange{{20, 21}}}, true},
		{"two specs", Config{Ports: []PortRange{{22, 22}, {80, 80}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Scanning(); got != tt.want {
				t.Errorf("Scanning() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ── Timeouts ─────────────────────────────────────────────────────────

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"1000", time.Second, false},
		{"250", 250 * time.Millisecond, false},
		{"1.5s", 1500 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{" 10ms ", 10 * time.Millisecond, false},
		{"0", 0, false},
		{"soon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeout(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeout(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEffectiveTimeout(t *testing.T) {
	if got := (&Config{Port: 80}).EffectiveTimeout(); got != DefaultConnTimeout {
		t.Errorf("connect default = %s", got)
	}
	if got := (&Config{Port: 80, ZeroIO: true}).EffectiveTimeout(); got != DefaultScanTimeout {
		t.Errorf("scan default = %s", got)
	}
	if got := (&Config{Port: 80, Timeout: time.Second}).EffectiveTimeout(); got != time.Second {
		t.Errorf("explicit = %s", got)
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid connect", Config{Host: "127.0.0.1", Port: 80}, false},
		{"valid ipv6", Config{Host: "::1", Port: 80}, false},
		{"valid scan", Config{Host: "10.0.0.1", Ports: []PortRange{{20, 25}}, ZeroIO: true}, false},
		{"valid source port", Config{Host: "10.0.0.1", Port: 80, LocalPort: 4000}, false},
		{"no host", Config{Port: 80}, true},
		{"hostname", Config{Host: "example.com", Port: 80}, true},
		{"no port", Config{Host: "127.0.0.1"}, true},
		{"negative timeout", Config{Host: "127.0.0.1", Port: 80, Timeout: -time.Second}, true},
		{"local port range", Config{Host: "127.0.0.1", Port: 80, LocalPort: 70000}, true},
		{"source port + scan", Config{Host: "127.0.0.1", Ports: []PortRange{{20, 21}}, LocalPort: 4000}, true},
		{"log format", Config{Host: "127.0.0.1", Port: 80, LogFormat: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.LogFormat != DefaultLogFormat {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.LogMaxSizeMB != DefaultLogMaxSizeMB || cfg.LogMaxBackups != DefaultLogMaxBackups {
		t.Errorf("rotation defaults = %d/%d", cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %s, want 0 (mode default)", cfg.Timeout)
	}
}
