package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ps2kbd/ps2"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSerial || cfg.Device != "/dev/ttyACM0" {
		t.Errorf("backend/device = %q %q", cfg.Backend, cfg.Device)
	}
	if cfg.Baud != 115200 || cfg.ReadTimeoutMs != 100 || cfg.ReplyTimeoutMs != 2000 {
		t.Errorf("serial defaults = %+v", cfg)
	}
	if cfg.Pins != DefaultPins {
		t.Errorf("pins = %+v", cfg.Pins)
	}
	if cfg.InhibitUs != ps2.DefaultInhibitMicros || cfg.EdgeTimeoutMs != 0 {
		t.Errorf("timing = %d %d", cfg.InhibitUs, cfg.EdgeTimeoutMs)
	}
	if cfg.Policy() != ps2.DefaultPolicy() {
		t.Errorf("policy = %+v", cfg.Policy())
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"backend": "rpio",
		"pins": {"clock": 17, "data": 27, "clock_pulldown": 22, "data_pulldown": 23},
		"validation": {"parity": 1},
		"edge_timeout_ms": 50,
		"inhibit_us": 150,
		"verbose": true
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device != "" {
		t.Errorf("local backend got a device default: %q", cfg.Device)
	}
	want := ps2.Pins{Clock: 17, Data: 27, ClockPulldown: 22, DataPulldown: 23}
	if cfg.PS2Pins() != want {
		t.Errorf("PS2Pins = %+v", cfg.PS2Pins())
	}
	p := cfg.Policy()
	if !p.ValidateStart || !p.ValidateStop || p.ValidateParity {
		t.Errorf("policy = %+v", p)
	}
	if cfg.EdgeTimeout() != 50*time.Millisecond || !cfg.Verbose {
		t.Errorf("edge timeout %v verbose %v", cfg.EdgeTimeout(), cfg.Verbose)
	}
	if n := len(cfg.LinkOptions()); n != 3 {
		t.Errorf("LinkOptions returned %d options, want 3", n)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"backend", `{"backend": "usb"}`, "unknown backend"},
		{"pins", `{"pins": {"clock": 1, "data": 1, "clock_pulldown": 2, "data_pulldown": 3}}`, "assigned twice"},
		{"flag", `{"validation": {"stop": 2}}`, "validation stop"},
		{"timeout", `{"edge_timeout_ms": -1}`, "negative"},
		{"inhibit", `{"inhibit_us": 40}`, "inhibit_us"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.json))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error = %v, want it to mention %q", tt.name, err, tt.want)
		}
	}
}

func TestParseBadJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"baud": "fast"}`)); err == nil {
		t.Error("type mismatch accepted")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ps2kbd.json")
	if err := os.WriteFile(path, []byte(`{"device": "/dev/ttyUSB1", "baud": 9600}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	sc := cfg.SerialConfig()
	if sc.Device != "/dev/ttyUSB1" || sc.Baud != 9600 || sc.ReadTimeout != 100 {
		t.Errorf("SerialConfig = %+v", sc)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}
