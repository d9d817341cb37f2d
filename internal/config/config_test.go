package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const schemaPath = "../../schemas/locator.cue"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locator.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
engine:
  path_loss_exponent: 2.5
  publish_interval: 250ms
calibration:
  window: 100
source:
  url: ws://localhost:1337
  reconnect_delay: 0s
admin:
  addr: ":9090"
  allowed_origins: ["http://localhost:3000"]
`)
	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Engine.PathLossExponent != 2.5 || cfg.Engine.PublishInterval != 250*time.Millisecond {
		t.Errorf("Unexpected engine data: %+v", cfg.Engine)
	}
	if cfg.Source.ReconnectDelay != 0 || cfg.Source.URL != "ws://localhost:1337" {
		t.Errorf("Unexpected source data: %+v", cfg.Source)
	}
	if cfg.Calibration.Window != 100 || !cfg.Calibration.Enabled {
		t.Errorf("Unexpected calibration data: %+v", cfg.Calibration)
	}
	// untouched sections keep their defaults
	if cfg.Engine.ReferencePowerDBM != -40 || cfg.Engine.FallbackLat != 52.2394 {
		t.Errorf("defaults lost: %+v", cfg.Engine)
	}
	if len(cfg.Admin.AllowedOrigins) != 1 {
		t.Errorf("Unexpected admin data: %+v", cfg.Admin)
	}
}

func TestLoadShippedConfig(t *testing.T) {
	if _, err := Load("../../config/locator.yaml", schemaPath); err != nil {
		t.Fatalf("shipped config rejected: %v", err)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "engine:\n  bogus: 1\n",
		"few gateways":     "engine:\n  min_gateways: 2\n",
		"bad duration":     "engine:\n  publish_interval: soon\n",
		"bad url scheme":   "source:\n  url: http://example.com\n",
		"bad log format":   "logging:\n  format: xml\n",
		"negative window":  "calibration:\n  window: -1\n",
		"positive p0 dbm":  "engine:\n  reference_power_dbm: 10\n",
		"wrong field type": "simulation:\n  mobile_sensors: many\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body), schemaPath); err == nil {
				t.Fatalf("expected schema error")
			}
		})
	}
}

func TestValidateSemanticChecks(t *testing.T) {
	cfg := Default()
	cfg.Calibration.MinExponent = 4
	cfg.Calibration.MaxExponent = 3
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "min_exponent") {
		t.Fatalf("expected exponent bound error, got %v", err)
	}

	for _, p0 := range []float64{0, 14} {
		cfg = Default()
		cfg.Engine.ReferencePowerDBM = p0
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "reference_power_dbm") {
			t.Fatalf("reference power %g: expected error, got %v", p0, err)
		}
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.PathLossExponent != 2 || cfg.Engine.MinGateways != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg.Engine)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOCATOR_SOURCE_URL", "ws://feed:1337")
	t.Setenv("PUBLISH_INTERVAL", "3s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.URL != "ws://feed:1337" || cfg.Engine.PublishInterval != 3*time.Second {
		t.Fatalf("env not applied: %+v %+v", cfg.Source, cfg.Engine)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging env not applied: %+v", cfg.Logging)
	}

	t.Setenv("PUBLISH_INTERVAL", "often")
	if _, err := Load("", ""); err == nil {
		t.Fatalf("expected invalid PUBLISH_INTERVAL error")
	}
}
