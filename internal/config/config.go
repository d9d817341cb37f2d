// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine tunes the distance model and the solver.
type Engine struct {
	ReferencePowerDBM float64       `yaml:"reference_power_dbm"`
	PathLossExponent  float64       `yaml:"path_loss_exponent"`
	FallbackLat       float64       `yaml:"fallback_lat"`
	FallbackLon       float64       `yaml:"fallback_lon"`
	MinGateways       int           `yaml:"min_gateways"`
	MaxDistanceM      float64       `yaml:"max_distance_m"`
	PublishInterval   time.Duration `yaml:"publish_interval"`
}

// Calibration controls online refitting of the path-loss exponent.
type Calibration struct {
	Enabled     bool    `yaml:"enabled"`
	Window      int     `yaml:"window"`
	MinExponent float64 `yaml:"min_exponent"`
	MaxExponent float64 `yaml:"max_exponent"`
}

// Metadata points at the gateway and sensor catalogs.
type Metadata struct {
	SensorsCSV  string `yaml:"sensors_csv"`
	GatewaysCSV string `yaml:"gateways_csv"`
}

// Source describes the live reception feed.
type Source struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	QueueSize      int           `yaml:"queue_size"`
}

// Simulation tunes the synthetic feed.
type Simulation struct {
	Tick          time.Duration `yaml:"tick"`
	Exponent      float64       `yaml:"path_loss_exponent"`
	MobileSensors int           `yaml:"mobile_sensors"`
	RSSINoiseDB   float64       `yaml:"rssi_noise_db"`
	MaxRangeM     float64       `yaml:"max_range_m"`
	SpeedMinMPS   float64       `yaml:"speed_min_mps"`
	SpeedMaxMPS   float64       `yaml:"speed_max_mps"`
	Seed          int64         `yaml:"seed"`
}

// Admin configures the HTTP admin server. An empty Addr disables it.
type Admin struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the root locator configuration.
type Config struct {
	Engine      Engine      `yaml:"engine"`
	Calibration Calibration `yaml:"calibration"`
	Metadata    Metadata    `yaml:"metadata"`
	Source      Source      `yaml:"source"`
	Simulation  Simulation  `yaml:"simulation"`
	Admin       Admin       `yaml:"admin"`
	Logging     Logging     `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: Engine{
			ReferencePowerDBM: -40,
			PathLossExponent:  2,
			FallbackLat:       52.2394,
			FallbackLon:       6.8565,
			MinGateways:       3,
			PublishInterval:   time.Second,
		},
		Calibration: Calibration{
			Enabled:     true,
			MinExponent: 1,
			MaxExponent: 8,
		},
		Metadata: Metadata{
			SensorsCSV:  "data/sensor_locations.csv",
			GatewaysCSV: "data/gateway_locations.csv",
		},
		Source: Source{
			URL:            "ws://192.87.172.71:1337",
			ReconnectDelay: 5 * time.Second,
			QueueSize:      1024,
		},
		Simulation: Simulation{
			Tick:          time.Second,
			Exponent:      2.7,
			MobileSensors: 2,
			RSSINoiseDB:   2,
			MaxRangeM:     2000,
			SpeedMinMPS:   0.5,
			SpeedMaxMPS:   1.5,
			Seed:          1,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configPath onto Default. The file is validated against the CUE
// schema at cueSchemaPath first when one is given. An empty configPath yields
// the defaults. Environment overrides are applied last.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if cueSchemaPath != "" {
			if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
				return nil, err
			}
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", configPath, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LOCATOR_SOURCE_URL"); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv("PUBLISH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_INTERVAL: %w", err)
		}
		c.Engine.PublishInterval = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate applies the checks the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.MinGateways < 3 {
		errs = append(errs, fmt.Errorf("engine.min_gateways must be at least 3, got %d", c.Engine.MinGateways))
	}
	if c.Engine.PublishInterval <= 0 {
		errs = append(errs, errors.New("engine.publish_interval must be positive"))
	}
	if c.Engine.ReferencePowerDBM >= 0 {
		errs = append(errs, fmt.Errorf("engine.reference_power_dbm must be negative, got %g", c.Engine.ReferencePowerDBM))
	}
	if c.Engine.PathLossExponent <= 0 {
		errs = append(errs, errors.New("engine.path_loss_exponent must be positive"))
	}
	if c.Calibration.MinExponent >= c.Calibration.MaxExponent {
		errs = append(errs, fmt.Errorf("calibration.min_exponent (%g) must be below max_exponent (%g)",
			c.Calibration.MinExponent, c.Calibration.MaxExponent))
	}
	if c.Calibration.Window < 0 {
		errs = append(errs, errors.New("calibration.window must not be negative"))
	}
	if c.Source.ReconnectDelay < 0 {
		errs = append(errs, errors.New("source.reconnect_delay must not be negative"))
	}
	if c.Simulation.SpeedMaxMPS < c.Simulation.SpeedMinMPS {
		errs = append(errs, errors.New("simulation.speed_max_mps must not be below speed_min_mps"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}
