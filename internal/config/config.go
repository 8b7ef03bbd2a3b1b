package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the priceaction tools.
type Config struct {
	Storage Storage      `yaml:"storage"`
	Server  Server       `yaml:"server"`
	Alpaca  Alpaca       `yaml:"alpaca"`
	Logging Logging      `yaml:"logging"`
	Data    Data         `yaml:"data"`
	Setting Setting      `yaml:"setting"`
	Gather  GatherConfig `yaml:"gather"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns the host:port the gRPC server listens on.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data selects the bar series a backtest runs over.
type Data struct {
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// TimeLayout is the layout of Data.From and Data.To, interpreted as UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Range parses From and To.
func (d Data) Range() (from, to time.Time, err error) {
	from, err = time.Parse(TimeLayout, d.From)
	if err != nil {
		return from, to, fmt.Errorf("parsing data.from %q: %w", d.From, err)
	}
	to, err = time.Parse(TimeLayout, d.To)
	if err != nil {
		return from, to, fmt.Errorf("parsing data.to %q: %w", d.To, err)
	}
	if !to.After(from) {
		return from, to, fmt.Errorf("data.to %q must be after data.from %q", d.To, d.From)
	}
	return from, to, nil
}

// GatherConfig controls the bar download job.
type GatherConfig struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxAttempts     int      `yaml:"max_attempts"`
	MaxWorkers      int      `yaml:"max_workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Path resolves the config file location: the flag value when set, then
// PRICEACTION_CONFIG, then the default location.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("PRICEACTION_CONFIG"); p != "" {
		return p
	}
	return "config/priceaction.yaml"
}

func (c *Config) applyDefaults() {
	c.Setting.applyDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Data.Interval == "" {
		c.Data.Interval = "15m"
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.Gather.RateLimitPerMin == 0 {
		c.Gather.RateLimitPerMin = 200
	}
	if c.Gather.MaxAttempts == 0 {
		c.Gather.MaxAttempts = 3
	}
	if c.Gather.MaxWorkers == 0 {
		c.Gather.MaxWorkers = 4
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("PRICEACTION_GRPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = port
		}
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
