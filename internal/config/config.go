// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type BackendConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"` // catalog reads
}

type CheckoutConfig struct {
	OrderTimeout        time.Duration `yaml:"order_timeout"`
	VerifyTimeout       time.Duration `yaml:"verify_timeout"`
	IdleTTL             time.Duration `yaml:"idle_ttl"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	MaxConcurrent       int           `yaml:"max_concurrent"`
	StartLimitPerMinute int           `yaml:"start_limit_per_minute"`
	Lang                string        `yaml:"lang"`
}

type SandboxConfig struct {
	Secret  string        `yaml:"secret"`
	Outcome string        `yaml:"outcome"` // success|failed|dismiss
	Delay   time.Duration `yaml:"delay"`
}

type GatewayConfig struct {
	Mode        string        `yaml:"mode"` // relay|sandbox
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	ThemeColor  string        `yaml:"theme_color"`
	Sandbox     SandboxConfig `yaml:"sandbox"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	EncryptionKey string        `yaml:"encryption_key"`
	JWTSecret     string        `yaml:"jwt_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Backend  BackendConfig  `yaml:"backend"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend.base_url is required")
	}
	if cfg.Security.JWTSecret == "" {
		if !dev {
			return nil, errors.New("security.jwt_secret is required")
		}
		cfg.Security.JWTSecret = "dev-only-secret"
	}
	switch cfg.Gateway.Mode {
	case "relay", "sandbox":
	default:
		return nil, fmt.Errorf("gateway.mode %q: want relay or sandbox", cfg.Gateway.Mode)
	}
	switch cfg.Gateway.Sandbox.Outcome {
	case "success", "failed", "dismiss":
	default:
		return nil, fmt.Errorf("gateway.sandbox.outcome %q: want success, failed or dismiss", cfg.Gateway.Sandbox.Outcome)
	}
	if k := cfg.Security.EncryptionKey; k != "" && len(k) != 32 {
		return nil, errors.New("security.encryption_key must be 32 bytes")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 15*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 10*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	cfg.Backend.Timeout = orDefault(cfg.Backend.Timeout, 10*time.Second)

	cfg.Checkout.OrderTimeout = orDefault(cfg.Checkout.OrderTimeout, 20*time.Second)
	cfg.Checkout.VerifyTimeout = orDefault(cfg.Checkout.VerifyTimeout, 30*time.Second)
	cfg.Checkout.IdleTTL = orDefault(cfg.Checkout.IdleTTL, 15*time.Minute)
	cfg.Checkout.SweepInterval = orDefault(cfg.Checkout.SweepInterval, time.Minute)
	if cfg.Checkout.MaxConcurrent <= 0 {
		cfg.Checkout.MaxConcurrent = 64
	}
	if cfg.Checkout.StartLimitPerMinute <= 0 {
		cfg.Checkout.StartLimitPerMinute = 5
	}
	if cfg.Checkout.Lang == "" {
		cfg.Checkout.Lang = "en"
	}

	if cfg.Gateway.Mode == "" {
		cfg.Gateway.Mode = "relay"
	}
	if cfg.Gateway.Name == "" {
		cfg.Gateway.Name = "FitCenter"
	}
	if cfg.Gateway.Sandbox.Outcome == "" {
		cfg.Gateway.Sandbox.Outcome = "success"
	}

	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.Security.SessionTTL = orDefault(cfg.Security.SessionTTL, 24*time.Hour)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
