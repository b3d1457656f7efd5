package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/cartledger/internal/data/db"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/observability"
	"github.com/yungbote/cartledger/internal/platform/envutil"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

const (
	StoreGorm   = "gorm"
	StoreMemory = "memory"

	// ConfigEnv names the config file to load when no path is given.
	ConfigEnv = "CARTLEDGER_CONFIG"
	// DefaultConfigPath is tried when neither a path nor ConfigEnv is set.
	DefaultConfigPath = "cartledger.yaml"
)

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

type Config struct {
	LogMode      string                   `yaml:"log_mode"`
	Store        string                   `yaml:"store"`
	Database     db.Config                `yaml:"database"`
	DeletePolicy carts.DeletePolicy       `yaml:"delete_policy"`
	Otel         observability.OtelConfig `yaml:"otel"`
	Metrics      MetricsConfig            `yaml:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:      "development",
		Store:        StoreGorm,
		Database:     db.DefaultConfig(),
		DeletePolicy: carts.DeleteOrphan,
		Otel:         observability.OtelConfig{ServiceName: "cartledger", SampleRatio: 1},
		Metrics:      MetricsConfig{Enabled: true, Namespace: "cartledger"},
	}
}

// LoadConfig reads path (or $CARTLEDGER_CONFIG, or ./cartledger.yaml when
// present) over the defaults, then applies environment overrides. It returns
// the file actually read, or "" when running on defaults.
func LoadConfig(path string, log *logger.Logger) (Config, string, error) {
	cfg := DefaultConfig()
	path = resolveConfigPath(path, log)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, path, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, path, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv(log)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func resolveConfigPath(path string, log *logger.Logger) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if p := strings.TrimSpace(envutil.String(ConfigEnv, "", log)); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

func (c *Config) applyEnv(log *logger.Logger) {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode, log)
	c.Store = envutil.String("CARTLEDGER_STORE", c.Store, log)
	c.Database.Driver = envutil.String("CARTLEDGER_DB_DRIVER", c.Database.Driver, log)
	c.Database.DSN = envutil.String("CARTLEDGER_DB_DSN", c.Database.DSN, log)
	c.Database.LogLevel = envutil.String("CARTLEDGER_DB_LOG_LEVEL", c.Database.LogLevel, log)
	c.Database.MaxOpenConns = envutil.Int("CARTLEDGER_DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns, log)
	c.Database.AutoMigrate = envutil.Bool("CARTLEDGER_DB_AUTO_MIGRATE", c.Database.AutoMigrate, log)
	c.Database.SlowThreshold = envutil.Duration("CARTLEDGER_DB_SLOW_THRESHOLD", c.Database.SlowThreshold, log)
	c.DeletePolicy = carts.DeletePolicy(envutil.String("CARTLEDGER_DELETE_POLICY", string(c.DeletePolicy), log))
	c.Otel.Enabled = envutil.Bool("OTEL_ENABLED", c.Otel.Enabled, log)
	c.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Otel.Endpoint, log)
	c.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Otel.Insecure, log)
	c.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", c.Metrics.Enabled, log)
	c.Metrics.Addr = envutil.String("METRICS_ADDR", c.Metrics.Addr, log)
}

func (c *Config) applyDefaults() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreGorm
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.DeletePolicy == "" {
		c.DeletePolicy = carts.DeleteOrphan
	}
	if strings.TrimSpace(c.Metrics.Namespace) == "" {
		c.Metrics.Namespace = "cartledger"
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreGorm:
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, err)
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported store %q", c.Store))
	}
	if !c.DeletePolicy.Valid() {
		errs = append(errs, fmt.Errorf("unsupported delete policy %q", c.DeletePolicy))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
