package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. NODEGRAPH_WORKERS.
const EnvPrefix = "NODEGRAPH_"

// Config holds all the settings an App needs. Zero values fall back to the
// defaults of DefaultConfig when loaded through LoadConfig.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Workers > 1 enables the parallel scheduler.
	Workers          int  `yaml:"workers"`
	PropagateBlocked bool `yaml:"propagate_blocked"`

	ReferenceDepth     int  `yaml:"reference_depth"`
	IncludeAllExecuted bool `yaml:"include_all_executed"`

	// HealthcheckPort serves /health, /results and /logs. 0 disables it.
	HealthcheckPort int `yaml:"healthcheck_port"`

	// EditorURL enables live result notifications over socket.io.
	EditorURL       string `yaml:"editor_url"`
	EditorNamespace string `yaml:"editor_namespace"`

	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	DBMaxRows     int           `yaml:"db_max_rows"`
	ScriptTimeout time.Duration `yaml:"script_timeout"`
}

// DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Workers:        1,
		ReferenceDepth: 3,
		HTTPTimeout:    30 * time.Second,
		DBMaxRows:      1000,
		ScriptTimeout:  5 * time.Minute,
	}
}

// LoadConfig reads the YAML file at path, when given, over the defaults and
// then applies NODEGRAPH_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
		return nil
	}
	flag := func(name string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("EDITOR_URL", &c.EditorURL)
	str("EDITOR_NAMESPACE", &c.EditorNamespace)
	return errors.Join(
		num("WORKERS", &c.Workers),
		num("REFERENCE_DEPTH", &c.ReferenceDepth),
		num("HEALTHCHECK_PORT", &c.HealthcheckPort),
		num("DB_MAX_ROWS", &c.DBMaxRows),
		flag("PROPAGATE_BLOCKED", &c.PropagateBlocked),
		flag("INCLUDE_ALL_EXECUTED", &c.IncludeAllExecuted),
		dur("HTTP_TIMEOUT", &c.HTTPTimeout),
		dur("SCRIPT_TIMEOUT", &c.ScriptTimeout),
	)
}

// NewConfig validates cfg and returns a normalized copy.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.ReferenceDepth < 0 {
		return nil, fmt.Errorf("reference depth must not be negative, got %d", cfg.ReferenceDepth)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port out of range: %d", cfg.HealthcheckPort)
	}
	if cfg.DBMaxRows < 0 {
		return nil, fmt.Errorf("db max rows must not be negative, got %d", cfg.DBMaxRows)
	}
	return &cfg, nil
}
