// Package config loads service configuration from an optional YAML file with
// environment-variable overrides. Environment always wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Pricing  PricingConfig  `yaml:"pricing"`
}

// ServiceConfig identifies the service in logs.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig controls the pgx pool.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// NATSConfig controls notification publishing. An empty URL disables it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// PricingConfig holds the pricing-engine inputs.
type PricingConfig struct {
	VATRate float64 `yaml:"vat_rate"`
}

// Load reads CONFIG_FILE (when set) and applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        "be-procurement-requests",
			Environment: "development",
			Version:     "dev",
		},
		Server: ServerConfig{
			Port:            8086,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL:      "postgres://localhost:5432/procurement?sslmode=disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Pricing: PricingConfig{VATRate: 0.075},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to parse config file")
		}
	}

	applyEnv(cfg)

	if cfg.Pricing.VATRate < 0 || cfg.Pricing.VATRate >= 1 {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"vat rate %v must be a fraction in [0, 1)", cfg.Pricing.VATRate)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Service.Name, "SERVICE_NAME")
	setString(&cfg.Service.Environment, "ENVIRONMENT")
	setString(&cfg.Service.Version, "SERVICE_VERSION")
	setInt(&cfg.Server.Port, "HTTP_PORT")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.NATS.URL, "NATS_URL")
	setFloat(&cfg.Pricing.VATRate, "VAT_RATE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
