package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Providers ProvidersConfig
	Storage   StorageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// ProvidersConfig holds external data provider endpoints and credentials.
// Each provider is an independent system with its own base URL and API key;
// keys are injected into adapters through the credential store, never read
// ambiently.
type ProvidersConfig struct {
	AddressURL     string
	HazardURL      string
	GeotechURL     string
	ClimateURL     string
	LandURL        string
	ZoningURL      string
	TimeoutSeconds int
	Keys           map[string]string
}

// StorageConfig holds report artifact storage configuration.
// BucketURL is a gocloud.dev bucket URL, e.g. file:///var/lib/siteline/reports.
type StorageConfig struct {
	BucketURL string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "siteline")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("PROVIDER_ADDRESS_URL", "http://localhost:9101")
	v.SetDefault("PROVIDER_HAZARD_URL", "http://localhost:9102")
	v.SetDefault("PROVIDER_GEOTECH_URL", "http://localhost:9103")
	v.SetDefault("PROVIDER_CLIMATE_URL", "http://localhost:9104")
	v.SetDefault("PROVIDER_LAND_URL", "http://localhost:9105")
	v.SetDefault("PROVIDER_ZONING_URL", "http://localhost:9106")
	v.SetDefault("PROVIDER_TIMEOUT_SECONDS", 10)
	v.SetDefault("REPORT_BUCKET_URL", "mem://")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Providers: ProvidersConfig{
			AddressURL:     v.GetString("PROVIDER_ADDRESS_URL"),
			HazardURL:      v.GetString("PROVIDER_HAZARD_URL"),
			GeotechURL:     v.GetString("PROVIDER_GEOTECH_URL"),
			ClimateURL:     v.GetString("PROVIDER_CLIMATE_URL"),
			LandURL:        v.GetString("PROVIDER_LAND_URL"),
			ZoningURL:      v.GetString("PROVIDER_ZONING_URL"),
			TimeoutSeconds: v.GetInt("PROVIDER_TIMEOUT_SECONDS"),
			Keys: map[string]string{
				"address": v.GetString("PROVIDER_ADDRESS_KEY"),
				"hazard":  v.GetString("PROVIDER_HAZARD_KEY"),
				"geotech": v.GetString("PROVIDER_GEOTECH_KEY"),
				"climate": v.GetString("PROVIDER_CLIMATE_KEY"),
				"land":    v.GetString("PROVIDER_LAND_KEY"),
				"zoning":  v.GetString("PROVIDER_ZONING_KEY"),
			},
		},
		Storage: StorageConfig{
			BucketURL: v.GetString("REPORT_BUCKET_URL"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate provider and storage config
	if c.Providers.TimeoutSeconds < 1 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be at least 1")
	}
	if c.Storage.BucketURL == "" {
		return fmt.Errorf("REPORT_BUCKET_URL is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
