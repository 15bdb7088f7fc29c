// Package config loads runtime settings from the environment and an optional
// config file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Database drivers accepted by DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DefaultUploadMaxBytes caps a request body. Image size itself is left to the
// image host.
const DefaultUploadMaxBytes = 25 << 20

type Config struct {
	AppPort     string
	DBDriver    string
	DatabaseDSN string

	JWTSecret     string
	SessionTTL    time.Duration
	AdminEmail    string
	AdminPassword string

	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryBaseURL      string
	UploadTimeout          time.Duration
	UploadMaxBytes         int

	RabbitMQURL       string
	CatalogResyncSpec string

	WhatsAppPhone  string
	CurrencySymbol string
	StoreName      string
	PublicURL      string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "etalase.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_UPLOAD_PRESET", "")
	v.SetDefault("CLOUDINARY_BASE_URL", "https://api.cloudinary.com")
	v.SetDefault("UPLOAD_TIMEOUT", "30s")
	v.SetDefault("UPLOAD_MAX_BYTES", DefaultUploadMaxBytes)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("CATALOG_RESYNC_SPEC", "@every 5m")
	v.SetDefault("WHATSAPP_PHONE", "")
	v.SetDefault("CURRENCY_SYMBOL", "₹")
	v.SetDefault("STORE_NAME", "Etalase")
	v.SetDefault("PUBLIC_URL", "")
}

// Load reads the configuration from the environment. When CONFIG_FILE is set
// the file is read first and environment variables still take precedence.
func Load() (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppPort:                v.GetString("APP_PORT"),
		DBDriver:               v.GetString("DB_DRIVER"),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		SessionTTL:             v.GetDuration("SESSION_TTL"),
		AdminEmail:             v.GetString("ADMIN_EMAIL"),
		AdminPassword:          v.GetString("ADMIN_PASSWORD"),
		CloudinaryCloudName:    v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryUploadPreset: v.GetString("CLOUDINARY_UPLOAD_PRESET"),
		CloudinaryBaseURL:      v.GetString("CLOUDINARY_BASE_URL"),
		UploadTimeout:          v.GetDuration("UPLOAD_TIMEOUT"),
		UploadMaxBytes:         v.GetInt("UPLOAD_MAX_BYTES"),
		RabbitMQURL:            v.GetString("RABBITMQ_URL"),
		CatalogResyncSpec:      v.GetString("CATALOG_RESYNC_SPEC"),
		WhatsAppPhone:          v.GetString("WHATSAPP_PHONE"),
		CurrencySymbol:         v.GetString("CURRENCY_SYMBOL"),
		StoreName:              v.GetString("STORE_NAME"),
		PublicURL:              v.GetString("PUBLIC_URL"),
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.UploadMaxBytes <= 0 {
		return Config{}, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", cfg.UploadMaxBytes)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	return cfg, nil
}
