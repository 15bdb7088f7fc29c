package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"etalase/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("JWT_SECRET", "secret")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Equal(t, "₹", cfg.CurrencySymbol)
	assert.Equal(t, "@every 5m", cfg.CatalogResyncSpec)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t, config.DefaultUploadMaxBytes, cfg.UploadMaxBytes)
	assert.Empty(t, cfg.PublicURL)
}

func TestFromViper_Rejects(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"unknown driver", map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "mysql"}},
		{"zero ttl", map[string]string{"JWT_SECRET": "s", "SESSION_TTL": "0s"}},
		{"zero body limit", map[string]string{"JWT_SECRET": "s", "UPLOAD_MAX_BYTES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			config.SetDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := config.FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvironmentAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "etalase.yaml")
	require.NoError(t, os.WriteFile(file, []byte("STORE_NAME: File Store\nAPP_PORT: \":9000\"\n"), 0o600))

	t.Setenv("CONFIG_FILE", file)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("APP_PORT", ":9100")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("UPLOAD_MAX_BYTES", "1048576")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "File Store", cfg.StoreName)
	assert.Equal(t, ":9100", cfg.AppPort)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, config.DriverMemory, cfg.DBDriver)
	assert.Equal(t, 1<<20, cfg.UploadMaxBytes)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "s")
	_, err := config.Load()
	assert.Error(t, err)
}
