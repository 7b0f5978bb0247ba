package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                  "development",
		Port:                 "8080",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		DBDriver:             "postgres",
		DBPassword:           "secure-password",
		DBSSLMode:            "require",
		StorageDriver:        "local",
		EmailDriver:          "log",
		ImageMaxUploadSizeMB: 10,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateDrivers(t *testing.T) {
	c := validConfig()
	c.DBDriver = "mysql"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.StorageDriver = "s3"
	assert.Error(t, c.Validate(), "s3 storage needs a bucket")
	c.S3Bucket = "meeple-media"
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.EmailDriver = "smtp"
	assert.Error(t, c.Validate())
}

func TestConfig_ProductionRejectsDefaults(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Env = "production"
	c.DBDriver = "sqlite"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 3000, cfg.LikeLockWaitMillis)
	assert.Equal(t, 5, cfg.LikeLockIdleMinutes)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")
	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("LIKE_LOCK_WAIT_MS", "250")
	_ = os.Unsetenv("PORT")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.S3Bucket)
	assert.Equal(t, 250, cfg.LikeLockWaitMillis)
	assert.Equal(t, "8375", cfg.Port)
}
