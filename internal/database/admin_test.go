package database

import (
	"context"
	"testing"

	"meeplehall/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceConfigTargetsPostgresDatabase(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db.internal",
		DBPort:     "5433",
		DBUser:     "hall",
		DBPassword: "secret",
		DBName:     "meeplehall",
		DBSSLMode:  "require",
	}
	connCfg, err := maintenanceConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", connCfg.Database)
	assert.Equal(t, "db.internal", connCfg.Host)
	assert.Equal(t, uint16(5433), connCfg.Port)
	assert.Equal(t, "hall", connCfg.User)
	// The caller's config is untouched.
	assert.Equal(t, "meeplehall", cfg.DBName)
}

func TestCreateDatabaseRejectsSqlite(t *testing.T) {
	_, err := CreateDatabase(context.Background(), &config.Config{DBDriver: "sqlite"})
	assert.ErrorContains(t, err, "postgres")
}
