package database

import (
	"log/slog"
	"testing"

	"meeplehall/internal/config"
	"meeplehall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openMemory(t)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections, "sqlite is pinned to one connection")
}

func TestAutoMigrateAndStatus(t *testing.T) {
	db := openMemory(t)

	before, err := SchemaStatus(db)
	require.NoError(t, err)
	require.Len(t, before, len(PersistentModels()))
	for _, s := range before {
		assert.False(t, s.Exists, s.Table)
	}

	require.NoError(t, AutoMigrate(db))

	after, err := SchemaStatus(db)
	require.NoError(t, err)
	for _, s := range after {
		assert.True(t, s.Exists, s.Table)
	}
}

func TestUserEmailReusableAfterSoftDelete(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, AutoMigrate(db))

	first := models.User{Username: "meeple", Email: "m@example.com", Password: "x"}
	require.NoError(t, db.Create(&first).Error)

	dup := models.User{Username: "meeple", Email: "m@example.com", Password: "x"}
	assert.Error(t, db.Create(&dup).Error, "live duplicates must be rejected")

	require.NoError(t, db.Model(&first).Update("is_deleted", true).Error)

	again := models.User{Username: "meeple", Email: "m@example.com", Password: "x"}
	assert.NoError(t, db.Create(&again).Error)
}

func TestConnectSQLite(t *testing.T) {
	cfg := &config.Config{Env: "test", DBDriver: "sqlite", DBPath: ":memory:"}
	db, err := Connect(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())
	assert.True(t, db.Migrator().HasTable(&models.TradeItem{}))
}

func TestPostgresDSNDefaultsSSLMode(t *testing.T) {
	dsn := PostgresDSN(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n"})
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "host=db")
}

func TestGormLoggerLevels(t *testing.T) {
	l := NewGormLogger(slog.Default())
	silent := l.LogMode(logger.Silent).(*CustomGormLogger)
	assert.Equal(t, logger.Silent, silent.Config.LogLevel)
	assert.Equal(t, logger.Warn, l.Config.LogLevel)
}
