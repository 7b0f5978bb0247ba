// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"

	"meeplehall/internal/database"
	"meeplehall/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory sqlite database that lives for the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a live user named name with email name@example.com.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username:      name,
		Email:         fmt.Sprintf("%s@example.com", name),
		Password:      "x",
		AllowMessages: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateGame inserts a game with a slug derived from its name.
func CreateGame(t testing.TB, db *gorm.DB, name, slug string, minPlayers, maxPlayers int) *models.Game {
	t.Helper()
	g := &models.Game{Name: name, Slug: slug, MinPlayers: minPlayers, MaxPlayers: maxPlayers}
	require.NoError(t, db.Create(g).Error)
	return g
}
