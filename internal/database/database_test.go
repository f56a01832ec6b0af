package database

import (
	"context"
	"path/filepath"
	"testing"

	"chatwarden/internal/config"
	"chatwarden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteAppliesSchema(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "ledger.db"),
		DBSchemaMode: SchemaModeHybrid,
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, Ping(context.Background(), db))
	assert.True(t, db.Migrator().HasTable(&models.ModerationEvent{}))
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestPing_NilDB(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil))
}

func TestPersistentModels_IncludesModerationEvent(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.ModerationEvent); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include ModerationEvent")
}
