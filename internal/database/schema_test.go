package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"chatwarden/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		env     string
		mode    string
		wantSQL bool
		wantAut bool
		wantErr bool
	}{
		{"postgres hybrid dev", "postgres", "development", "", true, true, false},
		{"postgres hybrid prod", "postgres", "production", "hybrid", true, false, false},
		{"postgres sql", "postgres", "development", "sql", true, false, false},
		{"postgres auto dev", "postgres", "development", "auto", false, true, false},
		{"postgres auto staging refused", "postgres", "staging", "auto", false, false, true},
		{"postgres unknown mode", "postgres", "development", "yolo", false, false, true},
		{"sqlite hybrid", "sqlite", "production", "hybrid", false, true, false},
		{"sqlite auto", "sqlite", "development", "auto", false, true, false},
		{"sqlite sql refused", "sqlite", "development", "sql", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&config.Config{DBDriver: tt.driver, Env: tt.env, DBSchemaMode: tt.mode})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAut, runAuto)
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ms), 2)
	for i, m := range ms {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, strings.TrimSpace(m.Up), m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.Down), m.Name)
	}
	assert.Equal(t, "000001_create_moderation_events", ms[0].String())
	assert.Contains(t, ms[0].Up, "moderation_events")
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"missing down": {
			"m/000001_a.up.sql": {Data: []byte("SELECT 1;")},
		},
		"bad version": {
			"m/abc_a.up.sql":   {Data: []byte("SELECT 1;")},
			"m/abc_a.down.sql": {Data: []byte("SELECT 1;")},
		},
		"no name": {
			"m/000001.up.sql": {Data: []byte("SELECT 1;")},
		},
		"duplicate version": {
			"m/000001_a.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001_a.down.sql": {Data: []byte("SELECT 1;")},
			"m/1_b.up.sql":        {Data: []byte("SELECT 1;")},
			"m/1_b.down.sql":      {Data: []byte("SELECT 1;")},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMigrations(fsys, "m")
			assert.Error(t, err)
		})
	}
}

func sqliteMigrations(t *testing.T) []Migration {
	t.Helper()
	set, err := LoadMigrations(fstest.MapFS{
		"m/000002_add_index.up.sql":      {Data: []byte("CREATE INDEX idx_notes_body ON notes (body);")},
		"m/000002_add_index.down.sql":    {Data: []byte("DROP INDEX idx_notes_body;")},
		"m/000001_create_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);")},
		"m/000001_create_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
		"m/README.md":                    {Data: []byte("ignored")},
	}, "m")
	require.NoError(t, err)
	require.Len(t, set, 2)
	return set
}

func TestMigrator_UpDown(t *testing.T) {
	db := memoryDB(t)
	ctx := context.Background()
	m := NewMigratorWith(db, sqliteMigrations(t))

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("notes"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)

	require.NoError(t, m.Down(ctx, 2))
	applied, err = m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)

	assert.Error(t, m.Down(ctx, 2), "already reverted")
	assert.Error(t, m.Down(ctx, 99), "unknown version")
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := memoryDB(t)
	ctx := context.Background()

	m := NewMigratorWith(db, []Migration{
		{Version: 1, Name: "ok", Up: "CREATE TABLE a (id INTEGER);", Down: "DROP TABLE a;"},
		{Version: 2, Name: "broken", Up: "CREATE TABLE nonsense (", Down: "SELECT 1;"},
	})
	n, err := m.Up(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
}

func TestMigrator_UnknownAppliedVersion(t *testing.T) {
	db := memoryDB(t)
	ctx := context.Background()

	require.NoError(t, db.AutoMigrate(&SchemaMigration{}))
	require.NoError(t, db.Create(&[]SchemaMigration{{Version: 7, Name: "future"}, {Version: 3, Name: "other"}}).Error)

	_, err := NewMigratorWith(db, sqliteMigrations(t)).Pending(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

func TestGetSchemaStatus_SQLite(t *testing.T) {
	db := memoryDB(t)

	status, err := GetSchemaStatus(context.Background(), db, &config.Config{DBDriver: "sqlite", Env: "test"})
	require.NoError(t, err)
	assert.Equal(t, SchemaModeHybrid, status.Mode)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
}

func TestMigrator_NeverMigratedIsEmpty(t *testing.T) {
	db := memoryDB(t)

	m, err := NewMigrator(db)
	require.NoError(t, err)
	applied, err := m.Applied(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func memoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
