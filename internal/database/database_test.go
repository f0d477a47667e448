package database

import (
	"path/filepath"
	"testing"
	"time"

	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestNewDatabase_SQLiteFile(t *testing.T) {
	cfg := &config.Database{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "sts.db"),
		MaxOpenConns: 4,
	}
	db, err := NewDatabase(cfg, zap.NewNop())
	require.NoError(t, err)

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "table for %T should exist", m)
	}
}

func TestNewDatabase_UnknownDriver(t *testing.T) {
	_, err := NewDatabase(&config.Database{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestSeedDefaultHours(t *testing.T) {
	db, err := NewInMemory(uuid.NewString())
	require.NoError(t, err)

	seeded, err := SeedDefaultHours(db)
	require.NoError(t, err)
	assert.True(t, seeded)

	var hours []models.TradingHours
	require.NoError(t, db.Order("weekday").Find(&hours).Error)
	require.Len(t, hours, 5)
	assert.Equal(t, time.Monday, hours[0].Weekday)
	assert.Equal(t, time.Friday, hours[4].Weekday)
	assert.Equal(t, 570, hours[0].OpenMinute)
	assert.Equal(t, 960, hours[0].CloseMinute)

	// Second call leaves existing configuration alone.
	seeded, err = SeedDefaultHours(db)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestNewInMemory_Isolated(t *testing.T) {
	a, err := NewInMemory(uuid.NewString())
	require.NoError(t, err)
	b, err := NewInMemory(uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, a.Create(&models.Holiday{Date: "2025-12-25", Reason: "Christmas"}).Error)

	var count int64
	require.NoError(t, b.Model(&models.Holiday{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostgresDSN(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.Database
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.Database{DSN: "postgres://a@b/c", Host: "ignored"},
			want: "postgres://a@b/c",
		},
		{
			name: "built from fields",
			cfg:  config.Database{Host: "db", Port: 5432, User: "sts", Password: "p@ss word", Name: "sts", SSLMode: "disable"},
			want: "postgres://sts:p%40ss+word@db:5432/sts?sslmode=disable",
		},
		{
			name: "default sslmode",
			cfg:  config.Database{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n"},
			want: "postgres://u:p@db:5433/n?sslmode=prefer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PostgresDSN(&tc.cfg))
		})
	}
}

func TestNewDatabase_LogsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := &config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "sts.db")}
	db, err := NewDatabase(cfg, zap.New(core))
	require.NoError(t, err)

	var holiday models.Holiday
	err = db.Where("date = ?", "2030-01-01").First(&holiday).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.FilterMessageSnippet("record not found").Len())

	require.Error(t, db.Exec("SELECT * FROM no_such_table").Error)
	failed := logs.FilterMessageSnippet("no_such_table").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "gorm", failed[0].LoggerName)
	assert.Equal(t, zap.WarnLevel, failed[0].Level)
}
