package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}
}

func TestOpenMigratesSchema(t *testing.T) {
	db, err := Open(testConfig(t), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(db)) }()

	assert.True(t, db.Migrator().HasTable(&models.SeriesRecord{}))
}

func TestSeriesRecordRoundTrip(t *testing.T) {
	db, err := Open(testConfig(t), nil)
	require.NoError(t, err)
	defer func() { _ = Close(db) }()

	rec := models.SeriesRecord{
		ID:        models.NewULID(),
		Query:     "the wire",
		Name:      "The Wire",
		Year:      2002,
		Network:   "HBO",
		Rating:    9.3,
		FetchedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&rec).Error)

	var got models.SeriesRecord
	require.NoError(t, db.Where("query = ?", "the wire").First(&got).Error)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "The Wire", got.Name)
	assert.Equal(t, 2002, got.Year)
}

func TestSeriesRecordQueryUnique(t *testing.T) {
	db, err := Open(testConfig(t), nil)
	require.NoError(t, err)
	defer func() { _ = Close(db) }()

	first := models.SeriesRecord{ID: models.NewULID(), Query: "dup", Name: "First"}
	require.NoError(t, db.Create(&first).Error)

	second := models.SeriesRecord{ID: models.NewULID(), Query: "dup", Name: "Second"}
	assert.Error(t, db.Create(&second).Error)
}
