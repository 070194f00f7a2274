package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/database"
	"github.com/seriarr/seriarr/internal/models"
)

// fakeLookuper counts calls and returns a canned response.
type fakeLookuper struct {
	calls int
	info  *models.SeriesInfo
	err   error
}

func (f *fakeLookuper) Search(ctx context.Context, query string) (*models.SeriesInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "cache.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func serviceConfig() config.MetadataConfig {
	return config.MetadataConfig{CacheTTL: time.Hour}
}

func TestLookupCachesResult(t *testing.T) {
	fake := &fakeLookuper{info: &models.SeriesInfo{Name: "The Wire", Year: 2002}}
	svc := NewService(serviceConfig(), fake, testDB(t), nil)

	first, err := svc.Lookup(context.Background(), "The Wire")
	require.NoError(t, err)
	assert.Equal(t, "The Wire", first.Name)

	second, err := svc.Lookup(context.Background(), "the wire")
	require.NoError(t, err)
	assert.Equal(t, "The Wire", second.Name)

	assert.Equal(t, 1, fake.calls, "second lookup must come from cache")
}

func TestLookupRefreshesExpiredEntry(t *testing.T) {
	db := testDB(t)
	fake := &fakeLookuper{info: &models.SeriesInfo{Name: "Fresh"}}
	svc := NewService(serviceConfig(), fake, db, nil)

	_, err := svc.Lookup(context.Background(), "show")
	require.NoError(t, err)

	// Age the cache entry past the TTL.
	stale := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&models.SeriesRecord{}).
		Where("query = ?", "show").
		Update("fetched_at", stale).Error)

	_, err = svc.Lookup(context.Background(), "show")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestLookupServesStaleOnClientError(t *testing.T) {
	db := testDB(t)
	fake := &fakeLookuper{info: &models.SeriesInfo{Name: "Cached Show"}}
	svc := NewService(serviceConfig(), fake, db, nil)

	_, err := svc.Lookup(context.Background(), "show")
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&models.SeriesRecord{}).
		Where("query = ?", "show").
		Update("fetched_at", stale).Error)

	fake.err = errors.New("api down")
	info, err := svc.Lookup(context.Background(), "show")
	require.NoError(t, err)
	assert.Equal(t, "Cached Show", info.Name)
}

func TestLookupNotFoundIsNotMasked(t *testing.T) {
	fake := &fakeLookuper{err: ErrNotFound}
	svc := NewService(serviceConfig(), fake, testDB(t), nil)

	_, err := svc.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupDisabled(t *testing.T) {
	cfg := serviceConfig()
	cfg.DisableLookups = true
	svc := NewService(cfg, &fakeLookuper{}, nil, nil)

	_, err := svc.Lookup(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrLookupsDisabled)
}

func TestLookupWithoutDatabase(t *testing.T) {
	fake := &fakeLookuper{info: &models.SeriesInfo{Name: "Direct"}}
	svc := NewService(serviceConfig(), fake, nil, nil)

	for i := 0; i < 2; i++ {
		info, err := svc.Lookup(context.Background(), "direct")
		require.NoError(t, err)
		assert.Equal(t, "Direct", info.Name)
	}
	assert.Equal(t, 2, fake.calls)
}
