package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

// ErrLookupsDisabled is returned when metadata lookups are turned off.
var ErrLookupsDisabled = errors.New("metadata lookups are disabled")

// Service resolves series metadata through a cache-first path: fresh cache
// entries are served directly, misses and stale entries go to the API, and a
// failing API falls back to stale cache data when available.
type Service struct {
	client   Lookuper
	db       *gorm.DB
	ttl      time.Duration
	disabled bool
	logger   *slog.Logger
}

// NewService creates a metadata service. db may be nil, in which case every
// lookup goes straight to the client.
func NewService(cfg config.MetadataConfig, client Lookuper, db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		db:       db,
		ttl:      cfg.CacheTTL,
		disabled: cfg.DisableLookups,
		logger:   logger.With(slog.String("component", "metadata")),
	}
}

// Lookup resolves a series query, consulting the cache first.
func (s *Service) Lookup(ctx context.Context, query string) (*models.SeriesInfo, error) {
	if s.disabled {
		return nil, ErrLookupsDisabled
	}

	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return nil, ErrNotFound
	}

	cached, fresh := s.fromCache(ctx, key)
	if cached != nil && fresh {
		s.logger.Debug("cache hit", slog.String("query", key))
		return cached.Info(), nil
	}

	info, err := s.client.Search(ctx, key)
	if err != nil {
		if cached != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("lookup failed, serving stale cache entry",
				slog.String("query", key),
				slog.String("error", err.Error()))
			return cached.Info(), nil
		}
		return nil, err
	}

	s.store(ctx, key, info)
	return info, nil
}

// fromCache fetches the cached record for a query, reporting whether it is
// still within the TTL.
func (s *Service) fromCache(ctx context.Context, key string) (*models.SeriesRecord, bool) {
	if s.db == nil {
		return nil, false
	}

	var rec models.SeriesRecord
	err := s.db.WithContext(ctx).Where("query = ?", key).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("cache read failed",
				slog.String("query", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return &rec, time.Since(rec.FetchedAt) < s.ttl
}

// store upserts a lookup result into the cache, keyed by the query.
func (s *Service) store(ctx context.Context, key string, info *models.SeriesInfo) {
	if s.db == nil {
		return
	}

	rec := models.SeriesRecord{
		ID:        models.NewULID(),
		Query:     key,
		Name:      info.Name,
		Year:      info.Year,
		Network:   info.Network,
		Overview:  info.Overview,
		Rating:    info.Rating,
		FetchedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "query"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "year", "network", "overview", "rating", "fetched_at", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		s.logger.Warn("cache write failed",
			slog.String("query", key),
			slog.String("error", fmt.Sprintf("%v", err)))
	}
}
