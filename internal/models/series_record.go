package models

import "time"

// SeriesRecord is the GORM model for cached series metadata lookups,
// keyed by the normalized query string.
type SeriesRecord struct {
	ID        ULID   `gorm:"primaryKey;type:text"`
	Query     string `gorm:"uniqueIndex;not null"`
	Name      string
	Year      int
	Network   string
	Overview  string
	Rating    float64
	FetchedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the GORM table name.
func (SeriesRecord) TableName() string {
	return "series_cache"
}

// Info converts the cached record to a SeriesInfo.
func (r *SeriesRecord) Info() *SeriesInfo {
	return &SeriesInfo{
		Name:     r.Name,
		Year:     r.Year,
		Network:  r.Network,
		Overview: r.Overview,
		Rating:   r.Rating,
	}
}
