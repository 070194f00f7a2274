package models

// ParsedName holds the metadata extracted from a media filename.
// Zero values mean the corresponding token was not present.
type ParsedName struct {
	Title        string
	Season       int
	Episode      int
	Year         int
	Resolution   int // vertical resolution, e.g. 1080
	Source       string
	Codec        string
	ReleaseGroup string
}

// HasEpisode reports whether a season/episode marker was found.
func (p ParsedName) HasEpisode() bool {
	return p.Season > 0 && p.Episode > 0
}
