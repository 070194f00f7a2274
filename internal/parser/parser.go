// Package parser extracts structured metadata from media filenames using an
// ordered rule table. Rules are tried in order and the first match per field
// wins, so the common scene formats take precedence over looser fallbacks.
package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/seriarr/seriarr/internal/grouping"
	"github.com/seriarr/seriarr/internal/models"
)

var (
	yearRule = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	sourceRules = []struct {
		pattern *regexp.Regexp
		value   string
	}{
		{regexp.MustCompile(`(?i)\bblu-?ray\b`), "bluray"},
		{regexp.MustCompile(`(?i)\b(?:bd-?rip|br-?rip)\b`), "bluray"},
		{regexp.MustCompile(`(?i)\bremux\b`), "remux"},
		{regexp.MustCompile(`(?i)\bweb-?dl\b`), "webdl"},
		{regexp.MustCompile(`(?i)\bweb-?rip\b`), "webrip"},
		{regexp.MustCompile(`(?i)\bhdtv\b`), "hdtv"},
		{regexp.MustCompile(`(?i)\bdvd-?rip\b`), "dvd"},
	}

	codecRules = []struct {
		pattern *regexp.Regexp
		value   string
	}{
		{regexp.MustCompile(`(?i)\b(?:x265|h\.?265|hevc)\b`), "hevc"},
		{regexp.MustCompile(`(?i)\b(?:x264|h\.?264|avc)\b`), "h264"},
		{regexp.MustCompile(`(?i)\bav1\b`), "av1"},
		{regexp.MustCompile(`(?i)\b(?:xvid|divx)\b`), "xvid"},
	}

	// releaseGroupRule matches the conventional trailing "-GROUP" marker on
	// the base name, after the extension is stripped.
	releaseGroupRule = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
)

// Parse extracts a ParsedName from a filename. Fields left at their zero
// value were not present in the name. Parse never fails: an unrecognizable
// name yields a ParsedName with only the Title set.
func Parse(name string) models.ParsedName {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	p := models.ParsedName{
		Title:      grouping.Normalize(name),
		Season:     grouping.ExtractSeason(name),
		Episode:    grouping.ExtractEpisode(name),
		Resolution: grouping.ExtractResolution(name),
	}

	if m := yearRule.FindString(base); m != "" {
		// Years inside bracketed tags still count; scene names put them
		// either way.
		if y, err := strconv.Atoi(m); err == nil {
			p.Year = y
		}
	}

	for _, r := range sourceRules {
		if r.pattern.MatchString(base) {
			p.Source = r.value
			break
		}
	}
	for _, r := range codecRules {
		if r.pattern.MatchString(base) {
			p.Codec = r.value
			break
		}
	}

	if m := releaseGroupRule.FindStringSubmatch(base); m != nil {
		p.ReleaseGroup = m[1]
	}

	return p
}

// ParseAll parses a batch of files, preserving input order.
func ParseAll(files []models.MediaFile) []models.ParsedName {
	out := make([]models.ParsedName, len(files))
	for i, f := range files {
		out[i] = Parse(f.Name())
	}
	return out
}
