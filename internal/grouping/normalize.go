package grouping

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// cleanRules strips noise tokens from a filename, applied in order. Order
// matters: bracketed tags go first so their contents never leak into later
// token matches.
var cleanRules = []*regexp.Regexp{
	regexp.MustCompile(`\[[^\]]*\]`),
	regexp.MustCompile(`\([^)]*\)`),
	regexp.MustCompile(`\{[^}]*\}`),
	regexp.MustCompile(`(?i)\bs\d{1,2}(?:e\d{1,3})?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}x\d{2,3}\b`),
	regexp.MustCompile(`(?i)\bseason[ ._-]?\d{1,2}\b`),
	regexp.MustCompile(`(?i)\bepisode[ ._-]?\d{1,3}\b`),
	regexp.MustCompile(`(?i)\be\d{1,3}\b`),
	regexp.MustCompile(`(?i)\b(?:2160p|1440p|1080p|720p|576p|480p|4k|uhd)\b`),
	regexp.MustCompile(`(?i)\b(?:blu-?ray|bd-?rip|br-?rip|web-?dl|web-?rip|hdtv|dvd-?rip|hd-?rip|remux|proper|repack|internal)\b`),
	regexp.MustCompile(`(?i)\b(?:x264|x265|h\.?264|h\.?265|hevc|avc|av1|xvid|divx|10bit|8bit|hdr10?|dovi)\b`),
	regexp.MustCompile(`(?i)\b(?:aac|ac3|eac3|ddp?[57]\.?[01]|dts(?:-hd)?|truehd|flac|atmos|[257]\.[01])\b`),
	regexp.MustCompile(`-[A-Za-z0-9]+$`), // trailing release-group marker
}

var (
	separators = regexp.MustCompile(`[._]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize reduces a filename to its clean name: extension, bracketed tags,
// release-group markers, resolution/codec/source tokens, and season/episode
// markers stripped, whitespace collapsed, lowercased, NFKC-folded.
// Normalizing an already-clean name returns it unchanged.
func Normalize(name string) string {
	s := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	s = norm.NFKC.String(s)
	// Token rules run before separator folding so dotted tokens
	// like "H.265" and "DDP5.1" still match.
	for _, rule := range cleanRules {
		s = rule.ReplaceAllString(s, " ")
	}
	s = separators.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = strings.Trim(s, " -")
	return whitespace.ReplaceAllString(s, " ")
}

// extractRule pairs a pattern with the capture-group index holding the value.
// Rules are tried in order; the first match per category wins.
type extractRule struct {
	pattern *regexp.Regexp
	group   int
	// value overrides the captured number when set (e.g. "4k" -> 2160).
	value int
}

var seasonRules = []extractRule{
	{pattern: regexp.MustCompile(`(?i)\bs(\d{1,2})e\d{1,3}\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b(\d{1,2})x\d{2,3}\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\bseason[ ._-]?(\d{1,2})\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\bs(\d{1,2})\b`), group: 1},
}

var episodeRules = []extractRule{
	{pattern: regexp.MustCompile(`(?i)\bs\d{1,2}e(\d{1,3})\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b\d{1,2}x(\d{2,3})\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\bepisode[ ._-]?(\d{1,3})\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\be(\d{1,3})\b`), group: 1},
}

var resolutionRules = []extractRule{
	{pattern: regexp.MustCompile(`(?i)\b(2160)p\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b(?:4k|uhd)\b`), value: 2160},
	{pattern: regexp.MustCompile(`(?i)\b(1440)p\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b(1080)p\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b(720)p\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b(576)p\b`), group: 1},
	{pattern: regexp.MustCompile(`(?i)\b(480)p\b`), group: 1},
}

// extract runs ordered rules against a name; first match wins. Returns 0
// when no rule matches.
func extract(rules []extractRule, name string) int {
	prepared := separators.ReplaceAllString(name, " ")
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(prepared)
		if m == nil {
			continue
		}
		if r.value != 0 {
			return r.value
		}
		n, err := strconv.Atoi(m[r.group])
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// ExtractSeason returns the season number parsed from a filename, 0 if absent.
func ExtractSeason(name string) int {
	return extract(seasonRules, name)
}

// ExtractEpisode returns the episode number parsed from a filename, 0 if absent.
func ExtractEpisode(name string) int {
	return extract(episodeRules, name)
}

// ExtractResolution returns the vertical resolution parsed from a filename,
// 0 if absent.
func ExtractResolution(name string) int {
	return extract(resolutionRules, name)
}
