package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "season episode and tags",
			input: "Show A S01E01 [1080p][GX].mkv",
			want:  "show a",
		},
		{
			name:  "dots and release group",
			input: "Breaking.Point.S02E03.720p.WEB-DL.x264-GRP.mkv",
			want:  "breaking point",
		},
		{
			name:  "cross format markers",
			input: "My Show 1x02 (2019) BluRay HEVC.mp4",
			want:  "my show",
		},
		{
			name:  "season word",
			input: "Some Show Season 2 Episode 5 HDTV.avi",
			want:  "some show",
		},
		{
			name:  "audio tokens",
			input: "Title.S01E01.2160p.WEB-DL.DDP5.1.Atmos.H.265-TEPES.mkv",
			want:  "title",
		},
		{
			name:  "plain name untouched",
			input: "plain name.mkv",
			want:  "plain name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Show A S01E01 [1080p][GX].mkv",
		"Breaking.Point.S02E03.720p.WEB-DL.x264-GRP.mkv",
		"already clean name",
		"",
	}
	for _, in := range inputs {
		clean := Normalize(in)
		assert.Equal(t, clean, Normalize(clean), "normalize not idempotent for %q", in)
	}
}

func TestExtractSeasonEpisode(t *testing.T) {
	tests := []struct {
		input       string
		wantSeason  int
		wantEpisode int
	}{
		{"Show A S01E05.mkv", 1, 5},
		{"Show A 3x07.mkv", 3, 7},
		{"Show A Season 2 Episode 12.mkv", 2, 12},
		{"Show.A.S10E03.mkv", 10, 3},
		{"No Markers Here.mkv", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.wantSeason, ExtractSeason(tt.input), "season")
			assert.Equal(t, tt.wantEpisode, ExtractEpisode(tt.input), "episode")
		})
	}
}

func TestExtractSeasonFirstMatchWins(t *testing.T) {
	// S01E02 must win over the later "3x04" style token.
	assert.Equal(t, 1, ExtractSeason("Show S01E02 3x04.mkv"))
}

func TestExtractResolution(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"Show A S01E01 [1080p].mkv", 1080},
		{"Show A S01E01 720p.mkv", 720},
		{"Show A 4K remux.mkv", 2160},
		{"Show A 2160p.mkv", 2160},
		{"Show A.mkv", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractResolution(tt.input))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("show a", "show a"), 0.0001)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 0.0001)
	assert.InDelta(t, 1.0, Ratio("", ""), 0.0001)
	assert.InDelta(t, 0.0, Ratio("abc", ""), 0.0001)

	// Symmetric and bounded.
	a, b := "breaking point", "breaking pond"
	assert.InDelta(t, Ratio(a, b), Ratio(b, a), 0.0001)
	r := Ratio(a, b)
	assert.GreaterOrEqual(t, r, 0.0)
	assert.LessOrEqual(t, r, 1.0)
	assert.Greater(t, r, 0.7)
}
