package grouping

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

func mediaFiles(names ...string) []models.MediaFile {
	files := make([]models.MediaFile, len(names))
	for i, n := range names {
		files[i] = models.MediaFile{Path: "/library/" + n, Size: int64(1000 + i)}
	}
	return files
}

func newEngine(threshold float64) *Engine {
	return NewEngine(config.GroupingConfig{SimilarityThreshold: threshold}, nil)
}

func TestGroupTwoSeriesScenario(t *testing.T) {
	files := mediaFiles(
		"Show A S01E01 [1080p][GX].mkv",
		"Show A S01E02 [1080p][GX].mkv",
		"Show B S01E01 [720p][GY].mkv",
	)

	result := newEngine(0.75).Group(files)

	require.Len(t, result.Groups, 1)
	require.Len(t, result.Ungrouped, 1)
	assert.Empty(t, result.Errors)

	g := result.Groups[0]
	assert.Equal(t, "Show A", g.Title)
	assert.Len(t, g.Files, 2)
	assert.Equal(t, 1, g.Season)
	assert.Equal(t, "Show B S01E01 [720p][GY].mkv", result.Ungrouped[0].Name())
}

func TestGroupConservesFileCount(t *testing.T) {
	inputs := [][]models.MediaFile{
		nil,
		mediaFiles("solo.mkv"),
		mediaFiles(
			"Alpha S01E01 720p.mkv",
			"Alpha S01E02 720p.mkv",
			"Beta 1x01.mkv",
			"Beta 1x02.mkv",
			"Gamma Special.mkv",
		),
		mediaFiles(
			"Same Show S01E01.mkv",
			"Same Show S01E02.mkv",
			"Same Show S01E03.mkv",
			"Unrelated Thing Entirely.mkv",
		),
	}

	for i, files := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			result := newEngine(0.75).Group(files)
			total := len(result.Ungrouped)
			for _, g := range result.Groups {
				total += len(g.Files)
			}
			assert.Equal(t, len(files), total)
		})
	}
}

func TestGroupSeasonConflictSplits(t *testing.T) {
	files := mediaFiles(
		"Long Running Show S01E01.mkv",
		"Long Running Show S01E02.mkv",
		"Long Running Show S02E01.mkv",
		"Long Running Show S02E02.mkv",
	)

	result := newEngine(0.75).Group(files)

	require.Len(t, result.Groups, 2)
	for _, g := range result.Groups {
		assert.Len(t, g.Files, 2)
		assert.NotZero(t, g.Season)
	}
}

func TestGroupQualityMismatchDoesNotSplit(t *testing.T) {
	files := mediaFiles(
		"Quality Show S01E01 2160p.mkv",
		"Quality Show S01E02 480p.mkv",
	)

	result := newEngine(0.75).Group(files)

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Files, 2)
	assert.Empty(t, result.Ungrouped)
}

func TestGroupBestFilePrefersResolutionThenSize(t *testing.T) {
	files := []models.MediaFile{
		{Path: "/lib/Best Show S01E01 720p.mkv", Size: 9000},
		{Path: "/lib/Best Show S01E02 1080p.mkv", Size: 1000},
		{Path: "/lib/Best Show S01E03 1080p.mkv", Size: 5000},
	}

	result := newEngine(0.75).Group(files)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, "/lib/Best Show S01E03 1080p.mkv", result.Groups[0].Best.Path)
}

func TestGroupRaisingThresholdNeverDecreasesGroups(t *testing.T) {
	files := mediaFiles(
		"The First Series S01E01.mkv",
		"The First Series S01E02.mkv",
		"The First Serias S01E03.mkv", // near-variant spelling
		"The Second Series S01E01.mkv",
		"The Second Series S01E02.mkv",
	)

	prev := -1
	for _, threshold := range []float64{0.3, 0.5, 0.75, 0.9, 0.99} {
		result := newEngine(threshold).Group(files)
		if prev >= 0 {
			assert.GreaterOrEqual(t, len(result.Groups), prev,
				"threshold %.2f produced fewer groups", threshold)
		}
		prev = len(result.Groups)
	}
}

func TestGroupSimilarityIsMeanPairwise(t *testing.T) {
	files := mediaFiles(
		"Pairwise Show S01E01.mkv",
		"Pairwise Show S01E02.mkv",
	)

	result := newEngine(0.75).Group(files)
	require.Len(t, result.Groups, 1)
	// Identical clean names: mean pairwise ratio is exactly 1.
	assert.InDelta(t, 1.0, result.Groups[0].Similarity, 0.0001)
}

func TestGroupEmptyInput(t *testing.T) {
	result := newEngine(0.75).Group(nil)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Ungrouped)
	assert.Empty(t, result.Errors)
}

func TestMergeEnriched(t *testing.T) {
	a := models.NewFileGroup("the wire", 1,
		mediaFiles("The Wire S01E01.mkv", "The Wire S01E02.mkv"), resolveResolution)
	b := models.NewFileGroup("wire the", 1,
		mediaFiles("The.Wire.S01E03.mkv", "The.Wire.S01E04.mkv"), resolveResolution)
	a.Series = &models.SeriesInfo{Name: "The Wire"}
	b.Series = &models.SeriesInfo{Name: "The Wire"}

	c := models.NewFileGroup("Other Show", 2,
		mediaFiles("Other Show S02E01.mkv", "Other Show S02E02.mkv"), resolveResolution)

	merged := MergeEnriched([]*models.FileGroup{a, b, c})

	require.Len(t, merged, 2)
	assert.Len(t, merged[0].Files, 4)
	assert.Equal(t, "The Wire", merged[0].DisplayName())
	assert.Equal(t, 1, merged[0].Season)
	assert.Len(t, merged[1].Files, 2)
}
