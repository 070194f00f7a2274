// Package grouping clusters media files into series-level groups using
// normalized-name similarity and light metadata heuristics.
package grouping

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

// DefaultThreshold is the minimum similarity ratio for two files to share a
// group when none is configured.
const DefaultThreshold = 0.75

// Result holds the outcome of a grouping call.
type Result struct {
	Groups    []*models.FileGroup
	Ungrouped []models.MediaFile
	Errors    []error
}

// Engine clusters files by clean-name similarity. It is independent of the
// pipeline scheduler and safe to call from any goroutine.
type Engine struct {
	threshold float64
	logger    *slog.Logger
}

// NewEngine creates a grouping engine.
func NewEngine(cfg config.GroupingConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold, logger: logger}
}

// fileInfo caches the derived attributes of one input file.
type fileInfo struct {
	file   models.MediaFile
	clean  string
	season int
}

// cluster is a working set of files during clustering.
type cluster struct {
	members []fileInfo
}

// anchor returns the cluster's representative file.
func (c *cluster) anchor() fileInfo {
	return c.members[0]
}

// Group clusters the input into series-level groups. Singleton clusters are
// reported as ungrouped. The call never raises: any internal fault degrades
// to zero groups, everything ungrouped, and one error entry.
// Invariant: sum of group sizes plus ungrouped count equals the input count.
func (e *Engine) Group(files []models.MediaFile) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("grouping failed, degrading to ungrouped",
				slog.Any("panic", r))
			result = Result{
				Ungrouped: files,
				Errors:    []error{fmt.Errorf("grouping failed: %v", r)},
			}
		}
	}()

	if len(files) == 0 {
		return Result{}
	}

	infos := make([]fileInfo, len(files))
	for i, f := range files {
		infos[i] = fileInfo{
			file:   f,
			clean:  Normalize(f.Name()),
			season: ExtractSeason(f.Name()),
		}
	}

	clusters := e.clusterGreedy(infos)
	clusters = e.mergeFragments(clusters)

	for _, c := range clusters {
		if len(c.members) < 2 {
			result.Ungrouped = append(result.Ungrouped, c.anchor().file)
			continue
		}
		result.Groups = append(result.Groups, e.emit(c))
	}

	e.logger.Debug("grouping complete",
		slog.Int("input", len(files)),
		slog.Int("groups", len(result.Groups)),
		slog.Int("ungrouped", len(result.Ungrouped)))

	return result
}

// clusterGreedy iterates files in input order; each unprocessed file opens a
// cluster and absorbs every later unprocessed file matching the predicate
// against the anchor.
func (e *Engine) clusterGreedy(infos []fileInfo) []*cluster {
	var clusters []*cluster
	used := make([]bool, len(infos))

	for i := range infos {
		if used[i] {
			continue
		}
		used[i] = true
		c := &cluster{members: []fileInfo{infos[i]}}

		for j := i + 1; j < len(infos); j++ {
			if used[j] {
				continue
			}
			if e.belongTogether(infos[i], infos[j]) {
				used[j] = true
				c.members = append(c.members, infos[j])
			}
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// belongTogether is the clustering predicate: clean-name similarity at or
// above the threshold, no season conflict, and no clashing distinguishing
// token. A quality mismatch alone never excludes.
func (e *Engine) belongTogether(a, b fileInfo) bool {
	if a.season > 0 && b.season > 0 && a.season != b.season {
		return false
	}
	if Ratio(a.clean, b.clean) < e.threshold {
		return false
	}
	return compatibleTokens(a.clean, b.clean)
}

// compatibleTokens guards against high character overlap hiding a real
// difference, e.g. "show a" vs "show b". Every token unique to one name must
// closely resemble some token of the other, otherwise the names are treated
// as different titles.
func compatibleTokens(a, b string) bool {
	const minTokenRatio = 0.5
	wordsA, wordsB := strings.Fields(a), strings.Fields(b)
	return tokensCovered(wordsA, wordsB, minTokenRatio) &&
		tokensCovered(wordsB, wordsA, minTokenRatio)
}

// tokensCovered checks that every word of a has a close enough counterpart
// in b.
func tokensCovered(a, b []string, minRatio float64) bool {
	for _, wa := range a {
		best := 0.0
		for _, wb := range b {
			if r := Ratio(wa, wb); r > best {
				best = r
			}
		}
		if best < minRatio {
			return false
		}
	}
	return true
}

// mergeFragments corrects order-sensitivity artifacts of greedy clustering:
// clusters are sorted by size descending and merged when their
// representatives satisfy the same predicate.
func (e *Engine) mergeFragments(clusters []*cluster) []*cluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].members) > len(clusters[j].members)
	})

	var merged []*cluster
	for _, c := range clusters {
		absorbed := false
		for _, m := range merged {
			if e.belongTogether(m.anchor(), c.anchor()) {
				m.members = append(m.members, c.members...)
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, c)
		}
	}
	return merged
}

// emit converts a multi-file cluster into a FileGroup with the mean pairwise
// similarity over its members.
func (e *Engine) emit(c *cluster) *models.FileGroup {
	files := make([]models.MediaFile, len(c.members))
	for i, m := range c.members {
		files[i] = m.file
	}

	season := c.members[0].season
	for _, m := range c.members[1:] {
		if m.season != season {
			season = 0
			break
		}
	}

	g := models.NewFileGroup(titleCase(c.anchor().clean), season, files, resolveResolution)
	g.Similarity = meanPairwise(c.members)
	return g
}

// meanPairwise averages the similarity ratio over all member pairs.
func meanPairwise(members []fileInfo) float64 {
	if len(members) < 2 {
		return 1.0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += Ratio(members[i].clean, members[j].clean)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// MergeEnriched folds already-enriched groups sharing an identical display
// name into one canonical group, recomputing similarity and best file.
func MergeEnriched(groups []*models.FileGroup) []*models.FileGroup {
	byName := make(map[string]*models.FileGroup)
	var order []string

	for _, g := range groups {
		key := strings.ToLower(g.DisplayName())
		canonical, ok := byName[key]
		if !ok {
			byName[key] = g
			order = append(order, key)
			continue
		}
		canonical.Files = append(canonical.Files, g.Files...)
		if canonical.Season != g.Season {
			canonical.Season = 0
		}
		if canonical.Series == nil {
			canonical.Series = g.Series
		}
		canonical.Recompute(resolveResolution)
		canonical.Similarity = meanPairwiseFiles(canonical.Files)
	}

	merged := make([]*models.FileGroup, 0, len(order))
	for _, key := range order {
		merged = append(merged, byName[key])
	}
	return merged
}

// meanPairwiseFiles averages the clean-name ratio over all file pairs.
func meanPairwiseFiles(files []models.MediaFile) float64 {
	if len(files) < 2 {
		return 1.0
	}
	cleans := make([]string, len(files))
	for i, f := range files {
		cleans[i] = Normalize(f.Name())
	}
	var sum float64
	var pairs int
	for i := 0; i < len(cleans); i++ {
		for j := i + 1; j < len(cleans); j++ {
			sum += Ratio(cleans[i], cleans[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// resolveResolution resolves a file's parsed resolution for best-file
// selection.
func resolveResolution(f models.MediaFile) int {
	return ExtractResolution(f.Name())
}

// titleCase upper-cases the first letter of each word of a clean name.
func titleCase(clean string) string {
	words := strings.Fields(clean)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
