package models

// FileGroup is a cluster of files believed to belong to one series/season.
type FileGroup struct {
	ID         ULID
	Title      string
	Season     int // 0 when unknown or mixed
	Similarity float64
	Files      []MediaFile
	Best       MediaFile
	Series     *SeriesInfo // set once metadata retrieval has run
}

// ResolutionFunc resolves the parsed vertical resolution for a file.
// Returns 0 when the resolution is unknown.
type ResolutionFunc func(MediaFile) int

// NewFileGroup creates a group with a fresh ID over the given files.
func NewFileGroup(title string, season int, files []MediaFile, resolve ResolutionFunc) *FileGroup {
	g := &FileGroup{
		ID:     NewULID(),
		Title:  title,
		Season: season,
		Files:  files,
	}
	g.Recompute(resolve)
	return g
}

// DisplayName returns the enriched series name when available,
// falling back to the parsed title.
func (g *FileGroup) DisplayName() string {
	if g.Series != nil && g.Series.Name != "" {
		return g.Series.Name
	}
	return g.Title
}

// Add appends a file and recomputes the best file.
func (g *FileGroup) Add(f MediaFile, resolve ResolutionFunc) {
	g.Files = append(g.Files, f)
	g.Recompute(resolve)
}

// Recompute re-selects the best file: highest parsed resolution first,
// then largest size.
func (g *FileGroup) Recompute(resolve ResolutionFunc) {
	if len(g.Files) == 0 {
		g.Best = MediaFile{}
		return
	}

	best := g.Files[0]
	bestRes := resolveOrZero(resolve, best)
	for _, f := range g.Files[1:] {
		res := resolveOrZero(resolve, f)
		if res > bestRes || (res == bestRes && f.Size > best.Size) {
			best = f
			bestRes = res
		}
	}
	g.Best = best
}

func resolveOrZero(resolve ResolutionFunc, f MediaFile) int {
	if resolve == nil {
		return 0
	}
	return resolve(f)
}

// SeriesInfo holds series-level metadata from the lookup service.
type SeriesInfo struct {
	Name     string
	Year     int
	Network  string
	Overview string
	Rating   float64
}
