package library

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seriarr/seriarr/internal/models"
	"github.com/seriarr/seriarr/internal/organizer"
	"github.com/seriarr/seriarr/internal/pipeline"
)

// Report summarizes one organize run, exportable as YAML.
type Report struct {
	RunID      string         `yaml:"run_id"`
	StartedAt  time.Time      `yaml:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at"`
	DryRun     bool           `yaml:"dry_run"`
	Scanned    int            `yaml:"scanned"`
	Groups     []GroupReport  `yaml:"groups,omitempty"`
	Ungrouped  []string       `yaml:"ungrouped,omitempty"`
	Stages     []StageSummary `yaml:"stages"`
}

// GroupReport summarizes one series group and its file moves.
type GroupReport struct {
	Title      string               `yaml:"title"`
	Season     int                  `yaml:"season,omitempty"`
	Similarity float64              `yaml:"similarity"`
	Series     string               `yaml:"series,omitempty"`
	Files      int                  `yaml:"files"`
	Moves      []organizer.FileMove `yaml:"moves,omitempty"`
}

// StageSummary summarizes one pipeline stage.
type StageSummary struct {
	Stage      string        `yaml:"stage"`
	Success    bool          `yaml:"success"`
	Total      int           `yaml:"total"`
	Successful int           `yaml:"successful"`
	Failed     int           `yaml:"failed"`
	Duration   time.Duration `yaml:"duration"`
	Errors     []string      `yaml:"errors,omitempty"`
}

// Success reports whether every stage of the run succeeded.
func (r *Report) Success() bool {
	for _, s := range r.Stages {
		if !s.Success {
			return false
		}
	}
	return true
}

// WriteTo writes the report as YAML.
func (r *Report) WriteTo(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

// Export writes the report to a YAML file.
func (r *Report) Export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	return r.WriteTo(f)
}

// stageSummaries converts pipeline results to summaries in stage order.
func stageSummaries(results pipeline.Results) []StageSummary {
	var out []StageSummary
	for _, stage := range models.AllStages {
		res, ok := results[stage]
		if !ok {
			continue
		}
		sum := StageSummary{
			Stage:      stage.String(),
			Success:    res.Success,
			Total:      res.Total,
			Successful: res.Successful,
			Failed:     res.Failed,
			Duration:   res.Duration,
		}
		for _, e := range res.Errors {
			sum.Errors = append(sum.Errors, e.Error())
		}
		out = append(out, sum)
	}
	return out
}
