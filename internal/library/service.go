// Package library orchestrates the organize pipeline: scanning the source
// tree, grouping and parsing the files, enriching the groups with series
// metadata, and moving everything into the target layout.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/executor"
	"github.com/seriarr/seriarr/internal/grouping"
	"github.com/seriarr/seriarr/internal/metadata"
	"github.com/seriarr/seriarr/internal/models"
	"github.com/seriarr/seriarr/internal/observability"
	"github.com/seriarr/seriarr/internal/organizer"
	"github.com/seriarr/seriarr/internal/parser"
	"github.com/seriarr/seriarr/internal/pipeline"
	"github.com/seriarr/seriarr/internal/scanner"
	"github.com/seriarr/seriarr/internal/workqueue"
)

// Service wires the stages of an organize run together.
type Service struct {
	cfg       *config.Config
	manager   *executor.Manager
	metadata  *metadata.Service
	organizer *organizer.Organizer
	engine    *grouping.Engine
	logger    *slog.Logger
}

// NewService creates a library service. The metadata service may be nil when
// lookups are disabled.
func NewService(cfg *config.Config, manager *executor.Manager, meta *metadata.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		manager:   manager,
		metadata:  meta,
		organizer: organizer.New(cfg.Library, logger),
		engine:    grouping.NewEngine(cfg.Grouping, logger),
		logger:    observability.WithComponent(logger, "library"),
	}
}

// runState carries intermediate stage outputs through the pipeline. Stage
// ordering is enforced by the scheduler; the mutex covers concurrent sibling
// stages.
type runState struct {
	mu        sync.Mutex
	files     []models.MediaFile
	groups    []*models.FileGroup
	ungrouped []models.MediaFile
	parsed    []models.ParsedName
	enriched  []*models.FileGroup
	reports   []GroupReport
}

func (st *runState) setScan(files []models.MediaFile) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.files = files
}

func (st *runState) snapshotFiles() []models.MediaFile {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.files
}

func (st *runState) setGroups(groups []*models.FileGroup, ungrouped []models.MediaFile) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.groups = groups
	st.ungrouped = ungrouped
}

func (st *runState) setParsed(parsed []models.ParsedName) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.parsed = parsed
}

func (st *runState) setEnriched(groups []*models.FileGroup) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.enriched = groups
}

func (st *runState) addReport(r GroupReport) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reports = append(st.reports, r)
}

// Scan runs the read-only front half of the pipeline: scanning, grouping,
// and parsing. Nothing is moved.
func (s *Service) Scan(ctx context.Context) (*Report, error) {
	return s.run(ctx, false)
}

// Organize runs the full pipeline through metadata enrichment and file
// moving. With dry-run enabled the moves are planned but not performed.
func (s *Service) Organize(ctx context.Context) (*Report, error) {
	if s.cfg.Library.TargetDir == "" && !s.cfg.Library.DryRun {
		return nil, fmt.Errorf("organize requires library.target_dir")
	}
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, organize bool) (*Report, error) {
	runID := models.NewULID().String()
	logger := observability.WithRunID(s.logger, runID)
	logger.Info("run starting",
		slog.String("root", s.cfg.Library.Root),
		slog.Bool("organize", organize),
		slog.Bool("dry_run", s.cfg.Library.DryRun))

	pool, err := s.manager.Pool(executor.PurposeGeneral)
	if err != nil {
		return nil, fmt.Errorf("acquiring general pool: %w", err)
	}

	st := &runState{}
	sched := pipeline.NewScheduler(pool, logger)
	if err := s.registerStages(sched, st, logger, organize); err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	results, err := sched.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("running pipeline: %w", err)
	}

	report := s.buildReport(runID, started, st, results)
	logger.Info("run finished",
		slog.Bool("success", report.Success()),
		slog.Int("scanned", report.Scanned),
		slog.Int("groups", len(report.Groups)))
	return report, nil
}

func (s *Service) registerStages(sched *pipeline.Scheduler, st *runState, logger *slog.Logger, organize bool) error {
	defs := []pipeline.TaskDefinition{
		{
			Stage:   models.StageScanning,
			Factory: s.scanningFactory(st, logger),
		},
		{
			Stage:     models.StageGrouping,
			DependsOn: []models.Stage{models.StageScanning},
			Factory:   s.groupingFactory(st),
		},
		{
			Stage:     models.StageParsing,
			DependsOn: []models.Stage{models.StageScanning},
			Factory:   s.parsingFactory(st),
		},
	}
	if organize {
		defs = append(defs,
			pipeline.TaskDefinition{
				Stage:     models.StageMetadataRetrieval,
				DependsOn: []models.Stage{models.StageGrouping, models.StageParsing},
				Factory:   s.metadataFactory(st, logger),
			},
			pipeline.TaskDefinition{
				Stage:     models.StageGroupMetadataRetrieval,
				DependsOn: []models.Stage{models.StageMetadataRetrieval},
				Factory:   s.mergeFactory(st),
			},
			pipeline.TaskDefinition{
				Stage:     models.StageFileMoving,
				DependsOn: []models.Stage{models.StageGroupMetadataRetrieval},
				Factory:   s.movingFactory(st),
			},
		)
	}

	for _, def := range defs {
		if err := sched.Register(def); err != nil {
			return fmt.Errorf("registering pipeline: %w", err)
		}
	}
	return nil
}

// scanningFactory yields one task that walks the library root, consuming the
// bounded queue the scanner feeds.
func (s *Service) scanningFactory(st *runState, logger *slog.Logger) pipeline.Factory {
	return func(ctx context.Context) ([]pipeline.Task, error) {
		task := pipeline.NewTask(models.StageScanning, "scan library",
			func(ctx context.Context) (any, int, error) {
				files, err := s.scanLibrary(ctx, logger)
				if err != nil {
					return nil, 0, err
				}
				st.setScan(files)
				return files, len(files), nil
			})
		return []pipeline.Task{task}, nil
	}
}

// scanLibrary runs the scanner walk on the disk pool and drains its queue
// into a slice.
func (s *Service) scanLibrary(ctx context.Context, logger *slog.Logger) ([]models.MediaFile, error) {
	pool, err := s.manager.Pool(executor.PurposeDisk)
	if err != nil {
		return nil, fmt.Errorf("acquiring disk pool: %w", err)
	}

	queue := scanner.NewBounded(s.cfg.Queue.Capacity)
	sc := scanner.New(s.cfg.Library.Root, s.cfg.Scanner, queue, logger)

	// The walk closes over the run context; the consumer loop below shares
	// its lifetime.
	walk, err := pool.Submit(func(context.Context) (any, error) {
		return nil, sc.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("submitting scan walk: %w", err)
	}

	var files []models.MediaFile
	for {
		item, err := queue.Pull(ctx, s.cfg.Queue.PullTimeout)
		if err != nil {
			if errors.Is(err, scanner.ErrQueueClosed) {
				break
			}
			if errors.Is(err, scanner.ErrPullTimeout) {
				continue
			}
			sc.Stop()
			walk.Wait(context.Background())
			return nil, fmt.Errorf("pulling scan results: %w", err)
		}
		files = append(files, item)
	}

	if _, err := walk.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.cfg.Library.Root, err)
	}
	return files, nil
}

func (s *Service) groupingFactory(st *runState) pipeline.Factory {
	return func(ctx context.Context) ([]pipeline.Task, error) {
		task := pipeline.NewTask(models.StageGrouping, "group files",
			func(ctx context.Context) (any, int, error) {
				result := s.engine.Group(st.snapshotFiles())
				st.setGroups(result.Groups, result.Ungrouped)
				if len(result.Errors) > 0 && len(result.Groups) == 0 {
					return nil, 0, result.Errors[0]
				}
				return result.Groups, len(result.Groups), nil
			})
		return []pipeline.Task{task}, nil
	}
}

func (s *Service) parsingFactory(st *runState) pipeline.Factory {
	return func(ctx context.Context) ([]pipeline.Task, error) {
		task := pipeline.NewTask(models.StageParsing, "parse filenames",
			func(ctx context.Context) (any, int, error) {
				parsed := parser.ParseAll(st.snapshotFiles())
				st.setParsed(parsed)
				return parsed, len(parsed), nil
			})
		return []pipeline.Task{task}, nil
	}
}

// metadataFactory yields one task that pushes every group through a work
// queue backed by the network pool. Lookup misses are tolerated; the group
// simply stays unenriched.
func (s *Service) metadataFactory(st *runState, logger *slog.Logger) pipeline.Factory {
	return func(ctx context.Context) ([]pipeline.Task, error) {
		task := pipeline.NewTask(models.StageMetadataRetrieval, "enrich groups",
			func(ctx context.Context) (any, int, error) {
				st.mu.Lock()
				groups := st.groups
				st.mu.Unlock()

				if len(groups) == 0 || s.metadata == nil || s.cfg.Metadata.DisableLookups {
					return nil, 0, nil
				}
				enriched, err := s.enrichGroups(ctx, groups, logger)
				return nil, enriched, err
			})
		return []pipeline.Task{task}, nil
	}
}

func (s *Service) enrichGroups(ctx context.Context, groups []*models.FileGroup, logger *slog.Logger) (int, error) {
	pool, err := s.manager.Pool(executor.PurposeNetwork)
	if err != nil {
		return 0, fmt.Errorf("acquiring network pool: %w", err)
	}

	q := workqueue.New[*models.FileGroup](workqueue.Config{
		Capacity:     len(groups),
		PullTimeout:  s.cfg.Queue.PullTimeout,
		DrainTimeout: s.cfg.Queue.DrainTimeout,
	}, pool, logger)

	for _, g := range groups {
		if err := q.Enqueue(g); err != nil {
			logger.Warn("group not enqueued for enrichment",
				slog.String("group", g.Title),
				slog.String("error", err.Error()))
		}
	}

	err = q.Start(ctx, func(ctx context.Context, g *models.FileGroup) error {
		info, err := s.metadata.Lookup(ctx, g.Title)
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) || errors.Is(err, metadata.ErrLookupsDisabled) {
				logger.Debug("no metadata for group", slog.String("group", g.Title))
				return nil
			}
			return fmt.Errorf("looking up %q: %w", g.Title, err)
		}
		g.Series = info
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("starting enrichment queue: %w", err)
	}
	if err := q.Wait(ctx); err != nil {
		return 0, fmt.Errorf("waiting for enrichment: %w", err)
	}

	stats := q.Stats()
	if stats.Processed == 0 && stats.Failed > 0 {
		return 0, fmt.Errorf("enrichment failed for all %d groups", stats.Failed)
	}
	return int(stats.Processed), nil
}

func (s *Service) mergeFactory(st *runState) pipeline.Factory {
	return func(ctx context.Context) ([]pipeline.Task, error) {
		task := pipeline.NewTask(models.StageGroupMetadataRetrieval, "merge enriched groups",
			func(ctx context.Context) (any, int, error) {
				st.mu.Lock()
				groups := st.groups
				st.mu.Unlock()

				merged := grouping.MergeEnriched(groups)
				st.setEnriched(merged)
				return merged, len(merged), nil
			})
		return []pipeline.Task{task}, nil
	}
}

// movingFactory yields one task per group so a bad group never blocks the
// rest of the library.
func (s *Service) movingFactory(st *runState) pipeline.Factory {
	return func(ctx context.Context) ([]pipeline.Task, error) {
		st.mu.Lock()
		groups := st.enriched
		st.mu.Unlock()

		tasks := make([]pipeline.Task, 0, len(groups))
		for _, g := range groups {
			group := g
			tasks = append(tasks, pipeline.NewTask(models.StageFileMoving,
				"organize "+group.DisplayName(),
				func(ctx context.Context) (any, int, error) {
					moves, placed, err := s.organizer.OrganizeGroup(ctx, group)
					if err != nil {
						return nil, 0, err
					}

					gr := GroupReport{
						Title:      group.DisplayName(),
						Season:     group.Season,
						Similarity: group.Similarity,
						Files:      len(group.Files),
						Moves:      moves,
					}
					if group.Series != nil {
						gr.Series = group.Series.Name
					}
					st.addReport(gr)

					failed := organizer.FailedCount(moves)
					if !s.organizer.DryRun() && placed == 0 && failed > 0 {
						return moves, 0, fmt.Errorf("no files placed for %s", group.DisplayName())
					}
					return moves, placed, nil
				}))
		}
		return tasks, nil
	}
}

func (s *Service) buildReport(runID string, started time.Time, st *runState, results pipeline.Results) *Report {
	st.mu.Lock()
	defer st.mu.Unlock()

	report := &Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		DryRun:     s.cfg.Library.DryRun,
		Scanned:    len(st.files),
		Groups:     st.reports,
		Stages:     stageSummaries(results),
	}
	for _, f := range st.ungrouped {
		report.Ungrouped = append(report.Ungrouped, f.Path)
	}

	// A scan-only run has no moving stage; report the groups it found.
	if len(report.Groups) == 0 {
		for _, g := range st.groups {
			gr := GroupReport{
				Title:      g.DisplayName(),
				Season:     g.Season,
				Similarity: g.Similarity,
				Files:      len(g.Files),
			}
			if g.Series != nil {
				gr.Series = g.Series.Name
			}
			report.Groups = append(report.Groups, gr)
		}
	}
	return report
}
