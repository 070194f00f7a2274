package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seriarr/seriarr/internal/executor"
	"github.com/seriarr/seriarr/internal/models"
)

// ErrAlreadyRun is returned when a scheduler is run a second time.
var ErrAlreadyRun = errors.New("scheduler can only run once")

// Results maps each stage to its aggregate outcome.
type Results map[models.Stage]*StageResult

// Success reports whether every stage succeeded.
func (r Results) Success() bool {
	for _, sr := range r {
		if !sr.Success {
			return false
		}
	}
	return true
}

// TotalFailed sums the failed task count over all stages.
func (r Results) TotalFailed() int {
	n := 0
	for _, sr := range r {
		n += sr.Failed
	}
	return n
}

// Scheduler runs registered stages in dependency order on a shared pool.
// A stage becomes ready once all its dependencies have finished; failed
// dependencies still count as finished, so downstream stages run and decide
// for themselves what to do with partial inputs.
type Scheduler struct {
	mu sync.Mutex

	pool   *executor.Pool
	logger *slog.Logger

	defs      map[models.Stage]*TaskDefinition
	stages    []models.Stage // registration order
	submitted []models.Stage // stage launch order
	started   bool
}

// NewScheduler creates a scheduler submitting to the given pool.
func NewScheduler(pool *executor.Pool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pool:   pool,
		logger: logger.With(slog.String("component", "scheduler")),
		defs:   make(map[models.Stage]*TaskDefinition),
	}
}

// Register adds a stage definition. Definitions cannot be changed once Run
// has been called.
func (s *Scheduler) Register(def TaskDefinition) error {
	if err := def.validate(); err != nil {
		return fmt.Errorf("registering stage: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyRun
	}
	if _, ok := s.defs[def.Stage]; ok {
		return fmt.Errorf("stage %s already registered", def.Stage)
	}
	s.defs[def.Stage] = &def
	s.stages = append(s.stages, def.Stage)
	return nil
}

// stageDone carries a finished stage back to the coordinating loop.
type stageDone struct {
	stage  models.Stage
	result *StageResult
}

// Run executes all registered stages and blocks until every stage has
// finished or the context is cancelled. It returns the per-stage results;
// the error is non-nil only for definition faults (unknown dependency,
// cycle), a second Run, or context cancellation. Task and stage failures are
// reported through the results, never as a Run error.
func (s *Scheduler) Run(ctx context.Context) (Results, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	s.started = true
	s.mu.Unlock()

	if err := s.validateGraph(); err != nil {
		return nil, err
	}

	results := make(Results, len(s.defs))
	completed := make(map[models.Stage]bool, len(s.defs))
	running := make(map[models.Stage]bool)
	doneCh := make(chan stageDone, len(s.defs))

	start := time.Now()
	for len(completed) < len(s.defs) {
		for _, stage := range s.stages {
			if completed[stage] || running[stage] || !s.ready(stage, completed) {
				continue
			}
			running[stage] = true
			s.recordSubmission(stage)
			go s.runStage(ctx, s.defs[stage], doneCh)
		}

		select {
		case d := <-doneCh:
			completed[d.stage] = true
			delete(running, d.stage)
			results[d.stage] = d.result
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}

	s.logger.Info("pipeline complete",
		slog.Int("stages", len(results)),
		slog.Bool("success", results.Success()),
		slog.Int("failed_tasks", results.TotalFailed()),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// SubmissionOrder returns the order in which stages were launched.
func (s *Scheduler) SubmissionOrder() []models.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Stage, len(s.submitted))
	copy(out, s.submitted)
	return out
}

func (s *Scheduler) recordSubmission(stage models.Stage) {
	s.mu.Lock()
	s.submitted = append(s.submitted, stage)
	s.mu.Unlock()
	s.logger.Debug("stage submitted", slog.String("stage", stage.String()))
}

// ready reports whether every dependency of a stage has finished.
func (s *Scheduler) ready(stage models.Stage, completed map[models.Stage]bool) bool {
	for _, dep := range s.defs[stage].DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// validateGraph checks that all dependencies are registered and acyclic.
func (s *Scheduler) validateGraph() error {
	for _, stage := range s.stages {
		for _, dep := range s.defs[stage].DependsOn {
			if _, ok := s.defs[dep]; !ok {
				return fmt.Errorf("stage %s depends on unregistered stage %s", stage, dep)
			}
		}
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[models.Stage]int, len(s.defs))
	var visit func(models.Stage) error
	visit = func(stage models.Stage) error {
		switch state[stage] {
		case visiting:
			return fmt.Errorf("dependency cycle involving stage %s", stage)
		case done:
			return nil
		}
		state[stage] = visiting
		for _, dep := range s.defs[stage].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[stage] = done
		return nil
	}
	for _, stage := range s.stages {
		if err := visit(stage); err != nil {
			return err
		}
	}
	return nil
}

// runStage builds, submits, and collects one stage, then reports completion.
func (s *Scheduler) runStage(ctx context.Context, def *TaskDefinition, doneCh chan<- stageDone) {
	start := time.Now()
	res := s.executeStage(ctx, def)
	res.Duration = time.Since(start)

	s.logger.Info("stage finished",
		slog.String("stage", def.Stage.String()),
		slog.Bool("success", res.Success),
		slog.Int("total", res.Total),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", res.Duration))

	doneCh <- stageDone{stage: def.Stage, result: res}
}

// executeStage runs the stage factory, submits its tasks, and aggregates the
// outcomes. Panics in the factory degrade to a failed stage result.
func (s *Scheduler) executeStage(ctx context.Context, def *TaskDefinition) (res *StageResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stage factory panicked",
				slog.String("stage", def.Stage.String()),
				slog.Any("panic", r))
			res = &StageResult{
				Stage:  def.Stage,
				Errors: []error{fmt.Errorf("stage %s panicked: %v", def.Stage, r)},
			}
		}
	}()

	tasks, err := def.Factory(ctx)
	if err != nil {
		return &StageResult{
			Stage:  def.Stage,
			Errors: []error{fmt.Errorf("stage %s factory: %w", def.Stage, err)},
		}
	}
	if len(tasks) == 0 {
		return &StageResult{Stage: def.Stage, Success: true}
	}

	futures := make([]*executor.Future, 0, len(tasks))
	var submitErrs []error
	for i, t := range tasks {
		task := t
		s.notifyProgress(def, task, i, len(tasks))
		fut, err := s.pool.Submit(func(ctx context.Context) (any, error) {
			return task.Execute(ctx), nil
		})
		if err != nil {
			submitErrs = append(submitErrs,
				fmt.Errorf("stage %s: submitting task %s: %w", def.Stage, task.Name(), err))
			continue
		}
		futures = append(futures, fut)
	}

	agg := NewAggregator(s.logger, def.OnResult)
	res = agg.Collect(ctx, def.Stage, futures)

	// Tasks that never made it to the pool still count toward the totals.
	res.Total += len(submitErrs)
	res.Failed += len(submitErrs)
	for _, e := range submitErrs {
		if len(res.Errors) >= maxRecordedErrors {
			break
		}
		res.Errors = append(res.Errors, e)
	}
	res.Success = res.Failed == 0 || res.Successful > 0
	return res
}

// notifyProgress invokes the progress callback, recovering panics.
func (s *Scheduler) notifyProgress(def *TaskDefinition, task Task, processed, total int) {
	if def.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("progress handler panicked",
				slog.String("stage", def.Stage.String()),
				slog.Any("panic", r))
		}
	}()

	msg := task.Name()
	if pr, ok := task.(ProgressReporter); ok {
		msg = pr.ProgressMessage()
	}
	def.OnProgress(def.Stage, processed, total, msg)
}
