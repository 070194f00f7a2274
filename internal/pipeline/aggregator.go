package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seriarr/seriarr/internal/executor"
	"github.com/seriarr/seriarr/internal/models"
)

// maxRecordedErrors caps the per-stage error list so a stage with thousands
// of failing tasks does not balloon the result.
const maxRecordedErrors = 10

// StageResult is the aggregate outcome of one stage.
// Invariant: Total == Successful + Failed once the stage has been collected.
type StageResult struct {
	Stage      models.Stage
	Total      int
	Successful int
	Failed     int
	// Items sums the per-task item counts of successful tasks.
	Items int
	// Errors holds up to maxRecordedErrors task errors.
	Errors []error
	// Results holds the individual task results, in completion order.
	Results  []*TaskResult
	Duration time.Duration
	// Success is true when no task failed or at least one succeeded.
	// A stage with zero tasks is successful.
	Success bool
}

// Aggregator collects task futures into a StageResult. Partial failure is
// tolerated: a stage counts as successful as long as any task succeeded, and
// the failures stay visible in the counters and error list.
type Aggregator struct {
	logger   *slog.Logger
	onResult func(*TaskResult)
}

// NewAggregator creates an aggregator. onResult may be nil.
func NewAggregator(logger *slog.Logger, onResult func(*TaskResult)) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger, onResult: onResult}
}

// Collect waits for every future and folds the outcomes into a StageResult.
// When the context is cancelled mid-collection, the remaining futures are
// cancelled and recorded as failed so the Total invariant still holds.
func (a *Aggregator) Collect(ctx context.Context, stage models.Stage, futures []*executor.Future) *StageResult {
	start := time.Now()
	res := &StageResult{Stage: stage, Total: len(futures)}

	for i, f := range futures {
		value, err := f.Wait(ctx)
		if err != nil && ctx.Err() != nil {
			a.abort(res, futures[i:])
			break
		}
		a.record(res, value, err)
	}

	res.Duration = time.Since(start)
	res.Success = res.Failed == 0 || res.Successful > 0
	return res
}

// record folds one finished future into the result and invokes the handler.
func (a *Aggregator) record(res *StageResult, value any, err error) {
	tr, ok := value.(*TaskResult)
	if err == nil && (!ok || tr == nil) {
		err = fmt.Errorf("stage %s: task returned no result", res.Stage)
	}
	if err == nil && tr.Err != nil {
		err = tr.Err
	}
	if err == nil && !tr.Success {
		err = fmt.Errorf("stage %s: task %s reported failure", res.Stage, tr.Name)
	}

	if err != nil {
		res.Failed++
		if len(res.Errors) < maxRecordedErrors {
			res.Errors = append(res.Errors, err)
		}
	} else {
		res.Successful++
		res.Items += tr.Items
	}

	if tr != nil {
		res.Results = append(res.Results, tr)
		a.invokeHandler(tr)
	}
}

// abort cancels and force-records the futures not yet observed as failed.
func (a *Aggregator) abort(res *StageResult, remaining []*executor.Future) {
	a.logger.Warn("stage collection aborted",
		slog.String("stage", res.Stage.String()),
		slog.Int("unobserved", len(remaining)))

	for _, f := range remaining {
		f.Cancel()
		res.Failed++
		if len(res.Errors) < maxRecordedErrors {
			res.Errors = append(res.Errors, executor.ErrCancelled)
		}
	}
}

// invokeHandler calls the result handler, recovering panics so a bad handler
// cannot take down collection.
func (a *Aggregator) invokeHandler(tr *TaskResult) {
	if a.onResult == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("result handler panicked",
				slog.String("stage", tr.Stage.String()),
				slog.String("task", tr.Name),
				slog.Any("panic", r))
		}
	}()
	a.onResult(tr)
}
