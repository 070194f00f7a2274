// Package pipeline schedules dependency-gated stages of work onto a shared
// worker pool and aggregates their per-task outcomes. A stage runs as soon as
// every stage it depends on has finished, regardless of whether those stages
// succeeded; independent stages run concurrently.
package pipeline

import (
	"context"
	"time"

	"github.com/seriarr/seriarr/internal/models"
)

// Task is a single schedulable unit of work within a stage.
type Task interface {
	// Name identifies the task in logs and results.
	Name() string
	// Execute runs the task. It must return a non-nil result; the scheduler
	// treats a nil result as a task failure.
	Execute(ctx context.Context) *TaskResult
}

// ProgressReporter is implemented by tasks that can describe themselves for
// progress callbacks before execution starts.
type ProgressReporter interface {
	ProgressMessage() string
}

// TaskResult is the outcome of one task execution.
type TaskResult struct {
	Stage   models.Stage
	Name    string
	Success bool
	// Payload carries the stage-specific output (scanned files, groups, ...).
	Payload any
	// Items counts the units the task handled, for aggregate accounting.
	Items    int
	Err      error
	Duration time.Duration
	Metadata map[string]string
}

// funcTask adapts a plain function to the Task interface.
type funcTask struct {
	stage models.Stage
	name  string
	fn    func(ctx context.Context) (payload any, items int, err error)
}

// NewTask wraps a function as a Task. Success is inferred from the returned
// error and the duration is measured around the call.
func NewTask(stage models.Stage, name string, fn func(ctx context.Context) (any, int, error)) Task {
	return &funcTask{stage: stage, name: name, fn: fn}
}

func (t *funcTask) Name() string { return t.name }

func (t *funcTask) Execute(ctx context.Context) *TaskResult {
	start := time.Now()
	payload, items, err := t.fn(ctx)
	return &TaskResult{
		Stage:    t.stage,
		Name:     t.name,
		Success:  err == nil,
		Payload:  payload,
		Items:    items,
		Err:      err,
		Duration: time.Since(start),
	}
}

func (t *funcTask) ProgressMessage() string { return t.name }
