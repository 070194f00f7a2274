package pipeline

import (
	"context"
	"fmt"

	"github.com/seriarr/seriarr/internal/models"
)

// Factory produces the tasks of a stage. It is invoked exactly once, when the
// stage becomes ready, so it can read the outputs of completed dependencies.
// Returning no tasks is valid and yields an empty, successful stage.
type Factory func(ctx context.Context) ([]Task, error)

// TaskDefinition declares one stage of the pipeline.
type TaskDefinition struct {
	Stage     models.Stage
	DependsOn []models.Stage
	Factory   Factory

	// OnResult, if set, is called once per finished task, from the stage's
	// collection goroutine. Panics in the handler are recovered and logged.
	OnResult func(*TaskResult)

	// OnProgress, if set, is called when a task is about to run, with the
	// count of tasks already dispatched and the stage total.
	OnProgress func(stage models.Stage, processed, total int, message string)
}

func (d *TaskDefinition) validate() error {
	if !d.Stage.Valid() {
		return fmt.Errorf("invalid stage %d", int(d.Stage))
	}
	if d.Factory == nil {
		return fmt.Errorf("stage %s: nil factory", d.Stage)
	}
	for _, dep := range d.DependsOn {
		if dep == d.Stage {
			return fmt.Errorf("stage %s depends on itself", d.Stage)
		}
	}
	return nil
}
