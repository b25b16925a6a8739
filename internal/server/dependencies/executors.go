// Package dependencies wires the shared runtime pieces: executors, upstream
// client, store, model registry and orchestrator.
package dependencies

import (
	"context"
	"reflect"

	"github.com/zhenzou/executors"

	"github.com/prismhub/prism/internal/log"
)

type ErrorHandler struct{}

func (h *ErrorHandler) CatchError(runnable executors.Runnable, err error) {
	log.Error(context.Background(), "background task failed", log.Cause(err))
}

type RejectionHandler struct{}

func (h *RejectionHandler) RejectExecution(runnable executors.Runnable, e executors.Executor) error {
	log.Error(context.Background(), "background task rejected, pool saturated",
		log.String("runnable", reflect.ValueOf(runnable).String()))

	return nil
}

// NewExecutors builds the shared scheduled executor used for background
// response tasks and checkpoint debouncing.
func NewExecutors() executors.ScheduledExecutor {
	return executors.NewPoolScheduleExecutor(
		executors.WithMaxConcurrent(64),
		executors.WithMaxBlockingTasks(1024),
		executors.WithErrorHandler(&ErrorHandler{}),
		executors.WithRejectionHandler(&RejectionHandler{}),
	)
}
