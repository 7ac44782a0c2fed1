package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var enqueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "points_tasks_enqueued_total",
	Help: "Tasks handed to asynq by type and result.",
}, []string{"type", "result"})

// Enqueuer is the producing side of asynq used by the outbox dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuer{client: client}
}

// Enqueue keeps asynq.ErrTaskIDConflict reachable with errors.Is so callers can
// treat a duplicate task id as already delivered.
func (e *enqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	switch {
	case err == nil:
		enqueued.WithLabelValues(task.Type(), "ok").Inc()
		return info, nil
	case errors.Is(err, asynq.ErrTaskIDConflict):
		enqueued.WithLabelValues(task.Type(), "duplicate").Inc()
	default:
		enqueued.WithLabelValues(task.Type(), "error").Inc()
		zap.L().Warn("failed to enqueue task", zap.String("task_type", task.Type()), zap.Error(err))
	}
	return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
}
