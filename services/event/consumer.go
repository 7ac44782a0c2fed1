package event

import (
	"context"
	"encoding/json"
	"fmt"

	"smallbiznis-points/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "points_events_consumed_total",
	Help: "Events received from the outbox by type.",
}, []string{"type"})

// Consumer is the worker-side handler of outbox events. It logs every event
// for indexing and exports per-type counters.
type Consumer struct{}

func NewConsumer() *Consumer {
	return &Consumer{}
}

func (c *Consumer) HandleEvent(ctx context.Context, t *asynq.Task) error {
	var env Envelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	zap.L().Info("points event",
		zap.String("task_type", t.Type()),
		zap.String("event_id", env.ID),
		zap.String("tenant_id", env.TenantID),
		zap.String("event_type", string(env.Type)),
		zap.ByteString("data", env.Data),
	)
	eventsConsumed.WithLabelValues(string(env.Type)).Inc()
	return nil
}

// RegisterConsumer routes every points event task to the consumer.
func RegisterConsumer(mux *asynq.ServeMux, c *Consumer) {
	mux.HandleFunc(taskname.EventPrefix, c.HandleEvent)
}
