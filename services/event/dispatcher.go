package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/db/option"
	"smallbiznis-points/pkg/db/pagination"
	"smallbiznis-points/pkg/repository"
	"smallbiznis-points/pkg/task"
	"smallbiznis-points/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxDispatchAttempts = 10

// Envelope is the asynq task payload published for every outbox row.
type Envelope struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Type      Type            `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type Dispatcher struct {
	outbox   repository.Repository[Outbox]
	enqueuer task.Enqueuer
	batch    int
	now      func() time.Time
}

type DispatcherParams struct {
	fx.In
	DB       *gorm.DB
	Enqueuer task.Enqueuer
	Config   *config.Config
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	batch := p.Config.Points.OutboxBatch
	if batch <= 0 {
		batch = 100
	}
	return &Dispatcher{
		outbox:   repository.ProvideStore[Outbox](p.DB),
		enqueuer: p.Enqueuer,
		batch:    batch,
		now:      time.Now,
	}
}

// DispatchPending publishes undelivered rows in id order and returns how many were delivered.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	rows, err := d.outbox.Find(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "dispatched_at", Operator: option.ISNULL}),
		option.ApplyOperator(option.Condition{Field: "attempts", Operator: option.LT, Value: maxDispatchAttempts}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
		option.ApplyPagination(pagination.Pagination{Limit: d.batch}),
	)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, row := range rows {
		zapLog := zap.L().With(zap.String("event_id", row.ID), zap.String("event_type", string(row.Type)))

		payload, err := json.Marshal(Envelope{
			ID:        row.ID,
			TenantID:  row.TenantID,
			Type:      row.Type,
			CreatedAt: row.CreatedAt,
			Data:      json.RawMessage(row.Payload),
		})
		if err != nil {
			return delivered, err
		}

		t := asynq.NewTask(taskname.ForEvent(string(row.Type)), payload)
		_, err = d.enqueuer.Enqueue(ctx, t,
			asynq.TaskID(row.ID),
			asynq.Queue(task.QueueEvents),
			asynq.MaxRetry(5),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			zapLog.Warn("failed to dispatch event", zap.Error(err))
			if uerr := d.outbox.Update(ctx, row.ID, map[string]any{
				"attempts":   row.Attempts + 1,
				"last_error": err.Error(),
			}); uerr != nil {
				return delivered, uerr
			}
			continue
		}

		if err := d.outbox.Update(ctx, row.ID, map[string]any{"dispatched_at": d.now()}); err != nil {
			return delivered, err
		}
		delivered++
	}

	return delivered, nil
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

// StartDispatcher runs DispatchPending on POINTS.OUTBOX_SPEC.
func StartDispatcher(lc fx.Lifecycle, cfg *config.Config, d *Dispatcher) error {
	logger := cronLogger{l: zap.L().Sugar()}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(logger)), cron.WithLogger(logger))

	spec := cfg.Points.OutboxSpec
	if spec == "" {
		spec = "@every 5s"
	}

	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := d.DispatchPending(ctx)
		if err != nil {
			zap.L().Error("[Outbox] dispatch failed", zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("[Outbox] dispatched events", zap.Int("count", n))
		}
	}); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("[Outbox] dispatcher started", zap.String("spec", spec))
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}
