package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/metrics"
)

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns side effects into asynq tasks.
type Dispatcher struct {
	q       Enqueuer
	log     *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewDispatcher(q Enqueuer, log *logging.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{q: q, log: log, metrics: m, now: time.Now}
}

// Dispatch enqueues every effect and reports the ones that failed together.
// A failed enqueue never undoes the transition that produced it.
func (d *Dispatcher) Dispatch(ctx context.Context, effects []engagement.SideEffect) error {
	var errs []error
	for _, e := range effects {
		b, err := json.Marshal(SideEffectPayload{Effect: e, EnqueuedAt: d.now().UTC()})
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", e.Kind, err))
			continue
		}
		task := asynq.NewTask(TaskSideEffect, b)
		if _, err := d.q.EnqueueContext(ctx, task, asynq.Queue(queueFor(e.Kind)), asynq.MaxRetry(5)); err != nil {
			d.metrics.ObserveAlert(string(e.Kind), "error")
			d.log.Error("enqueue side effect failed", "kind", e.Kind, "event", e.Event, "subject_id", e.SubjectID, "err", err)
			errs = append(errs, fmt.Errorf("enqueue %s: %w", e.Kind, err))
			continue
		}
		d.metrics.ObserveAlert(string(e.Kind), "ok")
	}
	return errors.Join(errs...)
}

// Inline applies effects synchronously. It backs local runs without Redis.
type Inline struct {
	p *Processor
}

func NewInline(p *Processor) *Inline {
	return &Inline{p: p}
}

func (i *Inline) Dispatch(ctx context.Context, effects []engagement.SideEffect) error {
	var errs []error
	for _, e := range effects {
		if err := i.p.Apply(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
