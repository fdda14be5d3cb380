package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/logging"
)

// Sink is where processed effects land.
type Sink interface {
	CreateNotification(ctx context.Context, n db.Notification) error
	RecordCompletion(ctx context.Context, providerID uuid.UUID) error
}

type Processor struct {
	sink Sink
	log  *logging.Logger
}

func NewProcessor(sink Sink, log *logging.Logger) *Processor {
	return &Processor{sink: sink, log: log}
}

// Register wires the processor into an asynq mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskSideEffect, p.HandleTask)
}

func (p *Processor) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload SideEffectPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode side effect: %v: %w", err, asynq.SkipRetry)
	}
	return p.Apply(ctx, payload.Effect)
}

// Apply performs one side effect. Slot locking belongs to the external
// calendar, so those effects are only logged here.
func (p *Processor) Apply(ctx context.Context, e engagement.SideEffect) error {
	switch e.Kind {
	case engagement.EffectNotify:
		return p.notify(ctx, e, e.Event)
	case engagement.EffectRequestReview:
		return p.notify(ctx, e, "review_requested")
	case engagement.EffectRecordCompletion:
		if err := p.sink.RecordCompletion(ctx, e.RecipientID); err != nil {
			return fmt.Errorf("record completion for %s: %w", e.RecipientID, err)
		}
		p.log.Info("completion recorded", "provider_id", e.RecipientID, "subject", e.Subject, "subject_id", e.SubjectID)
		return nil
	case engagement.EffectLockSlot, engagement.EffectReleaseSlot:
		p.log.Info("calendar slot change", "kind", e.Kind, "provider_id", e.RecipientID, "booking_id", e.SubjectID)
		return nil
	default:
		p.log.Warn("unknown side effect dropped", "kind", e.Kind)
		return nil
	}
}

func (p *Processor) notify(ctx context.Context, e engagement.SideEffect, event string) error {
	n := db.Notification{
		RecipientID:   e.RecipientID,
		RecipientRole: e.RecipientRole,
		Event:         event,
		Subject:       e.Subject,
		SubjectID:     e.SubjectID,
	}
	if err := p.sink.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification %s: %w", event, err)
	}
	p.log.Debug("notification stored", "event", event, "recipient_id", e.RecipientID, "role", e.RecipientRole)
	return nil
}
