package alerts

import (
	"time"

	"github.com/sudo-init-do/lexhub/internal/engagement"
)

// Task type and queue names.
const (
	TaskSideEffect = "engagement:side_effect"

	QueueNotifications = "notifications"
	QueueBookkeeping   = "bookkeeping"
)

// SideEffectPayload is the task body for one side effect.
type SideEffectPayload struct {
	Effect     engagement.SideEffect `json:"effect"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
}

func queueFor(kind engagement.EffectKind) string {
	if kind == engagement.EffectRecordCompletion {
		return QueueBookkeeping
	}
	return QueueNotifications
}
