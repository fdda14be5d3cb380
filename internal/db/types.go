package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

// CandidateQuery narrows the providers loaded for ranking. It is a coarse
// prefilter; the ranker applies the exact rules.
type CandidateQuery struct {
	Type            *provider.Type
	Specializations []string // normalized tags, all required
	RequireLocation bool
}

type BookingQuery struct {
	ClientID   *uuid.UUID
	ProviderID *uuid.UUID
	Statuses   []engagement.BookingStatus
	// ElapsedBy keeps bookings whose end (or start, without an end) is at or
	// before the given time.
	ElapsedBy *time.Time
	Limit     uint64
	Offset    uint64
}

type Notification struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	RecipientID   uuid.UUID          `json:"recipient_id" db:"recipient_id"`
	RecipientRole engagement.Role    `json:"recipient_role" db:"recipient_role"`
	Event         string             `json:"event" db:"event"`
	Subject       engagement.Subject `json:"subject" db:"subject"`
	SubjectID     uuid.UUID          `json:"subject_id" db:"subject_id"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	ReadAt        *time.Time         `json:"read_at,omitempty" db:"read_at"`
}

type Stats struct {
	Providers    int                                  `json:"providers"`
	Bookings     map[engagement.BookingStatus]int     `json:"bookings"`
	Postings     map[engagement.PostingStatus]int     `json:"postings"`
	Applications map[engagement.ApplicationStatus]int `json:"applications"`
	Reviews      int                                  `json:"reviews"`
}

func NewStats() Stats {
	return Stats{
		Bookings:     map[engagement.BookingStatus]int{},
		Postings:     map[engagement.PostingStatus]int{},
		Applications: map[engagement.ApplicationStatus]int{},
	}
}
