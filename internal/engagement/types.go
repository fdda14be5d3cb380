// Package engagement holds the lifecycle rules for bookings, job postings and
// job applications. Every transition is a pure function from the current
// record to the next one plus the side effects a caller should dispatch.
package engagement

import (
	"github.com/google/uuid"
)

// Role is the authenticated capacity an actor drives a transition in.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleSystem   Role = "system"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleSystem, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor identifies who drives a transition. For RoleProvider the ID is the
// provider profile id, otherwise it is the user id.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// System is the actor used by scheduled flows such as the completion sweep.
var System = Actor{Role: RoleSystem}

type EffectKind string

const (
	EffectNotify           EffectKind = "notify"
	EffectLockSlot         EffectKind = "lock_slot"
	EffectReleaseSlot      EffectKind = "release_slot"
	EffectRequestReview    EffectKind = "request_review"
	EffectRecordCompletion EffectKind = "record_completion"
)

// Subject names the kind of record a side effect is about.
type Subject string

const (
	SubjectBooking     Subject = "booking"
	SubjectPosting     Subject = "posting"
	SubjectApplication Subject = "application"
)

// SideEffect is an instruction for an external collaborator. The engine never
// performs it.
type SideEffect struct {
	Kind          EffectKind `json:"kind"`
	Event         string     `json:"event"`
	RecipientRole Role       `json:"recipient_role"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	Subject       Subject    `json:"subject"`
	SubjectID     uuid.UUID  `json:"subject_id"`
}

func notify(event string, role Role, to uuid.UUID, subject Subject, id uuid.UUID) SideEffect {
	return SideEffect{
		Kind:          EffectNotify,
		Event:         event,
		RecipientRole: role,
		RecipientID:   to,
		Subject:       subject,
		SubjectID:     id,
	}
}
