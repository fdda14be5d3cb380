package engagement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/validation"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type BookingAction string

const (
	BookingConfirm  BookingAction = "confirm"
	BookingComplete BookingAction = "complete"
	BookingCancel   BookingAction = "cancel"
)

func ParseBookingAction(s string) (BookingAction, error) {
	switch a := BookingAction(s); a {
	case BookingConfirm, BookingComplete, BookingCancel:
		return a, nil
	default:
		return "", apperr.Newf(apperr.KindValidation, "engagement.booking", "unknown booking action %q", s)
	}
}

// bookingGraph lists every legal edge. Anything absent is an InvalidTransition.
var bookingGraph = map[BookingStatus]map[BookingAction]BookingStatus{
	BookingPending: {
		BookingConfirm: BookingConfirmed,
		BookingCancel:  BookingCancelled,
	},
	BookingConfirmed: {
		BookingComplete: BookingCompleted,
		BookingCancel:   BookingCancelled,
	},
}

type Booking struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	ClientID    uuid.UUID     `json:"client_id" db:"client_id"`
	ProviderID  uuid.UUID     `json:"provider_id" db:"provider_id"`
	ServiceID   *uuid.UUID    `json:"service_id,omitempty" db:"service_id"`
	StartTime   time.Time     `json:"start_time" db:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty" db:"end_time"`
	Status      BookingStatus `json:"status" db:"status"`
	TotalAmount int64         `json:"total_amount" db:"total_amount"`
	PlatformFee int64         `json:"platform_fee" db:"platform_fee"`
	Notes       string        `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// Participant reports whether actor is the booking's client or provider.
func (b Booking) Participant(a Actor) bool {
	switch a.Role {
	case RoleClient:
		return a.ID == b.ClientID
	case RoleProvider:
		return a.ID == b.ProviderID
	default:
		return false
	}
}

// Elapsed reports whether the booking window is over at now. Without an end
// time the window is considered over once it has started.
func (b Booking) Elapsed(now time.Time) bool {
	if b.EndTime != nil {
		return !now.Before(*b.EndTime)
	}
	return !now.Before(b.StartTime)
}

// TransitionBooking applies action to b. On error the returned booking is b
// unchanged.
func TransitionBooking(b Booking, action BookingAction, actor Actor, now time.Time) (Booking, []SideEffect, error) {
	const op = "engagement.booking"

	if _, err := ParseBookingAction(string(action)); err != nil {
		return b, nil, err
	}
	if b.Status.Terminal() {
		return b, nil, apperr.Newf(apperr.KindTerminalStateViolation, op, "booking %s is %s", b.ID, b.Status)
	}
	if actor.Role != RoleSystem && !b.Participant(actor) {
		return b, nil, apperr.Newf(apperr.KindForbidden, op, "actor is not a participant of booking %s", b.ID)
	}

	next, ok := bookingGraph[b.Status][action]
	if !ok {
		return b, nil, apperr.Newf(apperr.KindInvalidTransition, op, "cannot %s a %s booking", action, b.Status)
	}

	switch action {
	case BookingConfirm:
		if actor.Role != RoleProvider {
			return b, nil, apperr.New(apperr.KindForbidden, op, "only the provider can confirm a booking")
		}
	case BookingComplete:
		if actor.Role == RoleSystem && !b.Elapsed(now) {
			return b, nil, apperr.Newf(apperr.KindInvalidTransition, op, "booking %s window has not elapsed", b.ID)
		}
		if now.Before(b.StartTime) {
			return b, nil, apperr.Newf(apperr.KindInvalidTransition, op, "booking %s has not started", b.ID)
		}
	case BookingCancel:
		if actor.Role == RoleSystem {
			return b, nil, apperr.New(apperr.KindForbidden, op, "bookings are cancelled by a participant")
		}
	}

	prev := b.Status
	b.Status = next
	b.UpdatedAt = now
	return b, bookingEffects(b, prev, actor), nil
}

func bookingEffects(b Booking, prev BookingStatus, actor Actor) []SideEffect {
	switch b.Status {
	case BookingConfirmed:
		return []SideEffect{
			notify("booking_confirmed", RoleClient, b.ClientID, SubjectBooking, b.ID),
			{Kind: EffectLockSlot, RecipientRole: RoleProvider, RecipientID: b.ProviderID, Subject: SubjectBooking, SubjectID: b.ID},
		}
	case BookingCompleted:
		return []SideEffect{
			notify("booking_completed", RoleClient, b.ClientID, SubjectBooking, b.ID),
			notify("booking_completed", RoleProvider, b.ProviderID, SubjectBooking, b.ID),
			{Kind: EffectRecordCompletion, RecipientRole: RoleProvider, RecipientID: b.ProviderID, Subject: SubjectBooking, SubjectID: b.ID},
			{Kind: EffectRequestReview, RecipientRole: RoleClient, RecipientID: b.ClientID, Subject: SubjectBooking, SubjectID: b.ID},
		}
	case BookingCancelled:
		var effects []SideEffect
		if actor.Role == RoleClient {
			effects = append(effects, notify("booking_cancelled", RoleProvider, b.ProviderID, SubjectBooking, b.ID))
		} else {
			effects = append(effects, notify("booking_cancelled", RoleClient, b.ClientID, SubjectBooking, b.ID))
		}
		if prev == BookingConfirmed {
			effects = append(effects, SideEffect{Kind: EffectReleaseSlot, RecipientRole: RoleProvider, RecipientID: b.ProviderID, Subject: SubjectBooking, SubjectID: b.ID})
		}
		return effects
	}
	return nil
}

// BookingDraft is the client's request to book a provider.
type BookingDraft struct {
	ClientID    uuid.UUID  `json:"-" validate:"required"`
	ProviderID  uuid.UUID  `json:"provider_id" validate:"required"`
	ServiceID   *uuid.UUID `json:"service_id,omitempty"`
	StartTime   time.Time  `json:"start_time" validate:"required"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	TotalAmount int64      `json:"total_amount" validate:"gte=0"`
	Notes       string     `json:"notes,omitempty" validate:"max=2000"`
}

// NewBooking builds a pending booking, charging feeBps basis points of the
// total as the platform fee.
func NewBooking(d BookingDraft, feeBps int64, now time.Time) (Booking, error) {
	const op = "engagement.new_booking"

	if err := validation.Struct(op, d); err != nil {
		return Booking{}, err
	}
	if d.EndTime != nil && !d.EndTime.After(d.StartTime) {
		return Booking{}, apperr.New(apperr.KindValidation, op, "end time must be after start time")
	}
	if d.StartTime.Before(now) {
		return Booking{}, apperr.New(apperr.KindValidation, op, "start time is in the past")
	}
	fee, err := PlatformFee(d.TotalAmount, feeBps)
	if err != nil {
		return Booking{}, err
	}

	return Booking{
		ID:          uuid.New(),
		ClientID:    d.ClientID,
		ProviderID:  d.ProviderID,
		ServiceID:   d.ServiceID,
		StartTime:   d.StartTime.UTC(),
		EndTime:     utc(d.EndTime),
		Status:      BookingPending,
		TotalAmount: d.TotalAmount,
		PlatformFee: fee,
		Notes:       d.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// PlatformFee is total * bps / 10000 rounded half away from zero. bps is
// bounded to [0, 10000] so the fee never exceeds the total.
func PlatformFee(total, bps int64) (int64, error) {
	if total < 0 {
		return 0, apperr.New(apperr.KindValidation, "engagement.fee", "total amount is negative")
	}
	if bps < 0 || bps > 10_000 {
		return 0, apperr.Newf(apperr.KindValidation, "engagement.fee", "fee of %d bps out of range", bps)
	}
	fee := decimal.NewFromInt(total).Mul(decimal.NewFromInt(bps)).Shift(-4).Round(0)
	return fee.IntPart(), nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
