package engagement

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/validation"
)

type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`
	AuthorID   uuid.UUID `json:"author_id" db:"author_id"`
	AuthorRole Role      `json:"author_role" db:"author_role"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type ReviewDraft struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// NewReview records actor's review of a completed booking. existing holds the
// reviews already written for the booking.
func NewReview(b Booking, actor Actor, d ReviewDraft, existing []Review, now time.Time) (Review, []SideEffect, error) {
	const op = "engagement.new_review"

	if err := validation.Struct(op, d); err != nil {
		return Review{}, nil, err
	}
	if !b.Participant(actor) {
		return Review{}, nil, apperr.Newf(apperr.KindForbidden, op, "actor is not a participant of booking %s", b.ID)
	}
	if b.Status != BookingCompleted {
		return Review{}, nil, apperr.Newf(apperr.KindInvalidTransition, op, "booking %s is %s, not completed", b.ID, b.Status)
	}
	for _, r := range existing {
		if r.AuthorID == actor.ID && r.AuthorRole == actor.Role {
			return Review{}, nil, apperr.Newf(apperr.KindConflict, op, "booking %s already reviewed", b.ID)
		}
	}

	r := Review{
		ID:         uuid.New(),
		BookingID:  b.ID,
		ProviderID: b.ProviderID,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		Rating:     d.Rating,
		Comment:    d.Comment,
		CreatedAt:  now,
	}
	to, role := b.ProviderID, RoleProvider
	if actor.Role == RoleProvider {
		to, role = b.ClientID, RoleClient
	}
	return r, []SideEffect{notify("review_received", role, to, SubjectBooking, b.ID)}, nil
}

// Summary aggregates the client-written reviews of one provider.
type Summary struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average,omitempty"`
	Stars   [5]int   `json:"stars"`
}

// Summarize ignores reviews written by providers about their clients. The
// average is rounded to two decimals and nil when there is nothing to average.
func Summarize(reviews []Review) Summary {
	var s Summary
	total := 0
	for _, r := range reviews {
		if r.AuthorRole != RoleClient || r.Rating < 1 || r.Rating > 5 {
			continue
		}
		s.Count++
		s.Stars[r.Rating-1]++
		total += r.Rating
	}
	if s.Count > 0 {
		avg := math.Round(float64(total)/float64(s.Count)*100) / 100
		s.Average = &avg
	}
	return s
}

const (
	topRatedMinReviews = 5
	topRatedMinAverage = 4.5
)

// TopRated marks providers with a sustained high average.
func (s Summary) TopRated() bool {
	return s.Count >= topRatedMinReviews && s.Average != nil && *s.Average >= topRatedMinAverage
}
