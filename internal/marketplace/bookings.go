package marketplace

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

// CreateBooking opens a pending booking for the calling client. When the
// booking names a fixed-price service and no total is given, the service
// price is used.
func (s *Service) CreateBooking(ctx context.Context, actor engagement.Actor, d engagement.BookingDraft) (engagement.Booking, error) {
	const op = "marketplace.create_booking"

	if err := requireRole(op, actor, engagement.RoleClient); err != nil {
		return engagement.Booking{}, err
	}
	d.ClientID = actor.ID

	p, err := s.store.GetProvider(ctx, d.ProviderID)
	if err != nil {
		return engagement.Booking{}, err
	}
	if d.ServiceID != nil {
		svc, ok := findService(p, *d.ServiceID)
		if !ok {
			return engagement.Booking{}, apperr.Newf(apperr.KindValidation, op, "service %s is not offered by provider %s", *d.ServiceID, p.ID)
		}
		if d.TotalAmount == 0 && svc.Mode == provider.PricingFixed {
			d.TotalAmount = svc.Amount
		}
	}

	b, err := engagement.NewBooking(d, s.feeBps, s.now())
	if err != nil {
		return engagement.Booking{}, err
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return engagement.Booking{}, err
	}
	s.emit(ctx, []engagement.SideEffect{{
		Kind:          engagement.EffectNotify,
		Event:         "booking_requested",
		RecipientRole: engagement.RoleProvider,
		RecipientID:   b.ProviderID,
		Subject:       engagement.SubjectBooking,
		SubjectID:     b.ID,
	}})
	return b, nil
}

func findService(p provider.Provider, id uuid.UUID) (provider.Service, bool) {
	for _, svc := range p.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return provider.Service{}, false
}

// TransitionBooking applies action to the booking under the store's row lock.
// The saved booking carries the new status; its side effects are dispatched
// and also returned to the caller.
func (s *Service) TransitionBooking(ctx context.Context, actor engagement.Actor, id uuid.UUID, action string) (engagement.Booking, []engagement.SideEffect, error) {
	act, err := engagement.ParseBookingAction(action)
	if err != nil {
		s.observe("booking", "unknown", err)
		return engagement.Booking{}, nil, err
	}

	var effects []engagement.SideEffect
	b, err := s.store.UpdateBooking(ctx, id, func(cur engagement.Booking) (engagement.Booking, error) {
		next, eff, err := engagement.TransitionBooking(cur, act, actor, s.now())
		effects = eff
		return next, err
	})
	s.observe("booking", string(act), err)
	if err != nil {
		return engagement.Booking{}, nil, err
	}

	s.log.Info("booking transitioned", "booking_id", b.ID, "action", act, "status", b.Status, "actor_role", actor.Role)
	s.emit(ctx, effects)
	return b, effects, nil
}

// GetBooking returns a booking the actor takes part in. Admins see all.
func (s *Service) GetBooking(ctx context.Context, actor engagement.Actor, id uuid.UUID) (engagement.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return engagement.Booking{}, err
	}
	if actor.Role != engagement.RoleAdmin && !b.Participant(actor) {
		return engagement.Booking{}, apperr.Newf(apperr.KindNotFound, "marketplace.get_booking", "booking %s not found", id)
	}
	return b, nil
}

// ListMyBookings lists the bookings the actor is a party to, newest first.
func (s *Service) ListMyBookings(ctx context.Context, actor engagement.Actor, statuses []engagement.BookingStatus, limit, offset uint64) ([]engagement.Booking, error) {
	q := db.BookingQuery{Statuses: statuses, Limit: limit, Offset: offset}
	switch actor.Role {
	case engagement.RoleClient:
		q.ClientID = &actor.ID
	case engagement.RoleProvider:
		q.ProviderID = &actor.ID
	default:
		return nil, apperr.Newf(apperr.KindForbidden, "marketplace.list_my_bookings", "%s has no bookings", actor.Role)
	}
	return s.store.ListBookings(ctx, q)
}

// CompleteElapsed completes confirmed bookings whose window has passed, acting
// as the system. Bookings that changed under it are skipped.
func (s *Service) CompleteElapsed(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ListBookings(ctx, db.BookingQuery{
		Statuses:  []engagement.BookingStatus{engagement.BookingConfirmed},
		ElapsedBy: &now,
	})
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, b := range due {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		_, _, err := s.TransitionBooking(ctx, engagement.System, b.ID, string(engagement.BookingComplete))
		switch {
		case err == nil:
			completed++
		case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrTerminalStateViolation):
			s.log.Debug("booking changed before sweep", "booking_id", b.ID, "err", err)
		default:
			return completed, err
		}
	}
	if len(due) > 0 {
		s.log.Info("completion sweep finished", "due", len(due), "completed", completed)
	}
	return completed, nil
}
