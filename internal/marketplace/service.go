// Package marketplace wires discovery, engagement and currency over a store
// and exposes them over HTTP.
package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/currency"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/discovery"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/metrics"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

// Store is the persistence the marketplace needs. Both the Postgres store and
// the in-memory store satisfy it.
type Store interface {
	ListProviderCandidates(ctx context.Context, q db.CandidateQuery) ([]provider.Provider, error)
	GetProvider(ctx context.Context, id uuid.UUID) (provider.Provider, error)
	SaveProvider(ctx context.Context, p provider.Provider) error

	CreateBooking(ctx context.Context, b engagement.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (engagement.Booking, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, fn func(engagement.Booking) (engagement.Booking, error)) (engagement.Booking, error)
	ListBookings(ctx context.Context, q db.BookingQuery) ([]engagement.Booking, error)

	CreatePosting(ctx context.Context, p engagement.Posting) error
	GetPostingGroup(ctx context.Context, postingID uuid.UUID) (engagement.PostingGroup, error)
	PostingIDForApplication(ctx context.Context, applicationID uuid.UUID) (uuid.UUID, error)
	UpdatePostingGroup(ctx context.Context, postingID uuid.UUID, fn func(engagement.PostingGroup) (engagement.PostingGroup, error)) (engagement.PostingGroup, error)
	AddApplication(ctx context.Context, postingID uuid.UUID, fn func(engagement.PostingGroup) (engagement.Application, error)) (engagement.Application, error)
	ListPostings(ctx context.Context, clientID uuid.UUID) ([]engagement.Posting, error)

	AddReview(ctx context.Context, bookingID uuid.UUID, fn func(engagement.Booking, []engagement.Review) (engagement.Review, error)) (engagement.Review, error)
	ListProviderReviews(ctx context.Context, providerID uuid.UUID) ([]engagement.Review, error)
}

// Dispatcher receives side effects after their transition has committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, effects []engagement.SideEffect) error
}

type Option func(*Service)

func WithRanker(r *discovery.Ranker) Option {
	return func(s *Service) { s.ranker = r }
}

// WithPlatformFee sets the fee charged on new bookings, in basis points.
func WithPlatformFee(bps int64) Option {
	return func(s *Service) { s.feeBps = bps }
}

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatch = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store    Store
	money    *currency.Normalizer
	ranker   *discovery.Ranker
	feeBps   int64
	dispatch Dispatcher
	metrics  *metrics.Metrics
	log      *logging.Logger
	now      func() time.Time
}

func NewService(store Store, money *currency.Normalizer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		money:  money,
		ranker: discovery.NewRanker(),
		feeBps: 1000,
		log:    logging.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit hands effects to the dispatcher. The transition is already durable,
// so delivery failures are logged and not returned.
func (s *Service) emit(ctx context.Context, effects []engagement.SideEffect) {
	if s.dispatch == nil || len(effects) == 0 {
		return
	}
	if err := s.dispatch.Dispatch(ctx, effects); err != nil {
		s.log.Error("dispatching side effects failed", "count", len(effects), "err", err)
	}
}

func (s *Service) observe(entity, action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveTransition(entity, action, outcome)
}

func requireRole(op string, actor engagement.Actor, roles ...engagement.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return apperr.Newf(apperr.KindForbidden, op, "%s may not do this", actor.Role)
}
