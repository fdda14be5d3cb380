// Package memstore is an in-process store with the same contract as the
// Postgres store. Read-then-write operations hold a per-entity mutex in place
// of row locks.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

type Store struct {
	mu            sync.RWMutex
	providers     map[uuid.UUID]provider.Provider
	bookings      map[uuid.UUID]engagement.Booking
	postings      map[uuid.UUID]engagement.Posting
	applications  map[uuid.UUID]engagement.Application
	reviews       map[uuid.UUID]engagement.Review
	notifications map[uuid.UUID]db.Notification

	locks entityLocks
	now   func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		providers:     map[uuid.UUID]provider.Provider{},
		bookings:      map[uuid.UUID]engagement.Booking{},
		postings:      map[uuid.UUID]engagement.Posting{},
		applications:  map[uuid.UUID]engagement.Application{},
		reviews:       map[uuid.UUID]engagement.Review{},
		notifications: map[uuid.UUID]db.Notification{},
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

// entityLocks hands out one mutex per entity id.
type entityLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *entityLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = map[uuid.UUID]*sync.Mutex{}
	}
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func notFound(op, what string, id uuid.UUID) error {
	return apperr.Newf(apperr.KindNotFound, op, "%s %s not found", what, id)
}

func (s *Store) ListProviderCandidates(_ context.Context, q db.CandidateQuery) ([]provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if q.Type != nil && p.Type != *q.Type {
			continue
		}
		if q.RequireLocation && p.Location == nil {
			continue
		}
		if !p.HasSpecializations(q.Specializations) {
			continue
		}
		out = append(out, cloneProvider(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) GetProvider(_ context.Context, id uuid.UUID) (provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return provider.Provider{}, notFound("memstore.get_provider", "provider", id)
	}
	return cloneProvider(p), nil
}

func (s *Store) SaveProvider(_ context.Context, p provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = cloneProvider(p)
	p.Specializations = provider.NormalizeTags(p.Specializations)
	for i := range p.Services {
		if p.Services[i].ID == uuid.Nil {
			p.Services[i].ID = uuid.New()
		}
	}
	if old, ok := s.providers[p.ID]; ok {
		p.Rating, p.CompletedServices, p.TopRated, p.CreatedAt = old.Rating, old.CompletedServices, old.TopRated, old.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.providers[p.ID] = p
	return nil
}

func (s *Store) RecordCompletion(_ context.Context, providerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return notFound("memstore.record_completion", "provider", providerID)
	}
	p.CompletedServices++
	s.providers[providerID] = p
	return nil
}

func (s *Store) CreateBooking(_ context.Context, b engagement.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return apperr.Newf(apperr.KindConflict, "memstore.create_booking", "booking %s exists", b.ID)
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (engagement.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return engagement.Booking{}, notFound("memstore.get_booking", "booking", id)
	}
	return b, nil
}

func (s *Store) UpdateBooking(ctx context.Context, id uuid.UUID, fn func(engagement.Booking) (engagement.Booking, error)) (engagement.Booking, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return engagement.Booking{}, err
	}
	next, err := fn(current)
	if err != nil {
		return engagement.Booking{}, err
	}
	s.mu.Lock()
	s.bookings[id] = next
	s.mu.Unlock()
	return next, nil
}

func (s *Store) ListBookings(_ context.Context, q db.BookingQuery) ([]engagement.Booking, error) {
	s.mu.RLock()
	out := make([]engagement.Booking, 0)
	for _, b := range s.bookings {
		if q.ClientID != nil && b.ClientID != *q.ClientID {
			continue
		}
		if q.ProviderID != nil && b.ProviderID != *q.ProviderID {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, b.Status) {
			continue
		}
		if q.ElapsedBy != nil && !b.Elapsed(*q.ElapsedBy) {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, q.Offset, q.Limit), nil
}

func page[T any](items []T, offset, limit uint64) []T {
	if offset >= uint64(len(items)) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < uint64(len(items)) {
		items = items[:limit]
	}
	return items
}

func (s *Store) CreatePosting(_ context.Context, p engagement.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.postings[p.ID]; ok {
		return apperr.Newf(apperr.KindConflict, "memstore.create_posting", "posting %s exists", p.ID)
	}
	s.postings[p.ID] = p
	return nil
}

func (s *Store) GetPostingGroup(_ context.Context, postingID uuid.UUID) (engagement.PostingGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupLocked(postingID)
}

func (s *Store) groupLocked(postingID uuid.UUID) (engagement.PostingGroup, error) {
	p, ok := s.postings[postingID]
	if !ok {
		return engagement.PostingGroup{}, notFound("memstore.get_posting", "posting", postingID)
	}
	apps := make([]engagement.Application, 0)
	for _, a := range s.applications {
		if a.PostingID == postingID {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.Before(apps[j].CreatedAt)
		}
		return apps[i].ID.String() < apps[j].ID.String()
	})
	return engagement.PostingGroup{Posting: p, Applications: apps}, nil
}

func (s *Store) PostingIDForApplication(_ context.Context, applicationID uuid.UUID) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[applicationID]
	if !ok {
		return uuid.Nil, notFound("memstore.application_posting", "application", applicationID)
	}
	return a.PostingID, nil
}

// UpdatePostingGroup serializes on the posting id and swaps the whole group
// in under the write lock, so readers never see a half-applied accept.
func (s *Store) UpdatePostingGroup(ctx context.Context, postingID uuid.UUID, fn func(engagement.PostingGroup) (engagement.PostingGroup, error)) (engagement.PostingGroup, error) {
	unlock := s.locks.lock(postingID)
	defer unlock()

	current, err := s.GetPostingGroup(ctx, postingID)
	if err != nil {
		return engagement.PostingGroup{}, err
	}
	next, err := fn(current)
	if err != nil {
		return engagement.PostingGroup{}, err
	}

	s.mu.Lock()
	s.postings[postingID] = next.Posting
	for _, a := range next.Applications {
		s.applications[a.ID] = a
	}
	s.mu.Unlock()
	return next, nil
}

func (s *Store) AddApplication(ctx context.Context, postingID uuid.UUID, fn func(engagement.PostingGroup) (engagement.Application, error)) (engagement.Application, error) {
	var app engagement.Application
	_, err := s.UpdatePostingGroup(ctx, postingID, func(g engagement.PostingGroup) (engagement.PostingGroup, error) {
		a, err := fn(g)
		if err != nil {
			return g, err
		}
		app = a
		g.Applications = append(g.Applications, a)
		return g, nil
	})
	return app, err
}

func (s *Store) ListPostings(_ context.Context, clientID uuid.UUID) ([]engagement.Posting, error) {
	s.mu.RLock()
	out := make([]engagement.Posting, 0)
	for _, p := range s.postings {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AddReview(ctx context.Context, bookingID uuid.UUID, fn func(engagement.Booking, []engagement.Review) (engagement.Review, error)) (engagement.Review, error) {
	unlock := s.locks.lock(bookingID)
	defer unlock()

	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return engagement.Review{}, err
	}
	s.mu.RLock()
	var existing []engagement.Review
	for _, r := range s.reviews {
		if r.BookingID == bookingID {
			existing = append(existing, r)
		}
	}
	s.mu.RUnlock()

	r, err := fn(b, existing)
	if err != nil {
		return engagement.Review{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ID] = r
	if r.AuthorRole == engagement.RoleClient {
		if p, ok := s.providers[r.ProviderID]; ok {
			sum := engagement.Summarize(s.providerReviewsLocked(r.ProviderID))
			p.Rating = sum.Average
			p.TopRated = sum.TopRated()
			s.providers[p.ID] = p
		}
	}
	return r, nil
}

func (s *Store) providerReviewsLocked(providerID uuid.UUID) []engagement.Review {
	out := make([]engagement.Review, 0)
	for _, r := range s.reviews {
		if r.ProviderID == providerID && r.AuthorRole == engagement.RoleClient {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListProviderReviews(_ context.Context, providerID uuid.UUID) ([]engagement.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providerReviewsLocked(providerID), nil
}

func (s *Store) CreateNotification(_ context.Context, n db.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications[n.ID] = n
	return nil
}

func (s *Store) ListNotifications(_ context.Context, recipient engagement.Actor, unreadOnly bool) ([]db.Notification, error) {
	s.mu.RLock()
	out := make([]db.Notification, 0)
	for _, n := range s.notifications {
		if n.RecipientID != recipient.ID || n.RecipientRole != recipient.Role {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, recipient engagement.Actor, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipient.ID || n.RecipientRole != recipient.Role {
		return notFound("memstore.mark_notification_read", "notification", id)
	}
	if n.ReadAt == nil {
		now := s.now()
		n.ReadAt = &now
		s.notifications[id] = n
	}
	return nil
}

func (s *Store) Stats(context.Context) (db.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := db.NewStats()
	st.Providers = len(s.providers)
	st.Reviews = len(s.reviews)
	for _, b := range s.bookings {
		st.Bookings[b.Status]++
	}
	for _, p := range s.postings {
		st.Postings[p.Status]++
	}
	for _, a := range s.applications {
		st.Applications[a.Status]++
	}
	return st, nil
}

func cloneProvider(p provider.Provider) provider.Provider {
	p.Specializations = slices.Clone(p.Specializations)
	p.Services = slices.Clone(p.Services)
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	if p.Rating != nil {
		r := *p.Rating
		p.Rating = &r
	}
	return p
}
