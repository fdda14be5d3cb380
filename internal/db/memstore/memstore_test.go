package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedGroup(t *testing.T, s *Store, applicants int) (engagement.Actor, engagement.PostingGroup) {
	t.Helper()
	ctx := context.Background()
	owner := engagement.Actor{ID: uuid.New(), Role: engagement.RoleClient}
	p, err := engagement.NewPosting(engagement.PostingDraft{
		ClientID:     owner.ID,
		Title:        "Inheritance file",
		RequiredType: provider.TypeNotary,
		PricingMode:  provider.PricingFixed,
		Budget:       40_000,
	}, now)
	require.NoError(t, err)
	require.NoError(t, s.CreatePosting(ctx, p))

	for i := 0; i < applicants; i++ {
		_, err := s.AddApplication(ctx, p.ID, func(g engagement.PostingGroup) (engagement.Application, error) {
			a, _, err := engagement.NewApplication(g, engagement.ApplicationDraft{
				ProviderID:   uuid.New(),
				ProviderType: provider.TypeNotary,
			}, now.Add(time.Duration(i)*time.Second))
			return a, err
		})
		require.NoError(t, err)
	}
	g, err := s.GetPostingGroup(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, g.Applications, applicants)
	return owner, g
}

func TestStore_ConcurrentAccepts(t *testing.T) {
	s := New(WithClock(func() time.Time { return now }))
	owner, g := seedGroup(t, s, 8)

	var wg sync.WaitGroup
	errs := make([]error, len(g.Applications))
	for i, app := range g.Applications {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = s.UpdatePostingGroup(context.Background(), g.Posting.ID, func(cur engagement.PostingGroup) (engagement.PostingGroup, error) {
				next, _, err := engagement.TransitionApplication(cur, id, engagement.ApplicationAccept, owner, now)
				return next, err
			})
		}(i, app.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	final, err := s.GetPostingGroup(context.Background(), g.Posting.ID)
	require.NoError(t, err)
	counts := final.Counts()
	assert.Equal(t, 1, counts[engagement.ApplicationAccepted])
	assert.Equal(t, 7, counts[engagement.ApplicationRejected])
	assert.Equal(t, engagement.PostingAssigned, final.Posting.Status)
}

func TestStore_FailedUpdateLeavesRecord(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := engagement.Booking{ID: uuid.New(), ClientID: uuid.New(), ProviderID: uuid.New(), Status: engagement.BookingCancelled, StartTime: now}
	require.NoError(t, s.CreateBooking(ctx, b))

	_, err := s.UpdateBooking(ctx, b.ID, func(cur engagement.Booking) (engagement.Booking, error) {
		next, _, err := engagement.TransitionBooking(cur, engagement.BookingConfirm, engagement.Actor{ID: b.ProviderID, Role: engagement.RoleProvider}, now)
		return next, err
	})
	assert.True(t, errors.Is(err, apperr.ErrTerminalStateViolation))

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestStore_Providers(t *testing.T) {
	s := New()
	ctx := context.Background()
	typ := provider.TypeLawyer
	located := provider.Provider{
		ID: uuid.New(), Type: provider.TypeLawyer, DisplayName: "Av. Pop",
		Location:        &provider.Location{Lat: 46.77, Lon: 23.6, ServiceRadiusMeters: 5_000},
		Specializations: []string{"Drept Penal"},
		Services:        []provider.Service{{Title: "Consultation", Mode: provider.PricingHourly, Amount: 20_000}},
	}
	remote := provider.Provider{ID: uuid.New(), Type: provider.TypeLawyer, DisplayName: "Av. Ionescu", Specializations: []string{"drept-penal"}}
	notary := provider.Provider{ID: uuid.New(), Type: provider.TypeNotary, DisplayName: "Notar Dan"}
	for _, p := range []provider.Provider{located, remote, notary} {
		require.NoError(t, s.SaveProvider(ctx, p))
	}

	t.Run("Should prefilter by type, tags and location", func(t *testing.T) {
		got, err := s.ListProviderCandidates(ctx, db.CandidateQuery{Type: &typ, Specializations: []string{"drept-penal"}})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.ListProviderCandidates(ctx, db.CandidateQuery{Type: &typ, RequireLocation: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, located.ID, got[0].ID)
		assert.NotEqual(t, uuid.Nil, got[0].Services[0].ID)
	})

	t.Run("Should keep store-owned counters across profile saves", func(t *testing.T) {
		require.NoError(t, s.RecordCompletion(ctx, located.ID))
		require.NoError(t, s.SaveProvider(ctx, located))
		got, err := s.GetProvider(ctx, located.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.CompletedServices)
	})

	t.Run("Should report unknown providers", func(t *testing.T) {
		_, err := s.GetProvider(ctx, uuid.New())
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestStore_ReviewsRefreshRating(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := provider.Provider{ID: uuid.New(), Type: provider.TypeNotary, DisplayName: "Notar Ana"}
	require.NoError(t, s.SaveProvider(ctx, p))

	for i, rating := range []int{5, 4} {
		b := engagement.Booking{ID: uuid.New(), ClientID: uuid.New(), ProviderID: p.ID, Status: engagement.BookingCompleted, StartTime: now, CreatedAt: now.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateBooking(ctx, b))
		client := engagement.Actor{ID: b.ClientID, Role: engagement.RoleClient}
		_, err := s.AddReview(ctx, b.ID, func(b engagement.Booking, existing []engagement.Review) (engagement.Review, error) {
			r, _, err := engagement.NewReview(b, client, engagement.ReviewDraft{Rating: rating}, existing, now)
			return r, err
		})
		require.NoError(t, err)
	}

	got, err := s.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.InDelta(t, 4.5, *got.Rating, 0.001)
	assert.False(t, got.TopRated)

	reviews, err := s.ListProviderReviews(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestStore_Notifications(t *testing.T) {
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	me := engagement.Actor{ID: uuid.New(), Role: engagement.RoleProvider}

	require.NoError(t, s.CreateNotification(ctx, db.Notification{RecipientID: me.ID, RecipientRole: me.Role, Event: "booking_confirmed", Subject: engagement.SubjectBooking, SubjectID: uuid.New()}))
	require.NoError(t, s.CreateNotification(ctx, db.Notification{RecipientID: me.ID, RecipientRole: engagement.RoleClient, Event: "other"}))

	list, err := s.ListNotifications(ctx, me, true)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.MarkNotificationRead(ctx, me, list[0].ID))
	unread, err := s.ListNotifications(ctx, me, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	err = s.MarkNotificationRead(ctx, engagement.Actor{ID: uuid.New(), Role: engagement.RoleClient}, list[0].ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestStore_ListBookingsElapsed(t *testing.T) {
	s := New()
	ctx := context.Background()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	done := engagement.Booking{ID: uuid.New(), Status: engagement.BookingConfirmed, StartTime: now.Add(-2 * time.Hour), EndTime: &past}
	running := engagement.Booking{ID: uuid.New(), Status: engagement.BookingConfirmed, StartTime: now.Add(-2 * time.Hour), EndTime: &future}
	pending := engagement.Booking{ID: uuid.New(), Status: engagement.BookingPending, StartTime: now.Add(-2 * time.Hour)}
	for _, b := range []engagement.Booking{done, running, pending} {
		require.NoError(t, s.CreateBooking(ctx, b))
	}

	got, err := s.ListBookings(ctx, db.BookingQuery{Statuses: []engagement.BookingStatus{engagement.BookingConfirmed}, ElapsedBy: &now})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, done.ID, got[0].ID)
}
