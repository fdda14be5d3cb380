package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock, WithClock(func() time.Time { return testNow })), mock
}

func bookingRows(mock pgxmock.PgxPoolIface, b engagement.Booking) *pgxmock.Rows {
	return mock.NewRows(bookingColumns).AddRow(
		b.ID, b.ClientID, b.ProviderID, b.ServiceID, b.StartTime, b.EndTime, b.Status,
		b.TotalAmount, b.PlatformFee, b.Notes, b.CreatedAt, b.UpdatedAt,
	)
}

func sampleBooking(status engagement.BookingStatus) engagement.Booking {
	var noService *uuid.UUID
	end := testNow.Add(-time.Hour)
	return engagement.Booking{
		ID:          uuid.New(),
		ClientID:    uuid.New(),
		ProviderID:  uuid.New(),
		ServiceID:   noService,
		StartTime:   testNow.Add(-2 * time.Hour),
		EndTime:     &end,
		Status:      status,
		TotalAmount: 10_000,
		PlatformFee: 1_000,
		CreatedAt:   testNow.Add(-48 * time.Hour),
		UpdatedAt:   testNow.Add(-48 * time.Hour),
	}
}

func TestStore_UpdateBooking(t *testing.T) {
	t.Run("Should lock, transition and persist in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		b := sampleBooking(engagement.BookingPending)
		prov := engagement.Actor{ID: b.ProviderID, Role: engagement.RoleProvider}

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.ID).
			WillReturnRows(bookingRows(mock, b))
		mock.ExpectExec(`UPDATE bookings SET status = \$2, updated_at = \$3 WHERE id = \$1`).
			WithArgs(b.ID, engagement.BookingConfirmed, testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		got, err := store.UpdateBooking(context.Background(), b.ID, func(cur engagement.Booking) (engagement.Booking, error) {
			next, _, err := engagement.TransitionBooking(cur, engagement.BookingConfirm, prov, testNow)
			return next, err
		})
		require.NoError(t, err)
		assert.Equal(t, engagement.BookingConfirmed, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back without writing when the transition fails", func(t *testing.T) {
		store, mock := newMockStore(t)
		b := sampleBooking(engagement.BookingCompleted)
		client := engagement.Actor{ID: b.ClientID, Role: engagement.RoleClient}

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.ID).
			WillReturnRows(bookingRows(mock, b))
		mock.ExpectRollback()

		_, err := store.UpdateBooking(context.Background(), b.ID, func(cur engagement.Booking) (engagement.Booking, error) {
			next, _, err := engagement.TransitionBooking(cur, engagement.BookingCancel, client, testNow)
			return next, err
		})
		assert.True(t, errors.Is(err, apperr.ErrTerminalStateViolation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should report a missing booking as not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := store.UpdateBooking(context.Background(), id, func(cur engagement.Booking) (engagement.Booking, error) {
			t.Fatal("callback must not run")
			return cur, nil
		})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_AddReview(t *testing.T) {
	reviewCols := []string{"id", "booking_id", "provider_id", "author_id", "author_role", "rating", "comment", "created_at"}

	t.Run("Should report a concurrent duplicate review as a conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		b := sampleBooking(engagement.BookingCompleted)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.ID).
			WillReturnRows(bookingRows(mock, b))
		mock.ExpectQuery(`SELECT (.+) FROM reviews WHERE booking_id = \$1`).
			WithArgs(b.ID).
			WillReturnRows(mock.NewRows(reviewCols))
		mock.ExpectExec(`INSERT INTO reviews`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reviews_booking_id_author_id_author_role_key"})
		mock.ExpectRollback()

		_, err := store.AddReview(context.Background(), b.ID, func(cur engagement.Booking, existing []engagement.Review) (engagement.Review, error) {
			assert.Empty(t, existing)
			return engagement.Review{
				ID: uuid.New(), BookingID: cur.ID, ProviderID: cur.ProviderID,
				AuthorID: cur.ClientID, AuthorRole: engagement.RoleClient, Rating: 5, CreatedAt: testNow,
			}, nil
		})
		assert.True(t, errors.Is(err, apperr.ErrConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should keep other insert failures unclassified", func(t *testing.T) {
		store, mock := newMockStore(t)
		b := sampleBooking(engagement.BookingCompleted)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(b.ID).
			WillReturnRows(bookingRows(mock, b))
		mock.ExpectQuery(`SELECT (.+) FROM reviews WHERE booking_id = \$1`).
			WithArgs(b.ID).
			WillReturnRows(mock.NewRows(reviewCols))
		mock.ExpectExec(`INSERT INTO reviews`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := store.AddReview(context.Background(), b.ID, func(cur engagement.Booking, _ []engagement.Review) (engagement.Review, error) {
			return engagement.Review{ID: uuid.New(), BookingID: cur.ID, ProviderID: cur.ProviderID, AuthorID: cur.ProviderID, AuthorRole: engagement.RoleProvider, Rating: 4, CreatedAt: testNow}, nil
		})
		require.Error(t, err)
		assert.Empty(t, apperr.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_ListBookings(t *testing.T) {
	store, mock := newMockStore(t)
	b := sampleBooking(engagement.BookingConfirmed)

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE status IN \(\$1\) AND COALESCE\(end_time, start_time\) <= \$2 ORDER BY created_at DESC, id LIMIT 50`).
		WithArgs("confirmed", testNow).
		WillReturnRows(bookingRows(mock, b))

	got, err := store.ListBookings(context.Background(), BookingQuery{
		Statuses:  []engagement.BookingStatus{engagement.BookingConfirmed},
		ElapsedBy: &testNow,
		Limit:     50,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdatePostingGroup(t *testing.T) {
	store, mock := newMockStore(t)

	owner := engagement.Actor{ID: uuid.New(), Role: engagement.RoleClient}
	postingID := uuid.New()
	var nilFloat *float64
	var nilTime *time.Time
	var nilID *uuid.UUID

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM postings WHERE id = \$1 FOR UPDATE`).
		WithArgs(postingID).
		WillReturnRows(mock.NewRows([]string{
			"id", "client_id", "title", "description", "required_type", "pricing_mode", "budget",
			"lat", "lon", "urgency", "deadline", "status", "assigned_provider_id", "created_at", "updated_at",
		}).AddRow(
			postingID, owner.ID, "Power of attorney", "", provider.TypeNotary, provider.PricingFixed, int64(30_000),
			nilFloat, nilFloat, engagement.UrgencyNormal, nilTime, engagement.PostingOpen, nilID, testNow, testNow,
		))

	apps := make([]uuid.UUID, 3)
	providers := make([]uuid.UUID, 3)
	rows := mock.NewRows(applicationColumns)
	for i := range apps {
		apps[i], providers[i] = uuid.New(), uuid.New()
		rows.AddRow(apps[i], postingID, providers[i], int64(25_000), nilTime, "", engagement.ApplicationPending, testNow, testNow)
	}
	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE posting_id = \$1 ORDER BY created_at, id FOR UPDATE`).
		WithArgs(postingID).
		WillReturnRows(rows)

	mock.ExpectExec(`UPDATE postings SET status = \$2, assigned_provider_id = \$3, updated_at = \$4 WHERE id = \$1`).
		WithArgs(postingID, engagement.PostingAssigned, &providers[1], testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	for _, i := range []int{0, 2, 1} {
		status := engagement.ApplicationRejected
		if i == 1 {
			status = engagement.ApplicationAccepted
		}
		mock.ExpectExec(`UPDATE applications SET status = \$2, updated_at = \$3 WHERE id = \$1`).
			WithArgs(apps[i], status, testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	}
	mock.ExpectCommit()

	g, err := store.UpdatePostingGroup(context.Background(), postingID, func(cur engagement.PostingGroup) (engagement.PostingGroup, error) {
		next, _, err := engagement.TransitionApplication(cur, apps[1], engagement.ApplicationAccept, owner, testNow)
		return next, err
	})
	require.NoError(t, err)
	assert.Equal(t, engagement.PostingAssigned, g.Posting.Status)
	assert.Equal(t, 2, g.Counts()[engagement.ApplicationRejected])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListProviderCandidates(t *testing.T) {
	store, mock := newMockStore(t)
	id, svc := uuid.New(), uuid.New()
	lat, lon, radius := 44.43, 26.10, 15_000.0
	rating := 4.7
	typ := provider.TypeNotary

	mock.ExpectQuery(`SELECT (.+) FROM providers WHERE provider_type = \$1 AND specializations @> \$2 AND lat IS NOT NULL ORDER BY id`).
		WithArgs(provider.TypeNotary, []string{"real-estate"}).
		WillReturnRows(mock.NewRows(providerColumns).AddRow(
			id, uuid.New(), "Notar Ionescu", provider.TypeNotary, &lat, &lon, &radius,
			provider.AvailabilityAllDay, "", &rating, 12, true, []string{"real-estate"}, testNow,
		))
	mock.ExpectQuery(`SELECT id, provider_id, title, pricing_mode, amount FROM provider_services WHERE provider_id = ANY\(\$1\) ORDER BY provider_id, position`).
		WithArgs([]uuid.UUID{id}).
		WillReturnRows(mock.NewRows([]string{"id", "provider_id", "title", "pricing_mode", "amount"}).
			AddRow(svc, id, "Sale contract", provider.PricingPercentage, int64(150)).
			AddRow(uuid.New(), id, "Authentication", provider.PricingFixed, int64(8_000)))

	got, err := store.ListProviderCandidates(context.Background(), CandidateQuery{
		Type:            &typ,
		Specializations: []string{"real-estate"},
		RequireLocation: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	p := got[0]
	require.NotNil(t, p.Location)
	assert.Equal(t, radius, p.Location.ServiceRadiusMeters)
	require.Len(t, p.Services, 2)
	assert.Equal(t, svc, p.Services[0].ID)
	price, ok := p.MinPrice()
	assert.True(t, ok)
	assert.Equal(t, int64(8_000), price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordCompletion(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec(`UPDATE providers SET completed_services = completed_services \+ 1 WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.RecordCompletion(context.Background(), id)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkNotificationRead(t *testing.T) {
	store, mock := newMockStore(t)
	me := engagement.Actor{ID: uuid.New(), Role: engagement.RoleClient}
	id := uuid.New()
	mock.ExpectExec(`UPDATE notifications SET read_at = COALESCE\(read_at, \$4\)`).
		WithArgs(id, me.ID, me.Role, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkNotificationRead(context.Background(), me, id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	for range schema {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
