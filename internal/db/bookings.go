package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/lexhub/internal/engagement"
)

var bookingColumns = []string{
	"id", "client_id", "provider_id", "service_id", "start_time", "end_time", "status",
	"total_amount", "platform_fee", "notes", "created_at", "updated_at",
}

var bookingColumnsSQL = strings.Join(bookingColumns, ", ")

func (s *Store) CreateBooking(ctx context.Context, b engagement.Booking) error {
	query, args, err := psql.Insert("bookings").Columns(bookingColumns...).Values(
		b.ID, b.ClientID, b.ProviderID, b.ServiceID, b.StartTime, b.EndTime, b.Status,
		b.TotalAmount, b.PlatformFee, b.Notes, b.CreatedAt, b.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("building booking insert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (engagement.Booking, error) {
	return getBooking(ctx, s.db, id, "")
}

func getBooking(ctx context.Context, q pgxscan.Querier, id uuid.UUID, lock string) (engagement.Booking, error) {
	query := "SELECT " + bookingColumnsSQL + " FROM bookings WHERE id = $1"
	if lock != "" {
		query += " " + lock
	}
	var b engagement.Booking
	if err := pgxscan.Get(ctx, q, &b, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engagement.Booking{}, notFound("db.get_booking", "booking", id)
		}
		return engagement.Booking{}, fmt.Errorf("scanning booking: %w", err)
	}
	return b, nil
}

// UpdateBooking locks the booking row, hands it to fn and persists the
// result. Nothing is written when fn fails.
func (s *Store) UpdateBooking(ctx context.Context, id uuid.UUID, fn func(engagement.Booking) (engagement.Booking, error)) (engagement.Booking, error) {
	var out engagement.Booking
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		current, err := getBooking(ctx, tx, id, "FOR UPDATE")
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
			next.ID, next.Status, next.UpdatedAt,
		); err != nil {
			return fmt.Errorf("updating booking: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

// ListBookings returns bookings newest first, terminal ones included.
func (s *Store) ListBookings(ctx context.Context, q BookingQuery) ([]engagement.Booking, error) {
	sb := psql.Select(bookingColumns...).From("bookings").OrderBy("created_at DESC", "id")
	if q.ClientID != nil {
		sb = sb.Where("client_id = ?", *q.ClientID)
	}
	if q.ProviderID != nil {
		sb = sb.Where("provider_id = ?", *q.ProviderID)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		sb = sb.Where(squirrel.Eq{"status": statuses})
	}
	if q.ElapsedBy != nil {
		sb = sb.Where("COALESCE(end_time, start_time) <= ?", *q.ElapsedBy)
	}
	if q.Limit > 0 {
		sb = sb.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sb = sb.Offset(q.Offset)
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building booking query: %w", err)
	}
	bookings := []engagement.Booking{}
	if err := pgxscan.Select(ctx, s.db, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("scanning bookings: %w", err)
	}
	return bookings, nil
}
