package db

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/lexhub/internal/engagement"
)

const reviewColumnsSQL = "id, booking_id, provider_id, author_id, author_role, rating, comment, created_at"

// AddReview locks the booking row while fn decides on the review, then
// stores it and refreshes the provider's rating in the same transaction.
func (s *Store) AddReview(ctx context.Context, bookingID uuid.UUID, fn func(engagement.Booking, []engagement.Review) (engagement.Review, error)) (engagement.Review, error) {
	var out engagement.Review
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		b, err := getBooking(ctx, tx, bookingID, "FOR UPDATE")
		if err != nil {
			return err
		}
		existing := []engagement.Review{}
		if err := pgxscan.Select(ctx, tx, &existing, "SELECT "+reviewColumnsSQL+" FROM reviews WHERE booking_id = $1", bookingID); err != nil {
			return fmt.Errorf("loading booking reviews: %w", err)
		}
		r, err := fn(b, existing)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO reviews ("+reviewColumnsSQL+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			r.ID, r.BookingID, r.ProviderID, r.AuthorID, r.AuthorRole, r.Rating, r.Comment, r.CreatedAt,
		); err != nil {
			return conflictOr("db.add_review", "inserting review", err)
		}
		if r.AuthorRole == engagement.RoleClient {
			if err := refreshRating(ctx, tx, r.ProviderID); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	return out, err
}

// ListProviderReviews returns the client reviews of a provider, newest first.
func (s *Store) ListProviderReviews(ctx context.Context, providerID uuid.UUID) ([]engagement.Review, error) {
	reviews := []engagement.Review{}
	if err := pgxscan.Select(ctx, s.db, &reviews,
		"SELECT "+reviewColumnsSQL+" FROM reviews WHERE provider_id = $1 AND author_role = 'client' ORDER BY created_at DESC, id",
		providerID,
	); err != nil {
		return nil, fmt.Errorf("scanning reviews: %w", err)
	}
	return reviews, nil
}
