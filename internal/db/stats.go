package db

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/lexhub/internal/engagement"
)

// Stats counts records by status for the admin dashboard.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := NewStats()

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM providers`).Scan(&st.Providers); err != nil {
		return st, fmt.Errorf("counting providers: %w", err)
	}
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&st.Reviews); err != nil {
		return st, fmt.Errorf("counting reviews: %w", err)
	}

	groups := []struct {
		table string
		apply func(string, int)
	}{
		{"bookings", func(s string, n int) { st.Bookings[engagement.BookingStatus(s)] = n }},
		{"postings", func(s string, n int) { st.Postings[engagement.PostingStatus(s)] = n }},
		{"applications", func(s string, n int) { st.Applications[engagement.ApplicationStatus(s)] = n }},
	}
	for _, g := range groups {
		if err := s.countByStatus(ctx, g.table, g.apply); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (s *Store) countByStatus(ctx context.Context, table string, apply func(string, int)) error {
	rows, err := s.db.Query(ctx, "SELECT status, COUNT(*) FROM "+table+" GROUP BY status")
	if err != nil {
		return fmt.Errorf("counting %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("scanning %s counts: %w", table, err)
		}
		apply(status, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading %s counts: %w", table, err)
	}
	return nil
}
