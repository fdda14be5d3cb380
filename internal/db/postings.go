package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/geo"
)

var postingColumnsSQL = "id, client_id, title, description, required_type, pricing_mode, budget, " +
	"lat, lon, urgency, deadline, status, assigned_provider_id, created_at, updated_at"

var applicationColumns = []string{
	"id", "posting_id", "provider_id", "proposed_price", "proposed_deadline", "cover_text",
	"status", "created_at", "updated_at",
}

var applicationColumnsSQL = strings.Join(applicationColumns, ", ")

type postingRow struct {
	engagement.Posting
	Lat *float64 `db:"lat"`
	Lon *float64 `db:"lon"`
}

func (r postingRow) toPosting() engagement.Posting {
	p := r.Posting
	if r.Lat != nil && r.Lon != nil {
		p.Location = &geo.Point{Lat: *r.Lat, Lon: *r.Lon}
	}
	return p
}

func (s *Store) CreatePosting(ctx context.Context, p engagement.Posting) error {
	var lat, lon *float64
	if p.Location != nil {
		lat, lon = &p.Location.Lat, &p.Location.Lon
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO postings (`+postingColumnsSQL+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.ClientID, p.Title, p.Description, p.RequiredType, p.PricingMode, p.Budget,
		lat, lon, p.Urgency, p.Deadline, p.Status, p.AssignedProviderID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting posting: %w", err)
	}
	return nil
}

// GetPostingGroup reads a posting and all of its applications without locks.
func (s *Store) GetPostingGroup(ctx context.Context, postingID uuid.UUID) (engagement.PostingGroup, error) {
	return loadGroup(ctx, s.db, postingID, "")
}

// PostingIDForApplication resolves which posting an application belongs to.
func (s *Store) PostingIDForApplication(ctx context.Context, applicationID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	if err := s.db.QueryRow(ctx, `SELECT posting_id FROM applications WHERE id = $1`, applicationID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, notFound("db.application_posting", "application", applicationID)
		}
		return uuid.Nil, fmt.Errorf("resolving application: %w", err)
	}
	return id, nil
}

func loadGroup(ctx context.Context, q pgxscan.Querier, postingID uuid.UUID, lock string) (engagement.PostingGroup, error) {
	postingQuery := "SELECT " + postingColumnsSQL + " FROM postings WHERE id = $1"
	appsQuery := "SELECT " + applicationColumnsSQL + " FROM applications WHERE posting_id = $1 ORDER BY created_at, id"
	if lock != "" {
		postingQuery += " " + lock
		appsQuery += " " + lock
	}

	var row postingRow
	if err := pgxscan.Get(ctx, q, &row, postingQuery, postingID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engagement.PostingGroup{}, notFound("db.get_posting", "posting", postingID)
		}
		return engagement.PostingGroup{}, fmt.Errorf("scanning posting: %w", err)
	}
	apps := []engagement.Application{}
	if err := pgxscan.Select(ctx, q, &apps, appsQuery, postingID); err != nil {
		return engagement.PostingGroup{}, fmt.Errorf("scanning applications: %w", err)
	}
	return engagement.PostingGroup{Posting: row.toPosting(), Applications: apps}, nil
}

// UpdatePostingGroup locks a posting and its applications, hands them to fn
// and writes back every record fn changed, all in one transaction. This is
// what keeps "accept one, reject the rest" atomic under concurrent accepts.
func (s *Store) UpdatePostingGroup(ctx context.Context, postingID uuid.UUID, fn func(engagement.PostingGroup) (engagement.PostingGroup, error)) (engagement.PostingGroup, error) {
	var out engagement.PostingGroup
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		current, err := loadGroup(ctx, tx, postingID, "FOR UPDATE")
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := writeGroupChanges(ctx, tx, current, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func writeGroupChanges(ctx context.Context, tx pgx.Tx, before, after engagement.PostingGroup) error {
	bp, ap := before.Posting, after.Posting
	if bp.Status != ap.Status || !sameID(bp.AssignedProviderID, ap.AssignedProviderID) {
		if _, err := tx.Exec(ctx,
			`UPDATE postings SET status = $2, assigned_provider_id = $3, updated_at = $4 WHERE id = $1`,
			ap.ID, ap.Status, ap.AssignedProviderID, ap.UpdatedAt,
		); err != nil {
			return fmt.Errorf("updating posting: %w", err)
		}
	}

	prev := make(map[uuid.UUID]engagement.ApplicationStatus, len(before.Applications))
	for _, a := range before.Applications {
		prev[a.ID] = a.Status
	}
	// Rejections go first so the one-accepted index never sees two rows.
	ordered := make([]engagement.Application, 0, len(after.Applications))
	var accepted []engagement.Application
	for _, a := range after.Applications {
		if a.Status == engagement.ApplicationAccepted {
			accepted = append(accepted, a)
			continue
		}
		ordered = append(ordered, a)
	}
	ordered = append(ordered, accepted...)

	for _, a := range ordered {
		old, existed := prev[a.ID]
		switch {
		case !existed:
			if err := insertApplication(ctx, tx, a); err != nil {
				return err
			}
		case old != a.Status:
			if _, err := tx.Exec(ctx,
				`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`,
				a.ID, a.Status, a.UpdatedAt,
			); err != nil {
				return fmt.Errorf("updating application %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

func insertApplication(ctx context.Context, tx pgx.Tx, a engagement.Application) error {
	query, args, err := psql.Insert("applications").Columns(applicationColumns...).Values(
		a.ID, a.PostingID, a.ProviderID, a.ProposedPrice, a.ProposedDeadline, a.CoverText,
		a.Status, a.CreatedAt, a.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("building application insert: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return conflictOr("db.add_application", "inserting application", err)
	}
	return nil
}

// AddApplication locks the posting group, lets fn build the new application
// against it and inserts the result.
func (s *Store) AddApplication(ctx context.Context, postingID uuid.UUID, fn func(engagement.PostingGroup) (engagement.Application, error)) (engagement.Application, error) {
	var app engagement.Application
	_, err := s.UpdatePostingGroup(ctx, postingID, func(g engagement.PostingGroup) (engagement.PostingGroup, error) {
		a, err := fn(g)
		if err != nil {
			return g, err
		}
		app = a
		next := g
		next.Applications = append(append([]engagement.Application{}, g.Applications...), a)
		return next, nil
	})
	return app, err
}

// ListPostings returns a client's postings newest first.
func (s *Store) ListPostings(ctx context.Context, clientID uuid.UUID) ([]engagement.Posting, error) {
	var rows []postingRow
	if err := pgxscan.Select(ctx, s.db, &rows,
		"SELECT "+postingColumnsSQL+" FROM postings WHERE client_id = $1 ORDER BY created_at DESC, id", clientID,
	); err != nil {
		return nil, fmt.Errorf("scanning postings: %w", err)
	}
	out := make([]engagement.Posting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPosting())
	}
	return out, nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
