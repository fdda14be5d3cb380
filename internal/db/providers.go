package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

var providerColumns = []string{
	"id", "user_id", "display_name", "provider_type", "lat", "lon", "service_radius_m",
	"availability", "schedule", "rating", "completed_services", "top_rated", "specializations", "created_at",
}

type providerRow struct {
	ID                uuid.UUID             `db:"id"`
	UserID            uuid.UUID             `db:"user_id"`
	DisplayName       string                `db:"display_name"`
	Type              provider.Type         `db:"provider_type"`
	Lat               *float64              `db:"lat"`
	Lon               *float64              `db:"lon"`
	ServiceRadius     *float64              `db:"service_radius_m"`
	Availability      provider.Availability `db:"availability"`
	Schedule          string                `db:"schedule"`
	Rating            *float64              `db:"rating"`
	CompletedServices int                   `db:"completed_services"`
	TopRated          bool                  `db:"top_rated"`
	Specializations   []string              `db:"specializations"`
	CreatedAt         time.Time             `db:"created_at"`
}

func (r providerRow) toProvider(services []provider.Service) provider.Provider {
	p := provider.Provider{
		ID:                r.ID,
		UserID:            r.UserID,
		DisplayName:       r.DisplayName,
		Type:              r.Type,
		Availability:      r.Availability,
		Schedule:          r.Schedule,
		Rating:            r.Rating,
		CompletedServices: r.CompletedServices,
		TopRated:          r.TopRated,
		Specializations:   r.Specializations,
		Services:          services,
		CreatedAt:         r.CreatedAt,
	}
	if r.Lat != nil && r.Lon != nil && r.ServiceRadius != nil {
		p.Location = &provider.Location{Lat: *r.Lat, Lon: *r.Lon, ServiceRadiusMeters: *r.ServiceRadius}
	}
	return p
}

type serviceRow struct {
	ID         uuid.UUID            `db:"id"`
	ProviderID uuid.UUID            `db:"provider_id"`
	Title      string               `db:"title"`
	Mode       provider.PricingMode `db:"pricing_mode"`
	Amount     int64                `db:"amount"`
}

// ListProviderCandidates loads providers matching the coarse query together
// with their services.
func (s *Store) ListProviderCandidates(ctx context.Context, q CandidateQuery) ([]provider.Provider, error) {
	sb := psql.Select(providerColumns...).From("providers").OrderBy("id")
	if q.Type != nil {
		sb = sb.Where(squirrel.Eq{"provider_type": *q.Type})
	}
	if len(q.Specializations) > 0 {
		sb = sb.Where("specializations @> ?", q.Specializations)
	}
	if q.RequireLocation {
		sb = sb.Where(squirrel.NotEq{"lat": nil})
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building candidate query: %w", err)
	}

	var rows []providerRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning providers: %w", err)
	}
	return s.attachServices(ctx, s.db, rows)
}

func (s *Store) GetProvider(ctx context.Context, id uuid.UUID) (provider.Provider, error) {
	query, args, err := psql.Select(providerColumns...).From("providers").Where("id = ?", id).ToSql()
	if err != nil {
		return provider.Provider{}, fmt.Errorf("building provider query: %w", err)
	}
	var row providerRow
	if err := pgxscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provider.Provider{}, notFound("db.get_provider", "provider", id)
		}
		return provider.Provider{}, fmt.Errorf("scanning provider: %w", err)
	}
	out, err := s.attachServices(ctx, s.db, []providerRow{row})
	if err != nil {
		return provider.Provider{}, err
	}
	return out[0], nil
}

func (s *Store) attachServices(ctx context.Context, q pgxscan.Querier, rows []providerRow) ([]provider.Provider, error) {
	if len(rows) == 0 {
		return []provider.Provider{}, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	query, args, err := psql.Select("id", "provider_id", "title", "pricing_mode", "amount").
		From("provider_services").
		Where("provider_id = ANY(?)", ids).
		OrderBy("provider_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building services query: %w", err)
	}
	var services []serviceRow
	if err := pgxscan.Select(ctx, q, &services, query, args...); err != nil {
		return nil, fmt.Errorf("scanning services: %w", err)
	}

	byProvider := make(map[uuid.UUID][]provider.Service, len(rows))
	for _, sr := range services {
		byProvider[sr.ProviderID] = append(byProvider[sr.ProviderID], provider.Service{
			ID: sr.ID, Title: sr.Title, Mode: sr.Mode, Amount: sr.Amount,
		})
	}
	out := make([]provider.Provider, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toProvider(byProvider[r.ID]))
	}
	return out, nil
}

// SaveProvider inserts or replaces a provider profile and its service list.
// Rating, completion count and the top-rated flag are owned by the store and
// kept from the existing row.
func (s *Store) SaveProvider(ctx context.Context, p provider.Provider) error {
	var lat, lon, radius *float64
	if p.Location != nil {
		lat, lon, radius = &p.Location.Lat, &p.Location.Lon, &p.Location.ServiceRadiusMeters
	}
	specs := provider.NormalizeTags(p.Specializations)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, user_id, display_name, provider_type, lat, lon, service_radius_m,
				availability, schedule, specializations, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				provider_type = EXCLUDED.provider_type,
				lat = EXCLUDED.lat,
				lon = EXCLUDED.lon,
				service_radius_m = EXCLUDED.service_radius_m,
				availability = EXCLUDED.availability,
				schedule = EXCLUDED.schedule,
				specializations = EXCLUDED.specializations`,
			p.ID, p.UserID, p.DisplayName, p.Type, lat, lon, radius,
			p.Availability, p.Schedule, specs, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting provider: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM provider_services WHERE provider_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clearing services: %w", err)
		}
		for i, svc := range p.Services {
			if svc.ID == uuid.Nil {
				svc.ID = uuid.New()
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO provider_services (id, provider_id, position, title, pricing_mode, amount) VALUES ($1, $2, $3, $4, $5, $6)`,
				svc.ID, p.ID, i, svc.Title, svc.Mode, svc.Amount,
			)
			if err != nil {
				return fmt.Errorf("inserting service %d: %w", i, err)
			}
		}
		return nil
	})
}

// RecordCompletion bumps the provider's completed-services counter.
func (s *Store) RecordCompletion(ctx context.Context, providerID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE providers SET completed_services = completed_services + 1 WHERE id = $1`, providerID)
	if err != nil {
		return fmt.Errorf("recording completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("db.record_completion", "provider", providerID)
	}
	return nil
}

// refreshRating recomputes the provider's public rating from client reviews.
func refreshRating(ctx context.Context, tx pgx.Tx, providerID uuid.UUID) error {
	var reviews []engagement.Review
	if err := pgxscan.Select(ctx, tx, &reviews, `SELECT `+reviewColumnsSQL+` FROM reviews WHERE provider_id = $1 AND author_role = 'client'`, providerID); err != nil {
		return fmt.Errorf("loading provider reviews: %w", err)
	}
	sum := engagement.Summarize(reviews)
	if _, err := tx.Exec(ctx, `UPDATE providers SET rating = $2, top_rated = $3 WHERE id = $1`, providerID, sum.Average, sum.TopRated()); err != nil {
		return fmt.Errorf("updating provider rating: %w", err)
	}
	return nil
}
