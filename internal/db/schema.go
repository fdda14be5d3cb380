package db

import (
	"context"
	"fmt"
)

type tableDDL struct {
	name string
	ddl  string
}

var schema = []tableDDL{
	{"providers", `
		CREATE TABLE IF NOT EXISTS providers (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			provider_type TEXT NOT NULL CHECK (provider_type IN ('notary','judicial_executor','lawyer','judge')),
			lat DOUBLE PRECISION NULL,
			lon DOUBLE PRECISION NULL,
			service_radius_m DOUBLE PRECISION NULL,
			availability TEXT NOT NULL DEFAULT 'working_hours' CHECK (availability IN ('24_7','working_hours')),
			schedule TEXT NOT NULL DEFAULT '',
			rating DOUBLE PRECISION NULL,
			completed_services INTEGER NOT NULL DEFAULT 0,
			top_rated BOOLEAN NOT NULL DEFAULT FALSE,
			specializations TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((lat IS NULL) = (lon IS NULL) AND (lat IS NULL) = (service_radius_m IS NULL))
		);
		CREATE INDEX IF NOT EXISTS idx_providers_type ON providers(provider_type);
		CREATE INDEX IF NOT EXISTS idx_providers_specializations ON providers USING GIN (specializations);`},
	{"provider_services", `
		CREATE TABLE IF NOT EXISTS provider_services (
			id UUID PRIMARY KEY,
			provider_id UUID NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			pricing_mode TEXT NOT NULL CHECK (pricing_mode IN ('fixed','percentage','hourly')),
			amount BIGINT NOT NULL CHECK (amount >= 0)
		);
		CREATE INDEX IF NOT EXISTS idx_provider_services_provider ON provider_services(provider_id, position);`},
	{"bookings", `
		CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			client_id UUID NOT NULL,
			provider_id UUID NOT NULL REFERENCES providers(id),
			service_id UUID NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','confirmed','completed','cancelled')),
			total_amount BIGINT NOT NULL CHECK (total_amount >= 0),
			platform_fee BIGINT NOT NULL CHECK (platform_fee >= 0 AND platform_fee <= total_amount),
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_bookings_client ON bookings(client_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_bookings_provider ON bookings(provider_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_bookings_confirmed_window ON bookings(COALESCE(end_time, start_time)) WHERE status = 'confirmed';`},
	{"postings", `
		CREATE TABLE IF NOT EXISTS postings (
			id UUID PRIMARY KEY,
			client_id UUID NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			required_type TEXT NOT NULL,
			pricing_mode TEXT NOT NULL,
			budget BIGINT NOT NULL CHECK (budget >= 0),
			lat DOUBLE PRECISION NULL,
			lon DOUBLE PRECISION NULL,
			urgency TEXT NOT NULL CHECK (urgency IN ('low','normal','urgent')),
			deadline TIMESTAMPTZ NULL,
			status TEXT NOT NULL CHECK (status IN ('open','assigned','completed','cancelled')),
			assigned_provider_id UUID NULL REFERENCES providers(id),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_postings_client ON postings(client_id, created_at);`},
	{"applications", `
		CREATE TABLE IF NOT EXISTS applications (
			id UUID PRIMARY KEY,
			posting_id UUID NOT NULL REFERENCES postings(id),
			provider_id UUID NOT NULL REFERENCES providers(id),
			proposed_price BIGINT NOT NULL CHECK (proposed_price >= 0),
			proposed_deadline TIMESTAMPTZ NULL,
			cover_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('pending','accepted','rejected','withdrawn')),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_applications_posting ON applications(posting_id, created_at);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_one_accepted ON applications(posting_id) WHERE status = 'accepted';
		CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_one_live ON applications(posting_id, provider_id) WHERE status IN ('pending','accepted');`},
	{"reviews", `
		CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY,
			booking_id UUID NOT NULL REFERENCES bookings(id),
			provider_id UUID NOT NULL REFERENCES providers(id),
			author_id UUID NOT NULL,
			author_role TEXT NOT NULL CHECK (author_role IN ('client','provider')),
			rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (booking_id, author_id, author_role)
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_provider ON reviews(provider_id, created_at);`},
	{"notifications", `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			recipient_id UUID NOT NULL,
			recipient_role TEXT NOT NULL,
			event TEXT NOT NULL,
			subject TEXT NOT NULL,
			subject_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			read_at TIMESTAMPTZ NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, recipient_role, created_at);
		CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(recipient_id) WHERE read_at IS NULL;`},
}

// EnsureSchema creates missing tables and indexes. It is idempotent and safe
// to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, t := range schema {
		if _, err := s.db.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("ensure %s: %w", t.name, err)
		}
		s.log.Debug("table ensured", "table", t.name)
	}
	s.log.Info("schema ensured", "tables", len(schema))
	return nil
}
