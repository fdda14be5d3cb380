package provider

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/geo"
)

// Type is the closed set of legal-service professions.
type Type string

const (
	TypeNotary           Type = "notary"
	TypeJudicialExecutor Type = "judicial_executor"
	TypeLawyer           Type = "lawyer"
	TypeJudge            Type = "judge"
)

var types = []Type{TypeNotary, TypeJudicialExecutor, TypeLawyer, TypeJudge}

func (t Type) Valid() bool {
	switch t {
	case TypeNotary, TypeJudicialExecutor, TypeLawyer, TypeJudge:
		return true
	default:
		return false
	}
}

// ParseType maps a request value onto a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", apperr.Newf(apperr.KindValidation, "provider.type", "unknown provider type %q (want one of %v)", s, types)
	}
	return t, nil
}

// PricingMode is how a service's canonical amount is interpreted.
type PricingMode string

const (
	PricingFixed PricingMode = "fixed"
	// PricingPercentage amounts are basis points of the matter's value.
	PricingPercentage PricingMode = "percentage"
	PricingHourly     PricingMode = "hourly"
)

func (m PricingMode) Valid() bool {
	switch m {
	case PricingFixed, PricingPercentage, PricingHourly:
		return true
	default:
		return false
	}
}

// Monetary reports whether the amount is money (minor units) rather than a rate.
func (m PricingMode) Monetary() bool {
	return m == PricingFixed || m == PricingHourly
}

type Availability string

const (
	AvailabilityAllDay       Availability = "24_7"
	AvailabilityWorkingHours Availability = "working_hours"
)

// Location pins a provider and its declared service radius.
type Location struct {
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
	ServiceRadiusMeters float64 `json:"service_radius_meters"`
}

func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lon: l.Lon}
}

// Service is one offering in a provider's catalogue.
type Service struct {
	ID     uuid.UUID   `json:"id"`
	Title  string      `json:"title"`
	Mode   PricingMode `json:"pricing_mode"`
	Amount int64       `json:"amount"`
}

// Provider is a legal-service professional as seen by discovery.
type Provider struct {
	ID                uuid.UUID    `json:"id"`
	UserID            uuid.UUID    `json:"user_id"`
	DisplayName       string       `json:"display_name"`
	Type              Type         `json:"provider_type"`
	Location          *Location    `json:"location,omitempty"`
	Availability      Availability `json:"availability"`
	Schedule          string       `json:"schedule,omitempty"`
	Rating            *float64     `json:"rating,omitempty"`
	CompletedServices int          `json:"completed_services"`
	TopRated          bool         `json:"top_rated"`
	Specializations   []string     `json:"specializations"`
	Services          []Service    `json:"services"`
	CreatedAt         time.Time    `json:"created_at"`
}

// RatingOrZero treats providers without reviews as rated 0.
func (p Provider) RatingOrZero() float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

// MinPrice is the cheapest fixed or hourly service. Percentage services have no
// absolute price and are skipped; ok is false when nothing is priced.
func (p Provider) MinPrice() (price int64, ok bool) {
	for _, s := range p.Services {
		if !s.Mode.Monetary() {
			continue
		}
		if !ok || s.Amount < price {
			price = s.Amount
			ok = true
		}
	}
	return price, ok
}

// HasSpecializations reports whether every tag is among the provider's.
func (p Provider) HasSpecializations(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	own := make(map[string]struct{}, len(p.Specializations))
	for _, s := range p.Specializations {
		own[NormalizeTag(s)] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := own[NormalizeTag(t)]; !ok {
			return false
		}
	}
	return true
}

// Validate checks the invariants profile updates must keep.
func (p Provider) Validate() error {
	if !p.Type.Valid() {
		return apperr.Newf(apperr.KindValidation, "provider.validate", "unknown provider type %q", p.Type)
	}
	if p.Location != nil {
		if err := p.Location.Point().Validate(); err != nil {
			return err
		}
		if p.Location.ServiceRadiusMeters <= 0 {
			return apperr.New(apperr.KindValidation, "provider.validate", "service radius must be positive when a location is set")
		}
	}
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		return apperr.Newf(apperr.KindValidation, "provider.validate", "rating %v out of range [0, 5]", *p.Rating)
	}
	for _, s := range p.Services {
		if !s.Mode.Valid() {
			return apperr.Newf(apperr.KindValidation, "provider.validate", "service %s has unknown pricing mode %q", s.ID, s.Mode)
		}
		if s.Amount < 0 {
			return apperr.Newf(apperr.KindValidation, "provider.validate", "service %s has negative amount", s.ID)
		}
	}
	return nil
}

// NormalizeTag folds specialization tags so "Drept Penal" and "drept-penal" match.
func NormalizeTag(tag string) string {
	return slug.Make(tag)
}

// NormalizeTags normalizes and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
