package discovery

import (
	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/geo"
	"github.com/sudo-init-do/lexhub/internal/provider"
	"github.com/sudo-init-do/lexhub/internal/validation"
)

// SortKey is the primary ordering requested by the client.
type SortKey string

const (
	SortDistance SortKey = "distance"
	SortRating   SortKey = "rating"
	SortPrice    SortKey = "price"
)

func (s SortKey) Valid() bool {
	switch s {
	case SortDistance, SortRating, SortPrice:
		return true
	default:
		return false
	}
}

// SearchFilter is the immutable set of criteria for one search call. Nil
// pointers and empty slices mean "no constraint".
type SearchFilter struct {
	Type            *provider.Type `json:"type,omitempty"`
	Specializations []string       `json:"specializations,omitempty"`
	Location        *geo.Point     `json:"location,omitempty"`
	RadiusMeters    *float64       `json:"radius_meters,omitempty" validate:"omitempty,gt=0"`
	MaxPrice        *int64         `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	MinRating       *float64       `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Sort            SortKey        `json:"sort"`
}

// Validate reports a malformed filter as a ValidationError (or
// InvalidCoordinate for an out-of-range location).
func (f SearchFilter) Validate() error {
	if err := validation.Struct("discovery.filter", f); err != nil {
		return err
	}
	if f.Type != nil && !f.Type.Valid() {
		return apperr.Newf(apperr.KindValidation, "discovery.filter", "unknown provider type %q", *f.Type)
	}
	if !f.Sort.Valid() {
		return apperr.Newf(apperr.KindValidation, "discovery.filter", "unknown sort %q", f.Sort)
	}
	if f.Location != nil {
		if err := f.Location.Validate(); err != nil {
			return err
		}
	}
	if f.RadiusMeters != nil && f.Location == nil {
		return apperr.New(apperr.KindValidation, "discovery.filter", "radius requires a location")
	}
	if f.Sort == SortDistance && f.Location == nil {
		return apperr.New(apperr.KindValidation, "discovery.filter", "distance sort requires a location")
	}
	return nil
}

// Scoped reports whether the search is bounded to a radius around a point.
func (f SearchFilter) Scoped() bool {
	return f.Location != nil && f.RadiusMeters != nil
}
