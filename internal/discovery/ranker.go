// Package discovery filters and orders providers against a client's search.
package discovery

import (
	"sort"

	"github.com/sudo-init-do/lexhub/internal/provider"
)

// RadiusPolicy decides how a provider's own service radius affects a
// location-scoped search.
type RadiusPolicy string

const (
	// RadiusFilterOnly includes a provider when distance <= filter radius.
	RadiusFilterOnly RadiusPolicy = "filter"
	// RadiusCombined includes a provider when distance <= provider radius + filter radius.
	RadiusCombined RadiusPolicy = "combined"
)

func ParseRadiusPolicy(s string) (RadiusPolicy, bool) {
	switch RadiusPolicy(s) {
	case "", RadiusFilterOnly:
		return RadiusFilterOnly, true
	case RadiusCombined:
		return RadiusCombined, true
	default:
		return "", false
	}
}

// Result is one ranked provider. DistanceMeters is nil when the search had no
// location or the provider has none.
type Result struct {
	Provider       provider.Provider `json:"provider"`
	DistanceMeters *float64          `json:"distance_meters,omitempty"`
	MinPrice       *int64            `json:"min_price,omitempty"`
	TopRated       bool              `json:"top_rated"`
	AllDay         bool              `json:"available_24_7"`
}

// Option configures a Ranker.
type Option func(*Ranker)

func WithRadiusPolicy(p RadiusPolicy) Option {
	return func(r *Ranker) {
		r.policy = p
	}
}

// Ranker is stateless after construction and safe for concurrent use.
type Ranker struct {
	policy RadiusPolicy
}

func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{policy: RadiusFilterOnly}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank drops providers failing the filter and orders the rest. The input
// slice is not modified.
func (r *Ranker) Rank(providers []provider.Provider, f SearchFilter) ([]Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	want := provider.NormalizeTags(f.Specializations)
	results := make([]Result, 0, len(providers))
	for _, p := range providers {
		res, keep, err := r.evaluate(p, f, want)
		if err != nil {
			return nil, err
		}
		if keep {
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i], results[j], f.Sort)
	})
	return results, nil
}

func (r *Ranker) evaluate(p provider.Provider, f SearchFilter, want []string) (Result, bool, error) {
	res := Result{
		Provider: p,
		TopRated: p.TopRated,
		AllDay:   p.Availability == provider.AvailabilityAllDay,
	}

	if f.Type != nil && p.Type != *f.Type {
		return res, false, nil
	}
	if !p.HasSpecializations(want) {
		return res, false, nil
	}

	if price, ok := p.MinPrice(); ok {
		if f.MaxPrice != nil && price > *f.MaxPrice {
			return res, false, nil
		}
		res.MinPrice = &price
	}

	// Unrated providers stay visible under a rating floor.
	if f.MinRating != nil && p.Rating != nil && *p.Rating < *f.MinRating {
		return res, false, nil
	}

	if f.Location == nil {
		return res, true, nil
	}
	if p.Location == nil {
		return res, !f.Scoped(), nil
	}

	d, err := f.Location.DistanceTo(p.Location.Point())
	if err != nil {
		return res, false, err
	}
	res.DistanceMeters = &d

	if f.Scoped() {
		bound := *f.RadiusMeters
		if r.policy == RadiusCombined {
			bound += p.Location.ServiceRadiusMeters
		}
		if d > bound {
			return res, false, nil
		}
	}
	return res, true, nil
}

func less(a, b Result, key SortKey) bool {
	switch key {
	case SortDistance:
		if c := compareOptional(a.DistanceMeters, b.DistanceMeters); c != 0 {
			return c < 0
		}
	case SortPrice:
		if c := compareOptional(a.MinPrice, b.MinPrice); c != 0 {
			return c < 0
		}
	case SortRating:
	}

	ra, rb := a.Provider.RatingOrZero(), b.Provider.RatingOrZero()
	if ra != rb {
		return ra > rb
	}
	return a.Provider.ID.String() < b.Provider.ID.String()
}

// compareOptional orders ascending with missing values last.
func compareOptional[T int64 | float64](a, b *T) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}
