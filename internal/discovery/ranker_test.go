package discovery

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/geo"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

var (
	bucharest = provider.Location{Lat: 44.4268, Lon: 26.1025, ServiceRadiusMeters: 10_000}
	cluj      = geo.Point{Lat: 46.7712, Lon: 23.6236}
)

func ptr[T any](v T) *T { return &v }

func newProvider(id string, typ provider.Type, opts ...func(*provider.Provider)) provider.Provider {
	p := provider.Provider{
		ID:           uuid.MustParse(id),
		DisplayName:  id[:4],
		Type:         typ,
		Availability: provider.AvailabilityWorkingHours,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func at(loc provider.Location) func(*provider.Provider) {
	return func(p *provider.Provider) { p.Location = &loc }
}

func rated(r float64) func(*provider.Provider) {
	return func(p *provider.Provider) { p.Rating = &r }
}

func priced(mode provider.PricingMode, amount int64) func(*provider.Provider) {
	return func(p *provider.Provider) {
		p.Services = append(p.Services, provider.Service{ID: uuid.New(), Mode: mode, Amount: amount})
	}
}

func tagged(tags ...string) func(*provider.Provider) {
	return func(p *provider.Provider) { p.Specializations = tags }
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Provider.ID.String()[:4])
	}
	return out
}

func TestRanker_RadiusScenario(t *testing.T) {
	notary := newProvider("aaaaaaaa-0000-0000-0000-000000000001", provider.TypeNotary, at(bucharest))
	r := NewRanker()

	t.Run("Should exclude a Bucharest provider from a 50 km search around Cluj", func(t *testing.T) {
		results, err := r.Rank([]provider.Provider{notary}, SearchFilter{
			Type:         ptr(provider.TypeNotary),
			Location:     &cluj,
			RadiusMeters: ptr(50_000.0),
			Sort:         SortDistance,
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Should include it at 400 km with the distance attached", func(t *testing.T) {
		results, err := r.Rank([]provider.Provider{notary}, SearchFilter{
			Type:         ptr(provider.TypeNotary),
			Location:     &cluj,
			RadiusMeters: ptr(400_000.0),
			Sort:         SortDistance,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.NotNil(t, results[0].DistanceMeters)
		assert.InDelta(t, 324_000, *results[0].DistanceMeters, 5_000)
	})

	t.Run("Should widen the bound by the provider radius under the combined policy", func(t *testing.T) {
		wide := newProvider("aaaaaaaa-0000-0000-0000-000000000002", provider.TypeNotary,
			at(provider.Location{Lat: bucharest.Lat, Lon: bucharest.Lon, ServiceRadiusMeters: 300_000}))
		filter := SearchFilter{Location: &cluj, RadiusMeters: ptr(50_000.0), Sort: SortDistance}

		plain, err := NewRanker().Rank([]provider.Provider{wide}, filter)
		require.NoError(t, err)
		assert.Empty(t, plain)

		combined, err := NewRanker(WithRadiusPolicy(RadiusCombined)).Rank([]provider.Provider{wide}, filter)
		require.NoError(t, err)
		assert.Len(t, combined, 1)
	})
}

func TestRanker_Exclusion(t *testing.T) {
	near := provider.Location{Lat: 46.77, Lon: 23.60}
	candidates := []provider.Provider{
		newProvider("11111111-0000-0000-0000-000000000000", provider.TypeLawyer, at(near), rated(4.5),
			tagged("Real Estate", "family-law"), priced(provider.PricingFixed, 20_000)),
		newProvider("22222222-0000-0000-0000-000000000000", provider.TypeNotary, at(near), rated(4.9),
			tagged("real-estate"), priced(provider.PricingFixed, 5_000)),
		newProvider("33333333-0000-0000-0000-000000000000", provider.TypeLawyer, at(bucharest), rated(5),
			tagged("real-estate"), priced(provider.PricingHourly, 9_000)),
		newProvider("44444444-0000-0000-0000-000000000000", provider.TypeLawyer, rated(3.0),
			tagged("real-estate"), priced(provider.PricingFixed, 10_000)),
		newProvider("55555555-0000-0000-0000-000000000000", provider.TypeLawyer, at(near),
			tagged("real-estate"), priced(provider.PricingPercentage, 150)),
		newProvider("66666666-0000-0000-0000-000000000000", provider.TypeLawyer, at(near), rated(4.0),
			tagged("real-estate"), priced(provider.PricingFixed, 90_000)),
		newProvider("77777777-0000-0000-0000-000000000000", provider.TypeLawyer, at(near), rated(2.0),
			tagged("real-estate"), priced(provider.PricingFixed, 1_000)),
	}

	filter := SearchFilter{
		Type:            ptr(provider.TypeLawyer),
		Specializations: []string{"real estate"},
		Location:        &cluj,
		RadiusMeters:    ptr(100_000.0),
		MaxPrice:        ptr(int64(50_000)),
		MinRating:       ptr(3.5),
		Sort:            SortRating,
	}

	results, err := NewRanker().Rank(candidates, filter)
	require.NoError(t, err)

	// 2 wrong type, 3 out of radius, 4 no location, 6 too expensive, 7 below rating.
	// 5 is unrated and only percentage-priced, so neither bound hides it.
	assert.Equal(t, []string{"1111", "5555"}, ids(results))

	t.Run("Should satisfy every active criterion for each returned provider", func(t *testing.T) {
		for _, res := range results {
			p := res.Provider
			assert.Equal(t, provider.TypeLawyer, p.Type)
			assert.True(t, p.HasSpecializations(provider.NormalizeTags(filter.Specializations)))
			if price, ok := p.MinPrice(); ok {
				assert.LessOrEqual(t, price, *filter.MaxPrice)
			}
			require.NotNil(t, res.DistanceMeters)
			assert.LessOrEqual(t, *res.DistanceMeters, *filter.RadiusMeters)
		}
	})

	t.Run("Should not modify the input slice", func(t *testing.T) {
		assert.Equal(t, "1111", candidates[0].ID.String()[:4])
		assert.Len(t, candidates, 7)
	})
}

func TestRanker_Ordering(t *testing.T) {
	near := provider.Location{Lat: 46.78, Lon: 23.62}
	far := provider.Location{Lat: 46.60, Lon: 23.40}
	candidates := []provider.Provider{
		newProvider("cccccccc-0000-0000-0000-000000000000", provider.TypeLawyer, at(far), rated(4.0), priced(provider.PricingFixed, 3_000)),
		newProvider("bbbbbbbb-0000-0000-0000-000000000000", provider.TypeLawyer, at(near), priced(provider.PricingFixed, 1_000)),
		newProvider("aaaaaaaa-0000-0000-0000-000000000000", provider.TypeLawyer, at(far), rated(4.0)),
		newProvider("dddddddd-0000-0000-0000-000000000000", provider.TypeLawyer, rated(5.0), priced(provider.PricingHourly, 2_000)),
	}

	tests := []struct {
		name string
		sort SortKey
		want []string
	}{
		{"Should order by distance with providers lacking a location last", SortDistance, []string{"bbbb", "aaaa", "cccc", "dddd"}},
		{"Should order by rating with unrated as zero and id breaking ties", SortRating, []string{"dddd", "aaaa", "cccc", "bbbb"}},
		{"Should order by price with unpriced providers last", SortPrice, []string{"bbbb", "dddd", "cccc", "aaaa"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := NewRanker().Rank(candidates, SearchFilter{Location: &cluj, Sort: tc.sort})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(results))
		})
	}

	t.Run("Should be deterministic regardless of input order", func(t *testing.T) {
		reversed := []provider.Provider{candidates[3], candidates[2], candidates[1], candidates[0]}
		a, err := NewRanker().Rank(candidates, SearchFilter{Sort: SortRating})
		require.NoError(t, err)
		b, err := NewRanker().Rank(reversed, SearchFilter{Sort: SortRating})
		require.NoError(t, err)
		assert.Equal(t, ids(a), ids(b))
	})
}

func TestRanker_PassThroughFlags(t *testing.T) {
	p := newProvider("eeeeeeee-0000-0000-0000-000000000000", provider.TypeJudicialExecutor, func(p *provider.Provider) {
		p.TopRated = true
		p.Availability = provider.AvailabilityAllDay
	})
	results, err := NewRanker().Rank([]provider.Provider{p}, SearchFilter{Sort: SortRating})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].TopRated)
	assert.True(t, results[0].AllDay)
	assert.Nil(t, results[0].DistanceMeters)
}

func TestRanker_EmptyAndInvalid(t *testing.T) {
	r := NewRanker()

	t.Run("Should return an empty list for no candidates", func(t *testing.T) {
		results, err := r.Rank(nil, SearchFilter{Sort: SortRating})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	tests := []struct {
		name   string
		filter SearchFilter
		want   error
	}{
		{"unknown sort", SearchFilter{Sort: "cheapest"}, apperr.ErrValidation},
		{"distance sort without location", SearchFilter{Sort: SortDistance}, apperr.ErrValidation},
		{"radius without location", SearchFilter{RadiusMeters: ptr(10.0), Sort: SortRating}, apperr.ErrValidation},
		{"negative radius", SearchFilter{Location: &cluj, RadiusMeters: ptr(-1.0), Sort: SortRating}, apperr.ErrValidation},
		{"rating above five", SearchFilter{MinRating: ptr(6.0), Sort: SortRating}, apperr.ErrValidation},
		{"negative max price", SearchFilter{MaxPrice: ptr(int64(-1)), Sort: SortPrice}, apperr.ErrValidation},
		{"unknown type", SearchFilter{Type: ptr(provider.Type("bailiff")), Sort: SortRating}, apperr.ErrValidation},
		{"latitude out of range", SearchFilter{Location: &geo.Point{Lat: 91, Lon: 0}, Sort: SortDistance}, apperr.ErrInvalidCoordinate},
	}
	for _, tc := range tests {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			_, err := r.Rank([]provider.Provider{newProvider("ffffffff-0000-0000-0000-000000000000", provider.TypeJudge)}, tc.filter)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
