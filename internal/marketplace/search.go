package marketplace

import (
	"context"
	"slices"
	"time"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/currency"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/discovery"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

// Listing is a search hit with its price rendered for the requester.
type Listing struct {
	discovery.Result
	Price *currency.Quote `json:"price,omitempty"`
}

// Search filters and ranks providers. displayCurrency only affects how prices
// are rendered; MaxPrice is always canonical.
func (s *Service) Search(ctx context.Context, f discovery.SearchFilter, displayCurrency string) ([]Listing, error) {
	start := time.Now()
	listings, err := s.search(ctx, f, displayCurrency)

	outcome := "ok"
	if err != nil {
		if outcome = string(apperr.KindOf(err)); outcome == "" {
			outcome = "error"
		}
	}
	sortKey := string(f.Sort)
	if sortKey == "" {
		sortKey = "default"
	}
	s.metrics.ObserveSearch(sortKey, outcome, len(listings), time.Since(start))
	return listings, err
}

func (s *Service) search(ctx context.Context, f discovery.SearchFilter, displayCurrency string) ([]Listing, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	candidates, err := s.store.ListProviderCandidates(ctx, db.CandidateQuery{
		Type:            f.Type,
		Specializations: provider.NormalizeTags(f.Specializations),
		RequireLocation: f.Scoped(),
	})
	if err != nil {
		return nil, err
	}
	results, err := s.ranker.Rank(candidates, f)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, len(results))
	for i, r := range results {
		listings[i] = Listing{Result: r}
		if r.MinPrice != nil {
			q, err := s.money.Quote(*r.MinPrice, displayCurrency)
			if err != nil {
				return nil, err
			}
			listings[i].Price = &q
		}
	}
	return listings, nil
}

// QuoteAmount renders a canonical amount in code.
func (s *Service) QuoteAmount(amount int64, code string) (currency.Quote, error) {
	return s.money.Quote(amount, code)
}

// ParseAmount converts a display amount in code to canonical minor units.
func (s *Service) ParseAmount(display, code string) (int64, error) {
	return s.money.ToCanonical(display, code)
}

// Currencies lists the display currencies on offer.
func (s *Service) Currencies() (base string, codes []string) {
	codes = s.money.Codes()
	slices.Sort(codes)
	return s.money.Base(), codes
}
