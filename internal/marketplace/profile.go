package marketplace

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/currency"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/provider"
	"github.com/sudo-init-do/lexhub/internal/validation"
)

// PricedService is a catalogue entry with its display price. Percentage
// services carry basis points and have no Price.
type PricedService struct {
	provider.Service
	Price *currency.Quote `json:"price,omitempty"`
}

type Profile struct {
	Provider provider.Provider  `json:"provider"`
	Services []PricedService    `json:"services"`
	Reviews  engagement.Summary `json:"reviews"`
}

// Profile loads a provider with prices rendered in displayCurrency.
func (s *Service) Profile(ctx context.Context, id uuid.UUID, displayCurrency string) (Profile, error) {
	p, err := s.store.GetProvider(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	reviews, err := s.store.ListProviderReviews(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	out := Profile{Provider: p, Services: make([]PricedService, len(p.Services)), Reviews: engagement.Summarize(reviews)}
	for i, svc := range p.Services {
		out.Services[i] = PricedService{Service: svc}
		if !svc.Mode.Monetary() {
			continue
		}
		q, err := s.money.Quote(svc.Amount, displayCurrency)
		if err != nil {
			return Profile{}, err
		}
		out.Services[i].Price = &q
	}
	return out, nil
}

type ServiceDraft struct {
	// ID names an existing service to keep its id across edits. Entries
	// without one keep the id of an unchanged service with the same title.
	ID     *uuid.UUID           `json:"id,omitempty"`
	Title  string               `json:"title" validate:"required,max=200"`
	Mode   provider.PricingMode `json:"pricing_mode" validate:"required"`
	Amount int64                `json:"amount" validate:"gte=0"`
}

// ProfileDraft is what a provider may edit about themselves. Ratings and
// completion counts are derived and never taken from input.
type ProfileDraft struct {
	DisplayName     string                `json:"display_name" validate:"required,max=200"`
	Type            provider.Type         `json:"provider_type" validate:"required"`
	Location        *provider.Location    `json:"location,omitempty"`
	Availability    provider.Availability `json:"availability" validate:"omitempty,oneof=24_7 working_hours"`
	Schedule        string                `json:"schedule,omitempty" validate:"max=500"`
	Specializations []string              `json:"specializations" validate:"max=50,dive,max=100"`
	Services        []ServiceDraft        `json:"services" validate:"max=100,dive"`
}

// SaveProfile creates or replaces the calling provider's profile.
func (s *Service) SaveProfile(ctx context.Context, actor engagement.Actor, userID uuid.UUID, d ProfileDraft) (provider.Provider, error) {
	const op = "marketplace.save_profile"

	if err := requireRole(op, actor, engagement.RoleProvider); err != nil {
		return provider.Provider{}, err
	}
	if err := validation.Struct(op, d); err != nil {
		return provider.Provider{}, err
	}

	var current []provider.Service
	if existing, err := s.store.GetProvider(ctx, actor.ID); err == nil {
		if existing.UserID != userID {
			return provider.Provider{}, apperr.New(apperr.KindForbidden, op, "provider profile belongs to another account")
		}
		current = existing.Services
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return provider.Provider{}, err
	}

	p := provider.Provider{
		ID:              actor.ID,
		UserID:          userID,
		DisplayName:     d.DisplayName,
		Type:            d.Type,
		Location:        d.Location,
		Availability:    d.Availability,
		Schedule:        d.Schedule,
		Specializations: provider.NormalizeTags(d.Specializations),
	}
	if p.Availability == "" {
		p.Availability = provider.AvailabilityWorkingHours
	}
	for _, sd := range d.Services {
		if sd.Mode == provider.PricingPercentage && sd.Amount > 10_000 {
			return provider.Provider{}, apperr.Newf(apperr.KindValidation, op, "service %q: percentage is in basis points and cannot exceed 10000", sd.Title)
		}
	}
	services, err := keepServiceIDs(op, current, d.Services)
	if err != nil {
		return provider.Provider{}, err
	}
	p.Services = services
	if err := p.Validate(); err != nil {
		return provider.Provider{}, err
	}

	if err := s.store.SaveProvider(ctx, p); err != nil {
		return provider.Provider{}, err
	}
	s.log.Info("provider profile saved", "provider_id", p.ID, "type", p.Type, "services", len(p.Services))
	return s.store.GetProvider(ctx, p.ID)
}

// keepServiceIDs assigns ids to drafts so that bookings referencing an
// existing service stay valid. An explicit id must belong to the provider;
// otherwise an unclaimed service with the same title keeps its id, and the
// rest get new ones.
func keepServiceIDs(op string, current []provider.Service, drafts []ServiceDraft) ([]provider.Service, error) {
	known := make(map[uuid.UUID]bool, len(current))
	for _, svc := range current {
		known[svc.ID] = true
	}
	claimed := make(map[uuid.UUID]bool, len(drafts))
	ids := make([]uuid.UUID, len(drafts))
	for i, sd := range drafts {
		if sd.ID == nil {
			continue
		}
		if !known[*sd.ID] {
			return nil, apperr.Newf(apperr.KindValidation, op, "service %s is not part of this profile", *sd.ID)
		}
		if claimed[*sd.ID] {
			return nil, apperr.Newf(apperr.KindValidation, op, "service %s is listed twice", *sd.ID)
		}
		claimed[*sd.ID] = true
		ids[i] = *sd.ID
	}

	out := make([]provider.Service, len(drafts))
	for i, sd := range drafts {
		id := ids[i]
		if id == uuid.Nil {
			id = uuid.New()
			for _, svc := range current {
				if !claimed[svc.ID] && strings.EqualFold(strings.TrimSpace(svc.Title), strings.TrimSpace(sd.Title)) {
					id = svc.ID
					claimed[svc.ID] = true
					break
				}
			}
		}
		out[i] = provider.Service{ID: id, Title: sd.Title, Mode: sd.Mode, Amount: sd.Amount}
	}
	return out, nil
}
