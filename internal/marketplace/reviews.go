package marketplace

import (
	"context"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/engagement"
)

// CreateReview records a participant's review of a completed booking. Client
// reviews feed the provider's rating.
func (s *Service) CreateReview(ctx context.Context, actor engagement.Actor, bookingID uuid.UUID, d engagement.ReviewDraft) (engagement.Review, error) {
	var effects []engagement.SideEffect
	r, err := s.store.AddReview(ctx, bookingID, func(b engagement.Booking, existing []engagement.Review) (engagement.Review, error) {
		r, eff, err := engagement.NewReview(b, actor, d, existing, s.now())
		effects = eff
		return r, err
	})
	s.observe("review", "create", err)
	if err != nil {
		return engagement.Review{}, err
	}
	s.emit(ctx, effects)
	return r, nil
}

func (s *Service) ProviderReviews(ctx context.Context, providerID uuid.UUID) ([]engagement.Review, engagement.Summary, error) {
	if _, err := s.store.GetProvider(ctx, providerID); err != nil {
		return nil, engagement.Summary{}, err
	}
	reviews, err := s.store.ListProviderReviews(ctx, providerID)
	if err != nil {
		return nil, engagement.Summary{}, err
	}
	return reviews, engagement.Summarize(reviews), nil
}
