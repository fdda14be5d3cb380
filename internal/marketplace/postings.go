package marketplace

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/engagement"
)

func (s *Service) CreatePosting(ctx context.Context, actor engagement.Actor, d engagement.PostingDraft) (engagement.Posting, error) {
	if err := requireRole("marketplace.create_posting", actor, engagement.RoleClient); err != nil {
		return engagement.Posting{}, err
	}
	d.ClientID = actor.ID

	p, err := engagement.NewPosting(d, s.now())
	if err != nil {
		return engagement.Posting{}, err
	}
	if err := s.store.CreatePosting(ctx, p); err != nil {
		return engagement.Posting{}, err
	}
	s.log.Info("posting created", "posting_id", p.ID, "required_type", p.RequiredType, "urgency", p.Urgency)
	return p, nil
}

func (s *Service) ListPostings(ctx context.Context, actor engagement.Actor) ([]engagement.Posting, error) {
	if err := requireRole("marketplace.list_postings", actor, engagement.RoleClient); err != nil {
		return nil, err
	}
	return s.store.ListPostings(ctx, actor.ID)
}

// TransitionPosting completes or cancels a posting together with its
// applications.
func (s *Service) TransitionPosting(ctx context.Context, actor engagement.Actor, id uuid.UUID, action string) (engagement.Posting, []engagement.SideEffect, error) {
	act, err := engagement.ParsePostingAction(action)
	if err != nil {
		s.observe("posting", "unknown", err)
		return engagement.Posting{}, nil, err
	}

	var effects []engagement.SideEffect
	g, err := s.store.UpdatePostingGroup(ctx, id, func(cur engagement.PostingGroup) (engagement.PostingGroup, error) {
		next, eff, err := engagement.TransitionPosting(cur, act, actor, s.now())
		effects = eff
		return next, err
	})
	s.observe("posting", string(act), err)
	if err != nil {
		return engagement.Posting{}, nil, err
	}

	s.log.Info("posting transitioned", "posting_id", id, "action", act, "status", g.Posting.Status)
	s.emit(ctx, effects)
	return g.Posting, effects, nil
}

// Apply submits the calling provider's application to a posting.
func (s *Service) Apply(ctx context.Context, actor engagement.Actor, postingID uuid.UUID, d engagement.ApplicationDraft) (engagement.Application, error) {
	const op = "marketplace.apply"

	if err := requireRole(op, actor, engagement.RoleProvider); err != nil {
		return engagement.Application{}, err
	}
	p, err := s.store.GetProvider(ctx, actor.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return engagement.Application{}, apperr.New(apperr.KindForbidden, op, "create a provider profile before applying")
	}
	if err != nil {
		return engagement.Application{}, err
	}
	d.ProviderID = p.ID
	d.ProviderType = p.Type

	var effects []engagement.SideEffect
	app, err := s.store.AddApplication(ctx, postingID, func(g engagement.PostingGroup) (engagement.Application, error) {
		a, eff, err := engagement.NewApplication(g, d, s.now())
		effects = eff
		return a, err
	})
	s.observe("application", "submit", err)
	if err != nil {
		return engagement.Application{}, err
	}
	s.emit(ctx, effects)
	return app, nil
}

// ListApplications shows a posting's applications to its owner.
func (s *Service) ListApplications(ctx context.Context, actor engagement.Actor, postingID uuid.UUID) (engagement.PostingGroup, error) {
	g, err := s.store.GetPostingGroup(ctx, postingID)
	if err != nil {
		return engagement.PostingGroup{}, err
	}
	owner := actor.Role == engagement.RoleClient && actor.ID == g.Posting.ClientID
	if !owner && actor.Role != engagement.RoleAdmin {
		return engagement.PostingGroup{}, apperr.New(apperr.KindForbidden, "marketplace.list_applications", "only the posting owner can list applications")
	}
	return g, nil
}

// TransitionApplication accepts, rejects or withdraws an application. The
// whole posting group is locked so an accept and its sibling rejections are
// saved together.
func (s *Service) TransitionApplication(ctx context.Context, actor engagement.Actor, applicationID uuid.UUID, action string) (engagement.Application, []engagement.SideEffect, error) {
	act, err := engagement.ParseApplicationAction(action)
	if err != nil {
		s.observe("application", "unknown", err)
		return engagement.Application{}, nil, err
	}
	postingID, err := s.store.PostingIDForApplication(ctx, applicationID)
	if err != nil {
		return engagement.Application{}, nil, err
	}

	var effects []engagement.SideEffect
	g, err := s.store.UpdatePostingGroup(ctx, postingID, func(cur engagement.PostingGroup) (engagement.PostingGroup, error) {
		next, eff, err := engagement.TransitionApplication(cur, applicationID, act, actor, s.now())
		effects = eff
		return next, err
	})
	s.observe("application", string(act), err)
	if err != nil {
		return engagement.Application{}, nil, err
	}

	s.log.Info("application transitioned", "application_id", applicationID, "posting_id", postingID, "action", act, "posting_status", g.Posting.Status)
	s.emit(ctx, effects)
	for _, a := range g.Applications {
		if a.ID == applicationID {
			return a, effects, nil
		}
	}
	return engagement.Application{}, nil, apperr.Newf(apperr.KindNotFound, "marketplace.transition_application", "application %s not found", applicationID)
}
