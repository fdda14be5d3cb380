package engagement

import (
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/geo"
	"github.com/sudo-init-do/lexhub/internal/provider"
	"github.com/sudo-init-do/lexhub/internal/validation"
)

type PostingStatus string

const (
	PostingOpen      PostingStatus = "open"
	PostingAssigned  PostingStatus = "assigned"
	PostingCompleted PostingStatus = "completed"
	PostingCancelled PostingStatus = "cancelled"
)

func (s PostingStatus) Terminal() bool {
	return s == PostingCompleted || s == PostingCancelled
}

type PostingAction string

const (
	PostingComplete PostingAction = "complete"
	PostingCancel   PostingAction = "cancel"
)

func ParsePostingAction(s string) (PostingAction, error) {
	switch a := PostingAction(s); a {
	case PostingComplete, PostingCancel:
		return a, nil
	default:
		return "", apperr.Newf(apperr.KindValidation, "engagement.posting", "unknown posting action %q", s)
	}
}

var postingGraph = map[PostingStatus]map[PostingAction]PostingStatus{
	PostingOpen: {
		PostingCancel: PostingCancelled,
	},
	PostingAssigned: {
		PostingComplete: PostingCompleted,
		PostingCancel:   PostingCancelled,
	},
}

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Terminal excludes accepted: an accepted application has no outgoing edge of
// its own but still tracks a live engagement.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationRejected || s == ApplicationWithdrawn
}

// Live reports whether the application still occupies the provider's slot on
// the posting.
func (s ApplicationStatus) Live() bool {
	return s == ApplicationPending || s == ApplicationAccepted
}

type ApplicationAction string

const (
	ApplicationAccept   ApplicationAction = "accept"
	ApplicationReject   ApplicationAction = "reject"
	ApplicationWithdraw ApplicationAction = "withdraw"
)

func ParseApplicationAction(s string) (ApplicationAction, error) {
	switch a := ApplicationAction(s); a {
	case ApplicationAccept, ApplicationReject, ApplicationWithdraw:
		return a, nil
	default:
		return "", apperr.Newf(apperr.KindValidation, "engagement.application", "unknown application action %q", s)
	}
}

var applicationGraph = map[ApplicationStatus]map[ApplicationAction]ApplicationStatus{
	ApplicationPending: {
		ApplicationAccept:   ApplicationAccepted,
		ApplicationReject:   ApplicationRejected,
		ApplicationWithdraw: ApplicationWithdrawn,
	},
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

type Posting struct {
	ID                 uuid.UUID            `json:"id" db:"id"`
	ClientID           uuid.UUID            `json:"client_id" db:"client_id"`
	Title              string               `json:"title" db:"title"`
	Description        string               `json:"description" db:"description"`
	RequiredType       provider.Type        `json:"required_type" db:"required_type"`
	PricingMode        provider.PricingMode `json:"pricing_mode" db:"pricing_mode"`
	Budget             int64                `json:"budget" db:"budget"`
	Location           *geo.Point           `json:"location,omitempty" db:"-"`
	Urgency            Urgency              `json:"urgency" db:"urgency"`
	Deadline           *time.Time           `json:"deadline,omitempty" db:"deadline"`
	Status             PostingStatus        `json:"status" db:"status"`
	AssignedProviderID *uuid.UUID           `json:"assigned_provider_id,omitempty" db:"assigned_provider_id"`
	CreatedAt          time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at" db:"updated_at"`
}

type Application struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	PostingID        uuid.UUID         `json:"posting_id" db:"posting_id"`
	ProviderID       uuid.UUID         `json:"provider_id" db:"provider_id"`
	ProposedPrice    int64             `json:"proposed_price" db:"proposed_price"`
	ProposedDeadline *time.Time        `json:"proposed_deadline,omitempty" db:"proposed_deadline"`
	CoverText        string            `json:"cover_text" db:"cover_text"`
	Status           ApplicationStatus `json:"status" db:"status"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// PostingGroup is a posting with every application made to it. Storage loads
// and saves it as one unit so group transitions stay atomic.
type PostingGroup struct {
	Posting      Posting       `json:"posting"`
	Applications []Application `json:"applications"`
}

func (g PostingGroup) find(id uuid.UUID) int {
	for i, a := range g.Applications {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Counts tallies applications by status.
func (g PostingGroup) Counts() map[ApplicationStatus]int {
	out := make(map[ApplicationStatus]int, 4)
	for _, a := range g.Applications {
		out[a.Status]++
	}
	return out
}

func (g PostingGroup) clone() PostingGroup {
	apps := make([]Application, len(g.Applications))
	copy(apps, g.Applications)
	g.Applications = apps
	return g
}

// TransitionApplication applies action to one application of g and returns
// the whole updated group. Accept also rejects every other pending
// application and assigns the posting. On error g is returned unchanged.
func TransitionApplication(g PostingGroup, applicationID uuid.UUID, action ApplicationAction, actor Actor, now time.Time) (PostingGroup, []SideEffect, error) {
	const op = "engagement.application"

	if _, err := ParseApplicationAction(string(action)); err != nil {
		return g, nil, err
	}
	idx := g.find(applicationID)
	if idx < 0 {
		return g, nil, apperr.Newf(apperr.KindNotFound, op, "application %s is not on posting %s", applicationID, g.Posting.ID)
	}
	app := g.Applications[idx]

	switch action {
	case ApplicationAccept, ApplicationReject:
		if actor.Role != RoleClient || actor.ID != g.Posting.ClientID {
			return g, nil, apperr.Newf(apperr.KindForbidden, op, "only the posting owner can %s applications", action)
		}
	case ApplicationWithdraw:
		if actor.Role != RoleProvider || actor.ID != app.ProviderID {
			return g, nil, apperr.New(apperr.KindForbidden, op, "only the applicant can withdraw")
		}
	}

	// The posting is checked before the application so that a late accept on
	// an already rejected application reports the posting as taken.
	if action == ApplicationAccept && g.Posting.Status != PostingOpen {
		return g, nil, apperr.Newf(apperr.KindInvalidTransition, op, "posting %s is %s", g.Posting.ID, g.Posting.Status)
	}
	if app.Status.Terminal() {
		return g, nil, apperr.Newf(apperr.KindTerminalStateViolation, op, "application %s is %s", app.ID, app.Status)
	}
	next, ok := applicationGraph[app.Status][action]
	if !ok {
		return g, nil, apperr.Newf(apperr.KindInvalidTransition, op, "cannot %s a %s application", action, app.Status)
	}

	out := g.clone()
	out.Applications[idx].Status = next
	out.Applications[idx].UpdatedAt = now

	switch action {
	case ApplicationAccept:
		effects := []SideEffect{
			notify("application_accepted", RoleProvider, app.ProviderID, SubjectApplication, app.ID),
		}
		for i := range out.Applications {
			other := &out.Applications[i]
			if i == idx || other.Status != ApplicationPending {
				continue
			}
			other.Status = ApplicationRejected
			other.UpdatedAt = now
			effects = append(effects, notify("application_rejected", RoleProvider, other.ProviderID, SubjectApplication, other.ID))
		}
		assigned := app.ProviderID
		out.Posting.Status = PostingAssigned
		out.Posting.AssignedProviderID = &assigned
		out.Posting.UpdatedAt = now
		return out, effects, nil
	case ApplicationReject:
		return out, []SideEffect{
			notify("application_rejected", RoleProvider, app.ProviderID, SubjectApplication, app.ID),
		}, nil
	default:
		return out, []SideEffect{
			notify("application_withdrawn", RoleClient, g.Posting.ClientID, SubjectApplication, app.ID),
		}, nil
	}
}

// TransitionPosting completes or cancels a posting. Cancelling an open
// posting rejects its pending applications in the same group.
func TransitionPosting(g PostingGroup, action PostingAction, actor Actor, now time.Time) (PostingGroup, []SideEffect, error) {
	const op = "engagement.posting"

	if _, err := ParsePostingAction(string(action)); err != nil {
		return g, nil, err
	}
	p := g.Posting
	if p.Status.Terminal() {
		return g, nil, apperr.Newf(apperr.KindTerminalStateViolation, op, "posting %s is %s", p.ID, p.Status)
	}
	if actor.Role != RoleClient || actor.ID != p.ClientID {
		return g, nil, apperr.Newf(apperr.KindForbidden, op, "only the posting owner can %s it", action)
	}
	next, ok := postingGraph[p.Status][action]
	if !ok {
		return g, nil, apperr.Newf(apperr.KindInvalidTransition, op, "cannot %s a %s posting", action, p.Status)
	}

	out := g.clone()
	out.Posting.Status = next
	out.Posting.UpdatedAt = now

	var effects []SideEffect
	if p.AssignedProviderID != nil {
		event := "posting_completed"
		if next == PostingCancelled {
			event = "posting_cancelled"
		}
		effects = append(effects, notify(event, RoleProvider, *p.AssignedProviderID, SubjectPosting, p.ID))
	}
	if next == PostingCompleted && p.AssignedProviderID != nil {
		effects = append(effects, SideEffect{Kind: EffectRecordCompletion, RecipientRole: RoleProvider, RecipientID: *p.AssignedProviderID, Subject: SubjectPosting, SubjectID: p.ID})
	}
	if next == PostingCancelled {
		for i := range out.Applications {
			a := &out.Applications[i]
			if a.Status != ApplicationPending {
				continue
			}
			a.Status = ApplicationRejected
			a.UpdatedAt = now
			effects = append(effects, notify("application_rejected", RoleProvider, a.ProviderID, SubjectApplication, a.ID))
		}
	}
	return out, effects, nil
}

// PostingDraft is a client's new job posting.
type PostingDraft struct {
	ClientID     uuid.UUID            `json:"-" validate:"required"`
	Title        string               `json:"title" validate:"required,max=200"`
	Description  string               `json:"description" validate:"max=5000"`
	RequiredType provider.Type        `json:"required_type" validate:"required"`
	PricingMode  provider.PricingMode `json:"pricing_mode" validate:"required"`
	Budget       int64                `json:"budget" validate:"gte=0"`
	Location     *geo.Point           `json:"location,omitempty"`
	Urgency      Urgency              `json:"urgency,omitempty" validate:"omitempty,oneof=low normal urgent"`
	Deadline     *time.Time           `json:"deadline,omitempty"`
}

func NewPosting(d PostingDraft, now time.Time) (Posting, error) {
	const op = "engagement.new_posting"

	if err := validation.Struct(op, d); err != nil {
		return Posting{}, err
	}
	if !d.RequiredType.Valid() {
		return Posting{}, apperr.Newf(apperr.KindValidation, op, "unknown provider type %q", d.RequiredType)
	}
	if !d.PricingMode.Valid() {
		return Posting{}, apperr.Newf(apperr.KindValidation, op, "unknown pricing mode %q", d.PricingMode)
	}
	if d.PricingMode == provider.PricingPercentage && d.Budget > 10_000 {
		return Posting{}, apperr.New(apperr.KindValidation, op, "percentage budget is in basis points and cannot exceed 10000")
	}
	if d.Location != nil {
		if err := d.Location.Validate(); err != nil {
			return Posting{}, err
		}
	}
	if d.Deadline != nil && !d.Deadline.After(now) {
		return Posting{}, apperr.New(apperr.KindValidation, op, "deadline is in the past")
	}
	urgency := d.Urgency
	if urgency == "" {
		urgency = UrgencyNormal
	}

	return Posting{
		ID:           uuid.New(),
		ClientID:     d.ClientID,
		Title:        d.Title,
		Description:  d.Description,
		RequiredType: d.RequiredType,
		PricingMode:  d.PricingMode,
		Budget:       d.Budget,
		Location:     d.Location,
		Urgency:      urgency,
		Deadline:     utc(d.Deadline),
		Status:       PostingOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ApplicationDraft is a provider's bid on a posting.
type ApplicationDraft struct {
	ProviderID       uuid.UUID     `json:"-" validate:"required"`
	ProviderType     provider.Type `json:"-" validate:"required"`
	ProposedPrice    int64         `json:"proposed_price" validate:"gte=0"`
	ProposedDeadline *time.Time    `json:"proposed_deadline,omitempty"`
	CoverText        string        `json:"cover_text" validate:"max=5000"`
}

// NewApplication adds a pending application to g. A provider holds at most one
// live application per posting.
func NewApplication(g PostingGroup, d ApplicationDraft, now time.Time) (Application, []SideEffect, error) {
	const op = "engagement.new_application"

	if err := validation.Struct(op, d); err != nil {
		return Application{}, nil, err
	}
	p := g.Posting
	if p.Status != PostingOpen {
		return Application{}, nil, apperr.Newf(apperr.KindInvalidTransition, op, "posting %s is %s", p.ID, p.Status)
	}
	if d.ProviderType != p.RequiredType {
		return Application{}, nil, apperr.Newf(apperr.KindForbidden, op, "posting requires a %s", p.RequiredType)
	}
	for _, a := range g.Applications {
		if a.ProviderID == d.ProviderID && a.Status.Live() {
			return Application{}, nil, apperr.Newf(apperr.KindConflict, op, "provider already applied to posting %s", p.ID)
		}
	}

	app := Application{
		ID:               uuid.New(),
		PostingID:        p.ID,
		ProviderID:       d.ProviderID,
		ProposedPrice:    d.ProposedPrice,
		ProposedDeadline: utc(d.ProposedDeadline),
		CoverText:        d.CoverText,
		Status:           ApplicationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return app, []SideEffect{
		notify("application_received", RoleClient, p.ClientID, SubjectApplication, app.ID),
	}, nil
}
