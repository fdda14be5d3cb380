package marketplace

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/discovery"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/geo"
	"github.com/sudo-init-do/lexhub/internal/middleware"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

const maxPageSize = 100

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts public routes on pub and actor routes on authed, which
// must already run the JWT middleware. search wraps the search endpoint.
func (h *Handler) Register(pub, authed *echo.Group, search ...echo.MiddlewareFunc) {
	pub.GET("/providers/search", h.Search, search...)
	pub.GET("/providers/:id", h.GetProvider)
	pub.GET("/providers/:id/reviews", h.ProviderReviews)
	pub.GET("/money/currencies", h.Currencies)
	pub.GET("/money/quote", h.Quote)
	pub.POST("/money/canonical", h.Canonical)

	authed.PUT("/providers/me", h.SaveProfile, middleware.RequireRoles(engagement.RoleProvider))

	authed.POST("/bookings", h.CreateBooking, middleware.RequireRoles(engagement.RoleClient))
	authed.GET("/bookings/me", h.MyBookings)
	authed.GET("/bookings/:id", h.GetBooking)
	authed.POST("/bookings/:id/review", h.CreateReview)
	authed.POST("/bookings/:id/:action", h.TransitionBooking)

	authed.POST("/postings", h.CreatePosting, middleware.RequireRoles(engagement.RoleClient))
	authed.GET("/postings/me", h.MyPostings, middleware.RequireRoles(engagement.RoleClient))
	authed.POST("/postings/:id/applications", h.Apply, middleware.RequireRoles(engagement.RoleProvider))
	authed.GET("/postings/:id/applications", h.ListApplications)
	authed.POST("/postings/:id/:action", h.TransitionPosting)

	authed.POST("/applications/:id/:action", h.TransitionApplication)
}

func badRequest(op, msg string) error {
	return apperr.New(apperr.KindValidation, op, msg)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("marketplace.path", "invalid id")
	}
	return id, nil
}

func queryFloat(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("marketplace.query", name+" must be a number")
	}
	return &v, nil
}

func queryUint(c echo.Context, name string, def uint64) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("marketplace.query", name+" must be a non-negative integer")
	}
	return v, nil
}

// searchFilter reads the search query. max_price is written in the display
// currency, the same way results are shown. Without sort, results are ordered
// by distance when a location is given and by rating otherwise.
func (h *Handler) searchFilter(c echo.Context) (discovery.SearchFilter, error) {
	const op = "marketplace.search_query"
	f := discovery.SearchFilter{
		Specializations: c.QueryParams()["specialization"],
		Sort:            discovery.SortKey(c.QueryParam("sort")),
	}

	if raw := c.QueryParam("type"); raw != "" {
		t, err := provider.ParseType(raw)
		if err != nil {
			return f, err
		}
		f.Type = &t
	}

	lat, err := queryFloat(c, "lat")
	if err != nil {
		return f, err
	}
	lon, err := queryFloat(c, "lon")
	if err != nil {
		return f, err
	}
	switch {
	case lat != nil && lon != nil:
		f.Location = &geo.Point{Lat: *lat, Lon: *lon}
	case lat != nil || lon != nil:
		return f, badRequest(op, "lat and lon must be given together")
	}

	if f.Sort == "" {
		f.Sort = discovery.SortRating
		if f.Location != nil {
			f.Sort = discovery.SortDistance
		}
	}

	if f.RadiusMeters, err = queryFloat(c, "radius"); err != nil {
		return f, err
	}
	if f.MinRating, err = queryFloat(c, "min_rating"); err != nil {
		return f, err
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		code := c.QueryParam("currency")
		if code == "" {
			code, _ = h.svc.Currencies()
		}
		minor, err := h.svc.ParseAmount(raw, code)
		if err != nil {
			return f, err
		}
		f.MaxPrice = &minor
	}
	return f, nil
}

func (h *Handler) Search(c echo.Context) error {
	f, err := h.searchFilter(c)
	if err != nil {
		return err
	}
	listings, err := h.svc.Search(c.Request().Context(), f, c.QueryParam("currency"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"results": listings, "count": len(listings)})
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Profile(c.Request().Context(), id, c.QueryParam("currency"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ProviderReviews(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	reviews, summary, err := h.svc.ProviderReviews(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": reviews, "summary": summary})
}

func (h *Handler) Currencies(c echo.Context) error {
	base, codes := h.svc.Currencies()
	return c.JSON(http.StatusOK, echo.Map{"base": base, "currencies": codes})
}

func (h *Handler) Quote(c echo.Context) error {
	amount, err := strconv.ParseInt(c.QueryParam("amount"), 10, 64)
	if err != nil {
		return badRequest("marketplace.quote", "amount must be an integer in canonical minor units")
	}
	q, err := h.svc.QuoteAmount(amount, c.QueryParam("currency"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

type canonicalRequest struct {
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) Canonical(c echo.Context) error {
	var req canonicalRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("marketplace.canonical", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	minor, err := h.svc.ParseAmount(req.Amount, req.Currency)
	if err != nil {
		return err
	}
	base, _ := h.svc.Currencies()
	return c.JSON(http.StatusOK, echo.Map{"amount": minor, "currency": base})
}

func (h *Handler) SaveProfile(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	userID, err := middleware.UserIDFrom(c)
	if err != nil {
		return err
	}
	var d ProfileDraft
	if err := c.Bind(&d); err != nil {
		return badRequest("marketplace.save_profile", "invalid request body")
	}
	p, err := h.svc.SaveProfile(c.Request().Context(), actor, userID, d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateBooking(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	var d engagement.BookingDraft
	if err := c.Bind(&d); err != nil {
		return badRequest("marketplace.create_booking", "invalid request body")
	}
	b, err := h.svc.CreateBooking(c.Request().Context(), actor, d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) MyBookings(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	limit, err := queryUint(c, "limit", 50)
	if err != nil {
		return err
	}
	offset, err := queryUint(c, "offset", 0)
	if err != nil {
		return err
	}
	limit = min(limit, maxPageSize)

	var statuses []engagement.BookingStatus
	for _, s := range c.QueryParams()["status"] {
		statuses = append(statuses, engagement.BookingStatus(s))
	}
	bookings, err := h.svc.ListMyBookings(c.Request().Context(), actor, statuses, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

func (h *Handler) GetBooking(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) TransitionBooking(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	b, effects, err := h.svc.TransitionBooking(c.Request().Context(), actor, id, c.Param("action"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b, "status": b.Status, "side_effects": effects})
}

func (h *Handler) CreateReview(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var d engagement.ReviewDraft
	if err := c.Bind(&d); err != nil {
		return badRequest("marketplace.create_review", "invalid request body")
	}
	r, err := h.svc.CreateReview(c.Request().Context(), actor, id, d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) CreatePosting(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	var d engagement.PostingDraft
	if err := c.Bind(&d); err != nil {
		return badRequest("marketplace.create_posting", "invalid request body")
	}
	p, err := h.svc.CreatePosting(c.Request().Context(), actor, d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) MyPostings(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	postings, err := h.svc.ListPostings(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"postings": postings})
}

func (h *Handler) TransitionPosting(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, effects, err := h.svc.TransitionPosting(c.Request().Context(), actor, id, c.Param("action"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"posting": p, "status": p.Status, "side_effects": effects})
}

func (h *Handler) Apply(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var d engagement.ApplicationDraft
	if err := c.Bind(&d); err != nil {
		return badRequest("marketplace.apply", "invalid request body")
	}
	app, err := h.svc.Apply(c.Request().Context(), actor, id, d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, app)
}

func (h *Handler) ListApplications(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.ListApplications(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"posting": g.Posting, "applications": g.Applications, "counts": g.Counts()})
}

func (h *Handler) TransitionApplication(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	app, effects, err := h.svc.TransitionApplication(c.Request().Context(), actor, id, c.Param("action"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"application": app, "status": app.Status, "side_effects": effects})
}
