// Package admin serves operator endpoints: audit listings, counts and a
// manual trigger for the completion sweep.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/logging"
)

type Store interface {
	ListBookings(ctx context.Context, q db.BookingQuery) ([]engagement.Booking, error)
	Stats(ctx context.Context) (db.Stats, error)
}

// Sweeper completes elapsed bookings on demand.
type Sweeper interface {
	CompleteElapsed(ctx context.Context) (int, error)
}

type Handler struct {
	store   Store
	sweeper Sweeper
	log     *logging.Logger
}

func NewHandler(store Store, sweeper Sweeper, log *logging.Logger) *Handler {
	return &Handler{store: store, sweeper: sweeper, log: log}
}

// Register mounts the routes on a group already guarded for admins.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/bookings", h.ListBookings)
	g.GET("/stats", h.Stats)
	g.POST("/sweep", h.Sweep)
}

// ListBookings is the audit view: every status, terminal ones included.
// GET /admin/bookings?status=&client_id=&provider_id=&limit=&offset=
func (h *Handler) ListBookings(c echo.Context) error {
	const op = "admin.list_bookings"
	q := db.BookingQuery{Limit: 100}

	for _, s := range c.QueryParams()["status"] {
		q.Statuses = append(q.Statuses, engagement.BookingStatus(s))
	}
	for name, dst := range map[string]**uuid.UUID{"client_id": &q.ClientID, "provider_id": &q.ProviderID} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Newf(apperr.KindValidation, op, "invalid %s", name)
		}
		*dst = &id
	}
	for name, dst := range map[string]*uint64{"limit": &q.Limit, "offset": &q.Offset} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return apperr.Newf(apperr.KindValidation, op, "invalid %s", name)
		}
		*dst = v
	}
	q.Limit = min(max(q.Limit, 1), 500)

	bookings, err := h.store.ListBookings(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// POST /admin/sweep
func (h *Handler) Sweep(c echo.Context) error {
	n, err := h.sweeper.CompleteElapsed(c.Request().Context())
	if err != nil {
		return err
	}
	h.log.Info("manual completion sweep", "completed", n)
	return c.JSON(http.StatusOK, echo.Map{"completed": n})
}
