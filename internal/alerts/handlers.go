package alerts

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/middleware"
)

// Inbox is the notification store the HTTP handlers read from.
type Inbox interface {
	ListNotifications(ctx context.Context, recipient engagement.Actor, unreadOnly bool) ([]db.Notification, error)
	MarkNotificationRead(ctx context.Context, recipient engagement.Actor, id uuid.UUID) error
}

type Handler struct {
	inbox Inbox
}

func NewHandler(inbox Inbox) *Handler {
	return &Handler{inbox: inbox}
}

// Register mounts the notification routes on an authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/read", h.MarkRead)
}

// List returns the caller's notifications, newest first. ?unread=true
// limits the list to unread items.
func (h *Handler) List(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	items, err := h.inbox.ListNotifications(c.Request().Context(), actor, c.QueryParam("unread") == "true")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

func (h *Handler) MarkRead(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.New(apperr.KindValidation, "alerts.mark_read", "invalid notification id")
	}
	if err := h.inbox.MarkNotificationRead(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}
