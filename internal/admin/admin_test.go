package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/db/memstore"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/middleware"
)

type sweeper struct{ calls int }

func (s *sweeper) CompleteElapsed(context.Context) (int, error) {
	s.calls++
	return 2, nil
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	secret := []byte("admin-secret")
	store := memstore.New()
	now := time.Now().UTC()
	clientID := uuid.New()
	for _, st := range []engagement.BookingStatus{engagement.BookingPending, engagement.BookingCancelled, engagement.BookingCompleted} {
		require.NoError(t, store.CreateBooking(ctx, engagement.Booking{
			ID: uuid.New(), ClientID: clientID, ProviderID: uuid.New(), StartTime: now, Status: st, CreatedAt: now, UpdatedAt: now,
		}))
	}

	sw := &sweeper{}
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(logging.Nop())
	NewHandler(store, sw, logging.Nop()).Register(e.Group("/admin", middleware.JWT(secret), middleware.AdminGuard))

	token := func(role engagement.Role) string {
		tok, err := middleware.SignToken(secret, uuid.New(), role, nil, time.Hour)
		require.NoError(t, err)
		return tok
	}
	do := func(method, path string, role engagement.Role) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Should keep non-admins out", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/admin/stats", engagement.RoleClient).Code)
	})

	t.Run("Should list terminal bookings for audit", func(t *testing.T) {
		rec := do(http.MethodGet, "/admin/bookings?status=cancelled&status=completed&client_id="+clientID.String(), engagement.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)
		assert.NotContains(t, rec.Body.String(), `"status":"pending"`)
	})

	t.Run("Should reject malformed filters", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/admin/bookings?client_id=abc", engagement.RoleAdmin).Code)
		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/admin/bookings?limit=-1", engagement.RoleAdmin).Code)
	})

	t.Run("Should report counts by status", func(t *testing.T) {
		rec := do(http.MethodGet, "/admin/stats", engagement.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"bookings":{`)
		assert.Contains(t, rec.Body.String(), `"cancelled":1`)
	})

	t.Run("Should trigger the sweep", func(t *testing.T) {
		rec := do(http.MethodPost, "/admin/sweep", engagement.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"completed":2}`, rec.Body.String())
		assert.Equal(t, 1, sw.calls)
	})
}
