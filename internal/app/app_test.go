package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/config"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/middleware"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) string {
		return map[string]string{
			"STORE":      config.StoreMemory,
			"JWT_SECRET": "app-secret",
		}[key]
	})
	require.NoError(t, err)
	return cfg
}

func call(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestApp(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := New(ctx, cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	secret := []byte(cfg.JWTSecret)
	sign := func(user uuid.UUID, role engagement.Role, prov *uuid.UUID) string {
		tok, err := middleware.SignToken(secret, user, role, prov, time.Hour)
		require.NoError(t, err)
		return tok
	}

	t.Run("Should answer health and readiness", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, call(a.Echo, http.MethodGet, "/health", "", "").Code)
		assert.Equal(t, http.StatusOK, call(a.Echo, http.MethodGet, "/ready", "", "").Code)
	})

	providerID := uuid.New()
	providerTok := sign(uuid.New(), engagement.RoleProvider, &providerID)
	clientID := uuid.New()
	clientTok := sign(clientID, engagement.RoleClient, nil)

	t.Run("Should run a booking end to end with inline notifications", func(t *testing.T) {
		rec := call(a.Echo, http.MethodPut, "/providers/me",
			`{"display_name":"Maria Ionescu","provider_type":"lawyer","location":{"lat":44.43,"lon":26.10,"service_radius_meters":20000},"specializations":["Drept Comercial"],"services":[{"title":"Consultation","pricing_mode":"hourly","amount":25000}]}`,
			providerTok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = call(a.Echo, http.MethodGet, "/providers/search?specialization=drept-comercial&currency=RON", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), providerID.String())
		assert.Contains(t, rec.Body.String(), "1.242,50 lei")

		start := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
		rec = call(a.Echo, http.MethodPost, "/bookings", `{"provider_id":"`+providerID.String()+`","start_time":"`+start+`","total_amount":25000}`, clientTok)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var b engagement.Booking
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))

		rec = call(a.Echo, http.MethodPost, "/bookings/"+b.ID.String()+"/confirm", "", providerTok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = call(a.Echo, http.MethodGet, "/notifications", "", clientTok)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "booking_confirmed")

		rec = call(a.Echo, http.MethodGet, "/notifications", "", providerTok)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "booking_requested")
	})

	t.Run("Should expose metrics", func(t *testing.T) {
		rec := call(a.Echo, http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `lexhub_transitions_total{action="confirm",entity="booking",outcome="ok"} 1`)
		assert.Contains(t, rec.Body.String(), "lexhub_searches_total")
	})

	t.Run("Should guard admin routes", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call(a.Echo, http.MethodGet, "/admin/stats", "", "").Code)
		assert.Equal(t, http.StatusForbidden, call(a.Echo, http.MethodGet, "/admin/stats", "", clientTok).Code)

		rec := call(a.Echo, http.MethodGet, "/admin/stats", "", sign(uuid.New(), engagement.RoleAdmin, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"providers":1`)
	})

	t.Run("Should schedule the sweep", func(t *testing.T) {
		require.NoError(t, a.StartSweeper())
	})
}

func TestApp_BadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.SweepSchedule = "every tuesday"
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	assert.Error(t, a.StartSweeper())
}
