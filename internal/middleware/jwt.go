package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/engagement"
)

const (
	actorKey  = "actor"
	userIDKey = "user_id"
)

// Claims is the bearer token body. Provider tokens carry the provider
// profile id, which is what engagement records reference.
type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	ProviderID string `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity the engagement rules check.
func (c Claims) Actor() (engagement.Actor, error) {
	role := engagement.Role(c.Role)
	if !role.Valid() || role == engagement.RoleSystem {
		return engagement.Actor{}, errors.New("invalid role claim")
	}
	raw := c.UserID
	if role == engagement.RoleProvider {
		raw = c.ProviderID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return engagement.Actor{}, errors.New("invalid subject claim")
	}
	return engagement.Actor{ID: id, Role: role}, nil
}

// SignToken issues an HS256 token for the given identity.
func SignToken(secret []byte, userID uuid.UUID, role engagement.Role, providerID *uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if providerID != nil {
		claims.ProviderID = providerID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWT authenticates the Authorization bearer token and stores the actor
// on the context.
func JWT(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			var claims Claims
			_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actor, err := claims.Actor()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid user claim")
			}
			c.Set(actorKey, actor)
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// ActorFrom returns the authenticated actor. Handlers behind JWT can rely
// on it being present.
func ActorFrom(c echo.Context) (engagement.Actor, error) {
	a, ok := c.Get(actorKey).(engagement.Actor)
	if !ok {
		return engagement.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	return a, nil
}

// UserIDFrom returns the account id behind the token. For providers it
// differs from the actor id.
func UserIDFrom(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	return id, nil
}

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...engagement.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, err := ActorFrom(c)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if a.Role == r {
					return next(c)
				}
			}
			return apperr.Newf(apperr.KindForbidden, "middleware.require_roles", "role %s not allowed", a.Role)
		}
	}
}

// AdminGuard restricts a group to admins.
var AdminGuard = RequireRoles(engagement.RoleAdmin)
