package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const actorKey contextKey = "actor_id"

// ActorMiddleware extracts the acting user from a Bearer token (HS256,
// signed by the surrounding application) and stores the subject claim in the
// request context. With an empty secret (development mode) the actor is read
// from the X-Actor-ID header instead.
func ActorMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actorID, err := resolveActor(c, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			ctx := context.WithValue(c.Request().Context(), actorKey, actorID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func resolveActor(c echo.Context, secret string) (uuid.UUID, error) {
	if secret == "" {
		raw := c.Request().Header.Get("X-Actor-ID")
		if raw == "" {
			return uuid.Nil, fmt.Errorf("missing X-Actor-ID header")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid X-Actor-ID header")
		}
		return id, nil
	}

	header := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return uuid.Nil, fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("token has no subject")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a user id")
	}
	return id, nil
}

// ActorFromContext returns the acting user placed in the context by
// ActorMiddleware, or uuid.Nil if absent.
func ActorFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(actorKey).(uuid.UUID)
	return id
}

// WithActor returns a context carrying the given actor. Used by tests.
func WithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, id)
}
