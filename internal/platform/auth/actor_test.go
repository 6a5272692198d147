package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func callWithActor(t *testing.T, secret string, decorate func(*http.Request)) (int, uuid.UUID) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	decorate(req)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got uuid.UUID
	handler := ActorMiddleware(secret)(func(c echo.Context) error {
		got = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec.Code, got
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestActorMiddleware_BearerToken(t *testing.T) {
	actorID := uuid.New()
	code, got := callWithActor(t, "secret", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", actorID.String()))
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got != actorID {
		t.Errorf("actor = %s, want %s", got, actorID)
	}
}

func TestActorMiddleware_Rejections(t *testing.T) {
	actorID := uuid.New()
	cases := []struct {
		name     string
		decorate func(*http.Request)
	}{
		{"no token", func(*http.Request) {}},
		{"wrong signing key", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", actorID.String()))
		}},
		{"subject not a uuid", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "nurse-7"))
		}},
		{"malformed token", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer not.a.jwt")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := callWithActor(t, "secret", tc.decorate)
			if code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", code)
			}
		})
	}
}

func TestActorMiddleware_DevHeader(t *testing.T) {
	actorID := uuid.New()
	code, got := callWithActor(t, "", func(req *http.Request) {
		req.Header.Set("X-Actor-ID", actorID.String())
	})
	if code != http.StatusOK || got != actorID {
		t.Errorf("dev mode: status %d actor %s, want 200 %s", code, got, actorID)
	}

	code, _ = callWithActor(t, "", func(*http.Request) {})
	if code != http.StatusUnauthorized {
		t.Errorf("dev mode without header: status = %d, want 401", code)
	}
}

func TestWithActor(t *testing.T) {
	actorID := uuid.New()
	ctx := WithActor(context.Background(), actorID)
	if got := ActorFromContext(ctx); got != actorID {
		t.Errorf("actor = %s, want %s", got, actorID)
	}
	if got := ActorFromContext(context.Background()); got != uuid.Nil {
		t.Errorf("empty context actor = %s, want nil uuid", got)
	}
}
