package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := mw(handler)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	rec := run(t, SecurityHeaders(), req, okHandler)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestBodyLimit_RejectsOversized(t *testing.T) {
	body := strings.NewReader(strings.Repeat("x", 2048))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/adjust", body)
	rec := run(t, BodyLimit("1K", "8M"), req, func(c echo.Context) error {
		buf := make([]byte, 4096)
		for {
			if _, err := c.Request().Body.Read(buf); err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					return he
				}
				return c.NoContent(http.StatusOK)
			}
		}
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestBodyLimit_DispenseGetsLargerLimit(t *testing.T) {
	body := strings.NewReader(strings.Repeat("x", 2048))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/dispense", body)
	rec := run(t, BodyLimit("1K", "8M"), req, func(c echo.Context) error {
		buf := make([]byte, 4096)
		for {
			if _, err := c.Request().Body.Read(buf); err != nil {
				return c.NoContent(http.StatusOK)
			}
		}
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for photo-sized dispense body", rec.Code)
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int64{
		"1K":   1 << 10,
		"8M":   8 << 20,
		"1G":   1 << 30,
		"4096": 4096,
		"":     1 << 20,
		"bad":  1 << 20,
	}
	for in, want := range cases {
		if got := parseLimit(in); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRequestTimeout(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	rec := run(t, RequestTimeout(20*time.Millisecond), req, func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		case <-time.After(time.Second):
			return c.NoContent(http.StatusOK)
		}
	})
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestRequestTimeout_FastHandlerPasses(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
	rec := run(t, RequestTimeout(time.Second), req, okHandler)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	mw := RateLimit(1, 2)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
		req.Header.Set("Authorization", "Bearer same-actor")
		rec := run(t, mw, req, okHandler)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("burst requests rejected: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	mw := RateLimit(1, 1)

	for i, token := range []string{"Bearer a", "Bearer b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/activities", nil)
		req.Header.Set("Authorization", token)
		if rec := run(t, mw, req, okHandler); rec.Code != http.StatusOK {
			t.Errorf("client %d rejected with %d", i, rec.Code)
		}
	}
}
