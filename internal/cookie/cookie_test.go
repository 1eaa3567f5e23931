package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetSessionAndGet(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/session", nil)

	SetSession(rr, req, "tok_123", time.Now().Add(time.Hour))

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "tok_123" {
		t.Errorf("unexpected cookie: %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if c.Secure {
		t.Error("plain HTTP request should not set a Secure cookie")
	}

	next := httptest.NewRequest(http.MethodPost, "/api/checkout/session", nil)
	next.AddCookie(c)
	if got := Get(next, SessionCookieName); got != "tok_123" {
		t.Errorf("expected tok_123, got %q", got)
	}
}

func TestClearSession(t *testing.T) {
	rr := httptest.NewRecorder()
	ClearSession(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 {
		t.Errorf("expected MaxAge -1, got %d", cookies[0].MaxAge)
	}
}

func TestGet_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := Get(req, SessionCookieName); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
}
