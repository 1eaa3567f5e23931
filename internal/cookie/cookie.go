// Package cookie provides helpers for the checkout session cookie.
package cookie

import (
	"net/http"
	"time"
)

// SessionCookieName carries the checkout session token between requests.
const SessionCookieName = "softsell_session"

// SetSession sets the session cookie, expiring alongside the session row.
// HttpOnly keeps the token away from scripts; Secure follows the request
// scheme so local development over plain HTTP still works.
func SetSession(w http.ResponseWriter, r *http.Request, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession removes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Get retrieves a cookie value from the request, empty when absent.
func Get(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
