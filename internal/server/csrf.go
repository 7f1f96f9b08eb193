package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
	csrfTokenBytes = 32
	csrfCookieAge  = 365 * 24 * 60 * 60 // one year, matching browser session reuse
)

// newCSRFToken generates a random hex token for the double-submit cookie.
func newCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ensureCSRFCookie sets the csrftoken cookie when the request carries none,
// and returns the token that is now associated with the client.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieAge,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// checkCSRF validates the double-submit pair: the csrftoken cookie must be
// present and match the X-CSRFToken header. Header and cookie values may be
// URL-encoded by the browser, so both are decoded before comparison.
func checkCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return false
	}

	cookieVal := decodeToken(cookie.Value)
	headerVal := decodeToken(header)
	return subtle.ConstantTimeCompare([]byte(cookieVal), []byte(headerVal)) == 1
}

func decodeToken(v string) string {
	if decoded, err := url.QueryUnescape(v); err == nil {
		return decoded
	}
	return v
}
