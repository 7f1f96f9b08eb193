package client

import (
	"net/http"
	"net/url"
)

const csrfCookieName = "csrftoken"

// CSRFTokenProvider supplies the double-submit token attached to mutating
// requests. A false return means no credential is available.
type CSRFTokenProvider interface {
	CSRFToken() (string, bool)
}

// JarCSRF reads the csrftoken cookie from a cookie jar, the way a browser
// session would. Cookie values may be percent-encoded, so the token is
// URL-decoded before use.
type JarCSRF struct {
	Jar http.CookieJar
	URL *url.URL
}

func (j *JarCSRF) CSRFToken() (string, bool) {
	if j.Jar == nil || j.URL == nil {
		return "", false
	}
	for _, cookie := range j.Jar.Cookies(j.URL) {
		if cookie.Name == csrfCookieName && cookie.Value != "" {
			return decodeToken(cookie.Value), true
		}
	}
	return "", false
}

// StaticCSRF returns a fixed token. Useful in tests and tools that manage
// the session out of band.
type StaticCSRF string

func (s StaticCSRF) CSRFToken() (string, bool) {
	return string(s), s != ""
}

func decodeToken(v string) string {
	if decoded, err := url.QueryUnescape(v); err == nil {
		return decoded
	}
	return v
}
