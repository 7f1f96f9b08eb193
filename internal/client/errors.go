package client

import (
	"fmt"
	"sort"
	"strings"
)

// FetchError reports a failure to load or parse data from the API:
// network trouble, an unexpected status, or an unreadable body.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MissingCredentialError means the CSRF token is absent. Submission stops
// before any network traffic happens.
type MissingCredentialError struct{}

func (e *MissingCredentialError) Error() string {
	return "csrf token missing: reload the page to obtain a session"
}

// ValidationError carries the server's per-field rejection messages,
// verbatim, keyed by field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// DeleteError reports a failed removal. Any response other than
// 204 No Content counts as failure.
type DeleteError struct {
	ID         int64
	StatusCode int
	Err        error
}

func (e *DeleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delete transaction %d: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("delete transaction %d: unexpected status %d", e.ID, e.StatusCode)
}

func (e *DeleteError) Unwrap() error { return e.Err }
