// Package client is the typed HTTP client for the transaction API. It
// mirrors the browser contract: CSRF on every mutation, no retries, and
// removal gated behind an explicit confirmation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
)

const (
	csrfHeaderName = "X-CSRFToken"
	defaultTimeout = 15 * time.Second
)

// Client talks to the transaction API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	csrf       CSRFTokenProvider
	logger     *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger.WithComponent(log.ComponentClient) }
}

// New creates a client for the API at baseURL. The CSRF provider supplies
// the token for mutating calls; pass a JarCSRF bound to the same cookie
// jar as the HTTP client for browser-like sessions.
func New(baseURL string, csrf CSRFTokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		csrf:       csrf,
		logger:     log.New(log.Config{Component: log.ComponentClient}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession creates a client with a fresh cookie jar shared between the
// HTTP client and the CSRF provider. Visiting the index page (FetchSession)
// populates the jar with the csrftoken cookie.
func NewSession(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	csrf := &JarCSRF{Jar: jar, URL: base}
	c := New(baseURL, csrf, opts...)
	c.httpClient.Jar = jar
	return c, nil
}

// FetchSession loads the index page so the server issues a csrftoken
// cookie into the client's jar.
func (c *Client) FetchSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return &FetchError{Op: "fetch session", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: "fetch session", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: "fetch session", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}

// List fetches every transaction in server order.
func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	var txs []core.Transaction
	if err := c.getJSON(ctx, "/api/expenses/", "list transactions", &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Summary fetches the server-computed totals.
func (c *Client) Summary(ctx context.Context) (core.Summary, error) {
	var summary core.Summary
	if err := c.getJSON(ctx, "/api/expenses/summary/", "fetch summary", &summary); err != nil {
		return core.Summary{}, err
	}
	return summary, nil
}

// Create submits a draft. A 400 response becomes a ValidationError carrying
// the server's field messages verbatim; an absent CSRF token fails with
// MissingCredentialError before the request is sent.
func (c *Client) Create(ctx context.Context, draft core.Draft) (core.Transaction, error) {
	token, ok := c.csrf.CSRFToken()
	if !ok {
		return core.Transaction{}, &MissingCredentialError{}
	}

	body, err := json.Marshal(draft)
	if err != nil {
		return core.Transaction{}, &FetchError{Op: "create transaction", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/expenses/", bytes.NewReader(body))
	if err != nil {
		return core.Transaction{}, &FetchError{Op: "create transaction", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Transaction{}, &FetchError{Op: "create transaction", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode/100 == 2:
		var created core.Transaction
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return core.Transaction{}, &FetchError{Op: "create transaction", Err: err}
		}
		c.logger.InfoContext(ctx, "Transaction created",
			log.FieldTransactionID, created.ID, log.FieldTitle, created.Title)
		return created, nil
	case resp.StatusCode == http.StatusBadRequest:
		var fields map[string][]string
		if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
			return core.Transaction{}, &FetchError{Op: "create transaction", Err: err}
		}
		return core.Transaction{}, &ValidationError{Fields: fields}
	default:
		return core.Transaction{}, &FetchError{
			Op:  "create transaction",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// Remove deletes a transaction after the confirm callback approves it. A
// declined confirmation is a silent no-op. Only 204 No Content counts as
// success; there are no retries.
func (c *Client) Remove(ctx context.Context, id int64, confirm func() bool) error {
	if confirm != nil && !confirm() {
		c.logger.DebugContext(ctx, "Removal declined", log.FieldTransactionID, id)
		return nil
	}

	token, ok := c.csrf.CSRFToken()
	if !ok {
		return &MissingCredentialError{}
	}

	target := c.baseURL + "/api/expenses/" + strconv.FormatInt(id, 10) + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return &DeleteError{ID: id, Err: err}
	}
	req.Header.Set(csrfHeaderName, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeleteError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return &DeleteError{ID: id, StatusCode: resp.StatusCode}
	}
	c.logger.InfoContext(ctx, "Transaction removed", log.FieldTransactionID, id)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	return nil
}
