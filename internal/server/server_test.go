package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebisaa944/ExpenseTracker/internal/config"
	"github.com/ebisaa944/ExpenseTracker/internal/core"
	"github.com/ebisaa944/ExpenseTracker/internal/events"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
	"github.com/ebisaa944/ExpenseTracker/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	txs     []core.Transaction
	listErr error
}

func (f *fakeStore) Insert(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	tx.ID = f.nextID
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeStore) List(_ context.Context) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Transaction(nil), f.txs...), nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tx := range f.txs {
		if tx.ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.TransactionEvent
}

func (f *fakePublisher) Publish(_ context.Context, ev *events.TransactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) published() []*events.TransactionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*events.TransactionEvent(nil), f.events...)
}

func newTestServer(t *testing.T, store *fakeStore, publisher *fakePublisher) *Server {
	t.Helper()
	cfg := &config.Config{Port: "0", RateLimitPerMinute: 1000}
	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	var pub EventPublisher
	if publisher != nil {
		pub = publisher
	}
	srv, err := New(cfg, store, pub, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.limiter.stop() })
	return srv
}

// withCSRF attaches a matching cookie/header pair as the browser would.
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: "testtoken"})
	req.Header.Set("X-CSRFToken", "testtoken")
	return req
}

func postTransaction(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/expenses/", strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexSetsCSRFCookie(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "transaction-form")

	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == "csrftoken" && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found, "index must set the csrftoken cookie")
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestListTransactionsEmpty(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestListTransactionsSetsCSRFCookie(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var issued string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "csrftoken" && c.Value != "" {
			issued = c.Value
		}
	}
	require.NotEmpty(t, issued, "list endpoint must set the csrftoken cookie")

	// An API consumer that already holds the cookie keeps its token.
	req := httptest.NewRequest(http.MethodGet, "/api/expenses/", nil)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: issued})
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	for _, c := range rr.Result().Cookies() {
		assert.NotEqual(t, "csrftoken", c.Name, "existing token must not be re-issued")
	}
}

func TestCreateTransaction(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	srv := newTestServer(t, store, publisher)

	rr := postTransaction(t, srv, `{"title":"Paycheck","amount":"1000.50","type":"INCOME","category":"Salary","date":"2026-08-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created core.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Paycheck", created.Title)
	assert.Equal(t, "1000.50", created.Amount.String())

	evs := publisher.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ActionCreated, evs[0].Action)
	assert.Equal(t, int64(1), evs[0].ID)
}

func TestCreateTransactionNumericAmount(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := postTransaction(t, srv, `{"title":"Rent","amount":250,"type":"EXPENSE","category":"Rent","date":"2026-08-05"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created core.Transaction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "250.00", created.Amount.String())
}

func TestCreateTransactionCollectsAllFieldErrors(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := postTransaction(t, srv, `{"title":"","amount":"abc","type":"BOGUS","category":"Salary","date":""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var fieldErrors map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fieldErrors))
	assert.Contains(t, fieldErrors, "title")
	assert.Contains(t, fieldErrors, "amount")
	assert.Contains(t, fieldErrors, "type")
	assert.Contains(t, fieldErrors, "date")
}

func TestCreateTransactionCategoryTypeMismatch(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := postTransaction(t, srv, `{"title":"Bus","amount":"2.50","type":"INCOME","category":"Transport","date":"2026-08-10"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var fieldErrors map[string][]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fieldErrors))
	assert.Contains(t, fieldErrors, "category")
}

func TestCreateTransactionNonPositiveAmount(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	for _, amount := range []string{`"0"`, `"-5.00"`, `0`} {
		rr := postTransaction(t, srv, `{"title":"x","amount":`+amount+`,"type":"EXPENSE","category":"Rent","date":"2026-08-10"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code, amount)

		var fieldErrors map[string][]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fieldErrors))
		assert.Contains(t, fieldErrors, "amount", amount)
	}
}

func TestCreateTransactionMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := postTransaction(t, srv, `{not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "detail")
}

func TestCSRFRejection(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)
	body := `{"title":"x","amount":"1.00","type":"EXPENSE","category":"Rent","date":"2026-08-10"}`

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/expenses/", strings.NewReader(body))
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: "tok"})
		srv.Handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "CSRF Failed")
	})

	t.Run("missing cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/expenses/", strings.NewReader(body))
		req.Header.Set("X-CSRFToken", "tok")
		srv.Handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("mismatched pair", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/expenses/", strings.NewReader(body))
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: "tok"})
		req.Header.Set("X-CSRFToken", "different")
		srv.Handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestDeleteTransaction(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	srv := newTestServer(t, store, publisher)

	rr := postTransaction(t, srv, `{"title":"Rent","amount":"250","type":"EXPENSE","category":"Rent","date":"2026-08-05"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, withCSRF(httptest.NewRequest(http.MethodDelete, "/api/expenses/1/", nil)))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	// Deleting again reports not found.
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, withCSRF(httptest.NewRequest(http.MethodDelete, "/api/expenses/1/", nil)))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Not found.")

	evs := publisher.published()
	require.Len(t, evs, 2)
	assert.Equal(t, events.ActionDeleted, evs[1].Action)
}

func TestSummaryEndpoint(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store, nil)

	for _, body := range []string{
		`{"title":"Paycheck","amount":"1000.50","type":"INCOME","category":"Salary","date":"2026-08-01"}`,
		`{"title":"Rent","amount":"250","type":"EXPENSE","category":"Rent","date":"2026-08-05"}`,
	} {
		rr := postTransaction(t, srv, body)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/summary/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var summary struct {
		TotalIncome  string `json:"total_income"`
		TotalExpense string `json:"total_expense"`
		NetBalance   string `json:"net_balance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, "1000.5", summary.TotalIncome)
	assert.Equal(t, "250", summary.TotalExpense)
	assert.Equal(t, "750.5", summary.NetBalance)
}

func TestTransactionsPartial(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/transactions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No transactions yet")

	created := postTransaction(t, srv, `{"title":"Rent","amount":"250","type":"EXPENSE","category":"Rent","date":"2026-08-05"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/transactions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-id="1"`)
}

func TestRateLimitOnMutations(t *testing.T) {
	store := &fakeStore{}
	cfg := &config.Config{Port: "0", RateLimitPerMinute: 2}
	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	srv, err := New(cfg, store, nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.limiter.stop() })

	body := `{"title":"x","amount":"1.00","type":"EXPENSE","category":"Rent","date":"2026-08-10"}`
	for i := 0; i < 2; i++ {
		rr := postTransaction(t, srv, body)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := postTransaction(t, srv, body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Reads stay unthrottled.
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	rr := postTransaction(t, srv, `{"title":"Rent","amount":"250","type":"EXPENSE","category":"Rent","date":"2026-08-05"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tracker_transactions_created_total 1")
}
