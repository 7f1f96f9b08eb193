package server

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ebisaa944/ExpenseTracker/internal/cache"
	"github.com/ebisaa944/ExpenseTracker/internal/config"
	"github.com/ebisaa944/ExpenseTracker/internal/core"
	"github.com/ebisaa944/ExpenseTracker/internal/events"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
	"github.com/ebisaa944/ExpenseTracker/internal/view"
	appweb "github.com/ebisaa944/ExpenseTracker/web"
)

// listCacheTTL bounds staleness for read endpoints. Mutations purge the
// cache immediately, so the TTL only matters for out-of-band DB writes.
const listCacheTTL = 5 * time.Second

// TransactionStore is the persistence surface the server needs.
type TransactionStore interface {
	Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	List(ctx context.Context) ([]core.Transaction, error)
	Delete(ctx context.Context, id int64) error
}

// EventPublisher emits a message after each successful mutation. Publishing
// is best effort: a broker outage never fails the HTTP request.
type EventPublisher interface {
	Publish(ctx context.Context, ev *events.TransactionEvent) error
}

// Server serves the API, the UI, and the operational endpoints.
type Server struct {
	http.Server

	store     TransactionStore
	publisher EventPublisher
	templates *template.Template
	renderer  *view.Renderer
	limiter   *rateLimiter
	listCache *cache.TTLCache[[]core.Transaction]
	metrics   *metrics
	logger    *log.Logger

	shutdownOnce sync.Once
}

// New configures routes, templates, and middleware, returning a
// ready-to-run server.
func New(cfg *config.Config, store TransactionStore, publisher EventPublisher, logger *log.Logger) (*Server, error) {
	templates, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()

	s := &Server{
		Server: http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		store:     store,
		publisher: publisher,
		templates: templates,
		renderer:  renderer,
		limiter:   newRateLimiter(cfg.RateLimitPerMinute),
		listCache: cache.NewTTLCache[[]core.Transaction](listCacheTTL),
		metrics:   newMetrics("tracker"),
		logger:    logger.WithComponent(log.ComponentHTTP),
	}

	router.Use(log.Middleware(s.logger))
	router.Use(s.observe)
	router.Use(securityHeaders)
	router.Use(s.protectMutations)

	api := router.PathPrefix("/api/expenses").Subrouter()
	api.HandleFunc("/", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/summary/", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}/", s.handleDeleteTransaction).Methods(http.MethodDelete)

	router.HandleFunc("/ui/transactions", s.handleTransactionsPartial).Methods(http.MethodGet)
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		router.PathPrefix("/static/").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	return s, nil
}

// Shutdown stops the server and its background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// observe tags each request with an ID, records metrics, and logs start
// and completion.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		clientIP := extractClientIP(r)

		logger := log.FromContext(r.Context()).With(
			log.FieldRequestID, requestID,
			log.FieldClientIP, clientIP,
		)
		ctx := log.IntoContext(r.Context(), logger)
		r = r.WithContext(ctx)

		logger.InfoContext(ctx, "Request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set("X-Request-ID", requestID)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		s.metrics.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		s.metrics.requestDuration.WithLabelValues(route).Observe(duration.Seconds())

		logger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds())
	})
}

// protectMutations applies rate limiting and the CSRF double-submit check
// to state-changing methods. CSRF failures are rejected before any handler
// work happens.
func (s *Server) protectMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		clientIP := extractClientIP(r)
		if !s.limiter.allow(clientIP) {
			s.metrics.rateLimitedTotal.Inc()
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "Request was throttled.")
			return
		}

		if !checkCSRF(r) {
			s.metrics.csrfRejectedTotal.Inc()
			log.FromContext(r.Context()).WarnContext(r.Context(), "CSRF check failed",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			writeJSONError(w, http.StatusForbidden, "CSRF Failed: CSRF token missing or incorrect.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.List(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
