// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	applog "moneymanager/internal/log"
	"moneymanager/internal/metrics"
	"moneymanager/internal/middleware/ratelimit"
	"moneymanager/internal/middleware/security"
	"moneymanager/internal/services"
	"moneymanager/internal/sheets"
)

const (
	maxBodyBytes = 1 << 20
	readyTimeout = 2 * time.Second
)

// Deps are the collaborators the API serves from.
type Deps struct {
	Ledger       *services.LedgerService
	Transactions *services.TransactionService
	Health       sheets.HealthChecker
	Metrics      *metrics.Metrics
	Logger       *applog.Logger
	// UserID owns every row the API reads and writes.
	UserID string
}

// Options tune the limiters.
type Options struct {
	MutationsPerMinute int
	PINMaxFailures     int
	PINLockout         time.Duration
	TrustedProxies     []string
}

func DefaultOptions() Options {
	return Options{
		MutationsPerMinute: 60,
		PINMaxFailures:     5,
		PINLockout:         15 * time.Minute,
	}
}

type Server struct {
	http.Server

	ledger  *services.LedgerService
	txs     *services.TransactionService
	health  sheets.HealthChecker
	metrics *metrics.Metrics
	userID  string
	now     func() time.Time

	detector *security.Detector
	limiter  *ratelimit.Limiter
	lockout  *ratelimit.Lockout

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		ledger:   deps.Ledger,
		txs:      deps.Transactions,
		health:   deps.Health,
		metrics:  m,
		userID:   deps.UserID,
		now:      time.Now,
		detector: detector,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.MutationsPerMinute}),
		lockout:  ratelimit.NewLockout(opts.PINMaxFailures, opts.PINLockout),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Middleware(logger, s.detector.ExtractClientIP, s.metrics))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware(s.metrics))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/transactions", s.handleListTransactions)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/balances", s.handleBalances)
		r.Get("/stats", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))
			r.Post("/deposits", s.handleDeposit)
			r.Post("/withdrawals", s.handleWithdraw)
			r.Post("/reloads", s.handleReload)
			r.Post("/repairs", s.handleRepair)
			r.Post("/loans", s.handleLoan)
			r.Patch("/transactions/{id}", s.handleUpdate)
			r.Post("/transactions/{id}/settle", s.handleSettle)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	s.metrics.IncrRateLimited("mutations")
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Shutdown gracefully shuts down the server and its limiter
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings the store behind the ledger.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
