package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nettracker/internal/core"
	"nettracker/internal/log"
	"nettracker/internal/middleware/ratelimit"
	"nettracker/internal/middleware/security"
	"nettracker/internal/middleware/trace"
	"nettracker/internal/services"
)

// Budget is the controller the handlers drive.
type Budget interface {
	Summary() core.BudgetView
	Transactions() []core.Transaction
	MonthlyTransactions() []core.Transaction
	Settings() core.Settings
	Syncing() bool
	AddExpense(ctx context.Context, amount, description string) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id core.TransactionID) error
	UpdateSettings(ctx context.Context, settings core.Settings) (core.Settings, error)
	Sync(ctx context.Context, req services.SyncRequest) (services.SyncResult, error)
	Export(ctx context.Context) (string, error)
	Reset(ctx context.Context) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the JSON API.
type Server struct {
	http.Server
	budget  Budget
	ready   Pinger
	logger  *log.Logger
	started time.Time

	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter

	shutdownOnce sync.Once
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimit replaces the default limiter configuration.
func WithRateLimit(cfg ratelimit.Config) ServerOption {
	return func(s *Server) {
		s.rateLimiter.Stop()
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// WithServerLogger sets the logger used by the server and its middleware.
func WithServerLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.logger = l.WithComponent(log.ComponentHTTP) }
}

// NewServer wires the routes and middleware chain, returning a ready-to-run
// server. ready may be nil, in which case /readyz only reports the process.
func NewServer(addr string, budget Budget, ready Pinger, opts ...ServerOption) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Sync waits on the remote service.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		budget:      budget,
		ready:       ready,
		logger:      log.Default(log.ComponentHTTP),
		started:     time.Now(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.securityDetector = security.NewDetector(s.logger)
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/reset", s.handleReset)

	requestID := func(r *http.Request) string { return trace.GetRequestID(r.Context()) }
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldRequestID, requestID(r),
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}

	// Outermost first.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, onLimit)(handler)
	handler = s.securityDetector.Middleware(requestID)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(s.logger, trace.GetRequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

// Shutdown stops the limiter's cleanup loop and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
