package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nettracker/internal/core"
	"nettracker/internal/log"
	"nettracker/internal/middleware/trace"
	"nettracker/internal/services"
)

// SourceHTTP tags syncs triggered through the API.
const SourceHTTP = "http"

const readyTimeout = 5 * time.Second

type summaryResponse struct {
	core.BudgetView
	Syncing bool `json:"syncing"`
}

type transactionsResponse struct {
	Transactions []core.Transaction `json:"transactions"`
}

// settingsResponse never carries the API key itself.
type settingsResponse struct {
	BudgetLimit float64 `json:"budgetLimit"`
	Configured  bool    `json:"configured"`
}

func redact(s core.Settings) settingsResponse {
	return settingsResponse{BudgetLimit: s.BudgetLimit, Configured: s.HasCredential()}
}

// fail maps err to its API error, logs it at a level matching the status,
// and writes the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := FromError(err)
	s.respondError(w, r, op, err, resp)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error, resp *JSONResponseBuilder) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	fields := log.NewFields().
		WithError(err).
		WithErrorType(errorType(err)).
		WithOperation(op).
		With(log.FieldStatusCode, resp.StatusCode()).
		ToSlice()
	if resp.StatusCode() >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields...)
	}
	resp.Write(w)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrAuth):
		return log.ErrorTypeAuth
	case errors.Is(err, core.ErrNetwork):
		return log.ErrorTypeNetwork
	case errors.Is(err, services.ErrSyncInProgress):
		return log.ErrorTypeConflict
	case errors.Is(err, services.ErrExportDisabled):
		return log.ErrorTypeConfiguration
	default:
		return log.ErrorTypeInternal
	}
}

// parseBody reads the request body, writing a 400 when it is unreadable.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request, op string) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		msg := "malformed request body"
		if errors.Is(err, ErrBodyTooLarge) {
			msg = ErrBodyTooLarge.Error()
		}
		s.respondError(w, r, op, err, BadRequestError(msg))
		return nil, false
	}
	return p, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store and reports whether a sync is running.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.ready != nil {
		if err := s.ready.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = CodeNotReady
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_configured"
	}
	checks["syncing"] = s.budget.Syncing()
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	syncing := 0
	if s.budget.Syncing() {
		syncing = 1
	}
	view := s.budget.Summary()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", s.traceMiddleware.TotalRequests())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.securityDetector.SuspiciousRequests())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP transactions_stored Records held in the store\n")
	fmt.Fprintf(w, "# TYPE transactions_stored gauge\n")
	fmt.Fprintf(w, "transactions_stored %d\n\n", len(s.budget.Transactions()))

	fmt.Fprintf(w, "# HELP budget_spent Amount spent in the current period\n")
	fmt.Fprintf(w, "# TYPE budget_spent gauge\n")
	fmt.Fprintf(w, "budget_spent %.2f\n\n", view.Spent)

	fmt.Fprintf(w, "# HELP sync_in_progress Whether a sync is running\n")
	fmt.Fprintf(w, "# TYPE sync_in_progress gauge\n")
	fmt.Fprintf(w, "sync_in_progress %d\n\n", syncing)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(summaryResponse{
		BudgetView: s.budget.Summary(),
		Syncing:    s.budget.Syncing(),
	}).Write(w)
}

// handleListTransactions returns the current period's expenses, or the whole
// store with ?all=true.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list := s.budget.MonthlyTransactions()
	if queryBool(r, "all") {
		list = s.budget.Transactions()
	}
	NewJSONResponse().Body(transactionsResponse{Transactions: orEmpty(list)}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r, log.OpCreate)
	if !ok {
		return
	}

	tx, err := s.budget.AddExpense(r.Context(), p.Get("amount"), p.Get("description"))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+string(tx.ID)).
		Body(tx).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := core.TransactionID(r.PathValue("id"))
	if err := s.budget.DeleteTransaction(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSync runs a sync inline and answers with its result. The HTTP
// request id doubles as the sync request id.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.budget.Sync(r.Context(), services.SyncRequest{
		ID:     trace.GetRequestID(r.Context()),
		Source: SourceHTTP,
	})
	if err != nil {
		s.fail(w, r, log.OpSync, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(redact(s.budget.Settings())).Write(w)
}

// handleUpdateSettings merges the fields present in the body into the
// current settings. An empty apiKey clears the credential.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	const op = "update_settings"
	p, ok := s.parseBody(w, r, op)
	if !ok {
		return
	}

	next := s.budget.Settings()
	if p.Has("budgetLimit") {
		limit, err := parseBudgetLimit(p.Get("budgetLimit"))
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		next.BudgetLimit = limit
	}
	if p.Has("apiKey") {
		next.APIKey = p.Get("apiKey")
	}

	saved, err := s.budget.UpdateSettings(r.Context(), next)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Body(redact(saved)).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ref, err := s.budget.Export(r.Context())
	if err != nil {
		resp := FromError(err)
		if resp.StatusCode() == http.StatusInternalServerError {
			resp = ErrorResponse(http.StatusBadGateway, CodeExportFailed, "export failed")
		}
		s.respondError(w, r, log.OpExport, err, resp)
		return
	}
	NewJSONResponse().Body(map[string]string{"ref": ref}).Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.Reset(r.Context()); err != nil {
		s.fail(w, r, log.OpReset, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
