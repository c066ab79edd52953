package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"nettracker/internal/amqp"
	"nettracker/internal/core"
	"nettracker/internal/log"
	"nettracker/internal/sheets"
	"nettracker/internal/storage"
)

var (
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrMissingCredential = fmt.Errorf("%w: no API key configured", core.ErrAuth)
	ErrExportDisabled    = errors.New("export is not configured")
)

// RemoteSource is the remote expense service as seen by the controller.
type RemoteSource interface {
	CurrentUserID(ctx context.Context, credential string) (int64, error)
	Expenses(ctx context.Context, credential string, since time.Time) ([]core.RemoteExpense, error)
}

// EventPublisher announces completed syncs.
type EventPublisher interface {
	PublishSyncCompleted(ctx context.Context, msg *amqp.SyncCompletedMessage) error
}

// SyncRequest identifies what triggered a sync. An empty ID gets a fresh one.
type SyncRequest struct {
	ID     string
	Source string
}

// SyncResult reports what a sync did.
type SyncResult struct {
	RequestID string    `json:"requestId"`
	Period    string    `json:"period"`
	Fetched   int       `json:"fetched"`
	Kept      int       `json:"kept"`
	Total     int       `json:"total"`
	Spent     float64   `json:"spent"`
	At        time.Time `json:"completedAt"`
}

// BudgetService owns the record set and the settings. Every mutation holds
// mu and ends by persisting the full snapshot.
type BudgetService struct {
	store    *storage.Store
	remote   RemoteSource
	events   EventPublisher
	exporter sheets.MonthlyExporter
	logger   *log.Logger
	now      func() time.Time
	loc      *time.Location

	mu       sync.Mutex
	records  []core.Transaction
	settings core.Settings

	syncing atomic.Bool
}

type Option func(*BudgetService)

// WithEventPublisher publishes a SyncCompletedMessage after each sync.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *BudgetService) { s.events = p }
}

func WithExporter(e sheets.MonthlyExporter) Option {
	return func(s *BudgetService) { s.exporter = e }
}

func WithClock(now func() time.Time) Option {
	return func(s *BudgetService) { s.now = now }
}

// WithLocation sets the time zone that decides calendar months and days.
func WithLocation(loc *time.Location) Option {
	return func(s *BudgetService) { s.loc = loc }
}

func WithLogger(l *log.Logger) Option {
	return func(s *BudgetService) { s.logger = l }
}

func NewBudgetService(store *storage.Store, remote RemoteSource, opts ...Option) *BudgetService {
	s := &BudgetService{
		store:    store,
		remote:   remote,
		now:      time.Now,
		loc:      time.Local,
		records:  []core.Transaction{},
		settings: core.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentBudget)
	}
	s.logger = s.logger.WithComponent(log.ComponentBudget)
	return s
}

// Init loads the persisted state. It never fails; the store falls back to
// empty records and default settings.
func (s *BudgetService) Init(ctx context.Context) {
	records := s.store.LoadTransactions(ctx)
	settings := s.store.LoadSettings(ctx)

	s.mu.Lock()
	s.records = records
	s.settings = settings
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Budget state loaded",
		log.FieldTotal, len(records),
		"has_api_key", settings.HasCredential())
}

func (s *BudgetService) clock() time.Time {
	return s.now().In(s.loc)
}

// Period returns the current calendar month.
func (s *BudgetService) Period() core.Period {
	return core.PeriodOf(s.clock())
}

// Transactions returns a copy of the whole record set, settlements included.
func (s *BudgetService) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// MonthlyTransactions returns the current period's non-settlement records.
func (s *BudgetService) MonthlyTransactions() []core.Transaction {
	p := s.Period()
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.MonthlyTransactions(s.records, p)
}

func (s *BudgetService) Settings() core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Summary computes the budget view for now.
func (s *BudgetService) Summary() core.BudgetView {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.records, s.settings, now)
}

// Syncing reports whether a sync is in flight.
func (s *BudgetService) Syncing() bool {
	return s.syncing.Load()
}

// AddExpense validates the input and puts a new manual record at the front
// of the store.
func (s *BudgetService) AddExpense(ctx context.Context, amount, description string) (core.Transaction, error) {
	t, err := core.NewManualTransaction(amount, description, s.clock())
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]core.Transaction{t}, s.records...)
	s.persistTransactions(ctx)

	s.logger.InfoContext(ctx, "Expense added",
		log.FieldTxID, t.ID,
		log.FieldAmount, t.Amount,
		log.FieldOperation, log.OpCreate)
	return t, nil
}

// DeleteTransaction removes the record with id, whatever its origin.
func (s *BudgetService) DeleteTransaction(ctx context.Context, id core.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.records, func(t core.Transaction) bool { return t.ID == id })
	if idx < 0 {
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	removed := s.records[idx]
	s.records = slices.Delete(slices.Clone(s.records), idx, idx+1)
	s.persistTransactions(ctx)

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTxID, id,
		log.FieldOrigin, removed.Origin,
		log.FieldOperation, log.OpDelete)
	return nil
}

// UpdateSettings validates and replaces the settings. Changing the API key
// while a sync is in flight fails with ErrSyncInProgress.
func (s *BudgetService) UpdateSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	if err := settings.Validate(); err != nil {
		return core.Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.APIKey != s.settings.APIKey && s.syncing.Load() {
		return core.Settings{}, fmt.Errorf("update settings: %w", ErrSyncInProgress)
	}
	s.settings = settings
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist settings", log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase)
	}
	s.logger.InfoContext(ctx, "Settings updated", "budget_limit", settings.BudgetLimit)
	return settings, nil
}

// Sync fetches the current period from the remote service and reconciles
// it into the store. Only one sync runs at a time; a concurrent call fails
// with ErrSyncInProgress. A failed fetch leaves the state untouched.
func (s *BudgetService) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := s.logger.With(log.FieldRequestID, req.ID, "source", req.Source)

	settings := s.Settings()
	if !settings.HasCredential() {
		logger.WarnContext(ctx, "Sync skipped, no API key configured")
		return SyncResult{}, ErrMissingCredential
	}

	p := s.Period()
	start := time.Now()

	credential := settings.APIKey
	userID, err := s.remote.CurrentUserID(ctx, credential)
	if err != nil {
		logger.ErrorContext(ctx, "Sync failed fetching identity", log.FieldError, err,
			log.FieldErrorType, errorType(err))
		return SyncResult{}, fmt.Errorf("sync: %w", err)
	}
	expenses, err := s.remote.Expenses(ctx, credential, p.Start())
	if err != nil {
		logger.ErrorContext(ctx, "Sync failed fetching expenses", log.FieldError, err,
			log.FieldErrorType, errorType(err))
		return SyncResult{}, fmt.Errorf("sync: %w", err)
	}

	fresh := core.FilterRemote(expenses, userID)

	s.mu.Lock()
	s.records = core.Reconcile(s.records, fresh, p)
	total := len(s.records)
	spent := core.PeriodTotal(s.records, p)
	s.persistTransactions(ctx)
	s.mu.Unlock()

	result := SyncResult{
		RequestID: req.ID,
		Period:    p.String(),
		Fetched:   len(expenses),
		Kept:      len(fresh),
		Total:     total,
		Spent:     spent,
		At:        s.clock(),
	}

	logger.InfoContext(ctx, "Sync completed", log.NewFields().
		WithOperation(log.OpSync).
		WithPeriod(result.Period).
		WithSync(result.Fetched, result.Kept, result.Total).
		ToSlice()...)
	logger.DebugContext(ctx, "Sync timing", log.FieldDuration, time.Since(start).Milliseconds())

	s.publishCompleted(ctx, result)
	return result, nil
}

func (s *BudgetService) publishCompleted(ctx context.Context, r SyncResult) {
	if s.events == nil {
		return
	}
	msg := &amqp.SyncCompletedMessage{
		RequestID:   r.RequestID,
		Period:      r.Period,
		Fetched:     r.Fetched,
		Kept:        r.Kept,
		Total:       r.Total,
		Spent:       r.Spent,
		CompletedAt: r.At,
	}
	if err := s.events.PublishSyncCompleted(ctx, msg); err != nil {
		// the sync itself succeeded
		s.logger.ErrorContext(ctx, "Failed to publish sync completed event",
			log.FieldError, err, log.FieldRequestID, r.RequestID)
	}
}

// Export writes the current period's statement through the configured
// exporter.
func (s *BudgetService) Export(ctx context.Context) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}

	now := s.clock()
	s.mu.Lock()
	view := core.Summarize(s.records, s.settings, now)
	monthly := core.MonthlyTransactions(s.records, view.Period)
	s.mu.Unlock()

	ref, err := s.exporter.ExportMonth(ctx, sheets.Statement{View: view, Transactions: monthly})
	if err != nil {
		s.logger.ErrorContext(ctx, "Export failed", log.FieldError, err, log.FieldPeriod, view.Month)
		return "", fmt.Errorf("export %s: %w", view.Month, err)
	}

	s.logger.InfoContext(ctx, "Statement exported",
		log.FieldPeriod, view.Month,
		log.FieldSheetsRef, ref,
		log.FieldOperation, log.OpExport)
	return ref, nil
}

// Reset clears every persisted key and returns to the initial state. It
// fails with ErrSyncInProgress while a sync is in flight, since that sync
// would write its fetched records back into the cleared store.
func (s *BudgetService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncing.Load() {
		return fmt.Errorf("reset: %w", ErrSyncInProgress)
	}

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.records = []core.Transaction{}
	s.settings = core.DefaultSettings()
	s.logger.WarnContext(ctx, "App data reset", log.FieldOperation, log.OpReset)
	return nil
}

// persistTransactions saves the snapshot. Callers hold mu. A failed save is
// logged and the in-memory change stands.
func (s *BudgetService) persistTransactions(ctx context.Context) {
	if err := s.store.SaveTransactions(ctx, s.records); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist transactions",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldTotal, len(s.records))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrAuth):
		return log.ErrorTypeAuth
	case errors.Is(err, core.ErrNetwork):
		return log.ErrorTypeNetwork
	default:
		return log.ErrorTypeInternal
	}
}
