package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nettracker/internal/core"
	"nettracker/internal/log"
)

const (
	KeyTransactions = "transactions"
	KeySettings     = "settings"

	// keySettlementCleanup marks the one-time removal of settlement records
	// and re-keying of legacy manual ids as done.
	keySettlementCleanup = "migrations/settlement_cleanup_v1"
)

// Store loads and saves the record set and settings. Loading never fails:
// absent or malformed state falls back to empty records and default
// settings, and the problem is logged.
type Store struct {
	kv     KV
	logger *log.Logger
}

func NewStore(kv KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	return &Store{kv: kv, logger: logger.WithComponent(log.ComponentStorage)}
}

// LoadTransactions returns the persisted record set. The settlement cleanup
// runs the first time this is called against a store.
func (s *Store) LoadTransactions(ctx context.Context) []core.Transaction {
	records := s.loadTransactions(ctx)
	return s.migrate(ctx, records)
}

func (s *Store) loadTransactions(ctx context.Context) []core.Transaction {
	raw, ok, err := s.kv.Get(ctx, KeyTransactions)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read transactions, starting empty",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		return []core.Transaction{}
	}
	if !ok {
		return []core.Transaction{}
	}

	var records []core.Transaction
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.WarnContext(ctx, "Discarding malformed transactions",
			log.FieldError, fmt.Errorf("%w: %v", core.ErrParse, err), log.FieldErrorType, log.ErrorTypeParse)
		return []core.Transaction{}
	}
	if records == nil {
		records = []core.Transaction{}
	}
	return records
}

// migrate drops settlement records and moves legacy manual ids into the
// manual id space, once per store.
func (s *Store) migrate(ctx context.Context, records []core.Transaction) []core.Transaction {
	_, done, err := s.kv.Get(ctx, keySettlementCleanup)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read migration marker", log.FieldError, err)
		return records
	}
	if done {
		return records
	}

	cleaned := make([]core.Transaction, 0, len(records))
	var dropped, rekeyed int
	for _, r := range records {
		if r.IsSettlement() {
			dropped++
			continue
		}
		if r.Origin == core.OriginManual && !r.ID.IsManual() {
			r.ID = core.NewManualID()
			rekeyed++
		}
		cleaned = append(cleaned, r)
	}

	if dropped > 0 || rekeyed > 0 {
		if err := s.SaveTransactions(ctx, cleaned); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist migrated transactions", log.FieldError, err)
			return cleaned
		}
	}
	if err := s.kv.Set(ctx, keySettlementCleanup, "done"); err != nil {
		s.logger.WarnContext(ctx, "Failed to record migration marker", log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Migrated stored transactions",
		log.FieldOperation, log.OpMigrate,
		"settlements_dropped", dropped,
		"ids_rekeyed", rekeyed)
	return cleaned
}

// SaveTransactions overwrites the stored record set with records.
func (s *Store) SaveTransactions(ctx context.Context, records []core.Transaction) error {
	if records == nil {
		records = []core.Transaction{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}
	if err := s.kv.Set(ctx, KeyTransactions, string(data)); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	return nil
}

// LoadSettings returns the stored settings, or the defaults.
func (s *Store) LoadSettings(ctx context.Context) core.Settings {
	raw, ok, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read settings, using defaults",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		return core.DefaultSettings()
	}
	if !ok {
		return core.DefaultSettings()
	}

	settings := core.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.WarnContext(ctx, "Discarding malformed settings",
			log.FieldError, fmt.Errorf("%w: %v", core.ErrParse, err), log.FieldErrorType, log.ErrorTypeParse)
		return core.DefaultSettings()
	}
	return settings
}

func (s *Store) SaveSettings(ctx context.Context, settings core.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.kv.Set(ctx, KeySettings, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Reset removes all persisted state, including the migration marker.
func (s *Store) Reset(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyTransactions, KeySettings, keySettlementCleanup} {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping checks the backend when it supports it.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.kv.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
