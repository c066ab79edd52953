package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nettracker/internal/amqp"
	"nettracker/internal/core"
	"nettracker/internal/sheets/memory"
	"nettracker/internal/storage"
)

var rome = time.FixedZone("CET", 3600)

func fixedNow() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, rome) }

type fakeRemote struct {
	mu       sync.Mutex
	userID   int64
	expenses []core.RemoteExpense
	userErr  error
	listErr  error
	calls    int
	since    time.Time
	// when set, CurrentUserID signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRemote) CurrentUserID(ctx context.Context, credential string) (int64, error) {
	f.mu.Lock()
	f.calls++
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}
	return f.userID, f.userErr
}

func (f *fakeRemote) Expenses(ctx context.Context, credential string, since time.Time) ([]core.RemoteExpense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return f.expenses, f.listErr
}

type recordingPublisher struct {
	msgs []*amqp.SyncCompletedMessage
	err  error
}

func (p *recordingPublisher) PublishSyncCompleted(_ context.Context, msg *amqp.SyncCompletedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type brokenKV struct {
	*storage.MemoryKV
}

func (brokenKV) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func newService(t *testing.T, kv storage.KV, remote RemoteSource, opts ...Option) *BudgetService {
	t.Helper()
	opts = append([]Option{WithClock(fixedNow), WithLocation(rome)}, opts...)
	s := NewBudgetService(storage.NewStore(kv, nil), remote, opts...)
	s.Init(context.Background())
	return s
}

func withKey(t *testing.T, s *BudgetService) {
	t.Helper()
	if _, err := s.UpdateSettings(context.Background(), core.Settings{BudgetLimit: 1000, APIKey: "key"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
}

func TestAddExpense(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newService(t, kv, &fakeRemote{})

	first, err := s.AddExpense(ctx, "10,50", "Coffee")
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	second, err := s.AddExpense(ctx, "4", "Bus")
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	if first.Amount != 10.5 || first.Origin != core.OriginManual || !first.ID.IsManual() {
		t.Errorf("unexpected record %+v", first)
	}
	if !first.Date.Equal(fixedNow()) {
		t.Errorf("date = %v, want %v", first.Date, fixedNow())
	}

	got := s.Transactions()
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("new records should be prepended, got %+v", got)
	}

	reloaded := newService(t, kv, &fakeRemote{})
	if len(reloaded.Transactions()) != 2 {
		t.Error("records were not persisted")
	}
}

func TestAddExpenseValidation(t *testing.T) {
	s := newService(t, storage.NewMemoryKV(), &fakeRemote{})

	tests := []struct {
		name        string
		amount      string
		description string
		want        error
	}{
		{"empty amount", "", "Coffee", core.ErrEmptyAmount},
		{"empty description", "3", "  ", core.ErrEmptyDescription},
		{"not a number", "abc", "Coffee", core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddExpense(context.Background(), tt.amount, tt.description)
			if !errors.Is(err, tt.want) || !errors.Is(err, core.ErrValidation) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(s.Transactions()); n != 0 {
		t.Errorf("invalid input created %d records", n)
	}
}

func TestAddExpenseSurvivesSaveFailure(t *testing.T) {
	s := newService(t, brokenKV{storage.NewMemoryKV()}, &fakeRemote{})

	if _, err := s.AddExpense(context.Background(), "3", "Tea"); err != nil {
		t.Fatalf("save failure must not fail the mutation: %v", err)
	}
	if len(s.Transactions()) != 1 {
		t.Error("in-memory change should stand")
	}
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newService(t, kv, &fakeRemote{})

	tx, _ := s.AddExpense(ctx, "3", "Tea")
	s.AddExpense(ctx, "5", "Cake")

	if err := s.DeleteTransaction(ctx, "m-missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	remaining := newService(t, kv, &fakeRemote{}).Transactions()
	if len(remaining) != 1 || remaining[0].Description != "Cake" {
		t.Errorf("unexpected persisted records %+v", remaining)
	}
}

func TestUpdateSettingsRejectsNegativeBudget(t *testing.T) {
	s := newService(t, storage.NewMemoryKV(), &fakeRemote{})

	_, err := s.UpdateSettings(context.Background(), core.Settings{BudgetLimit: -1})
	if !errors.Is(err, core.ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
	if s.Settings().BudgetLimit != core.DefaultBudgetLimit {
		t.Error("settings should be unchanged")
	}
}

func share(user int64, owed string) []core.RemoteShare {
	return []core.RemoteShare{{UserID: 1, OwedShare: "0.00"}, {UserID: user, OwedShare: owed}}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	deleted := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	remote := &fakeRemote{
		userID: 7,
		expenses: []core.RemoteExpense{
			{ID: 10, Description: "Dinner", Date: time.Date(2025, 3, 12, 19, 0, 0, 0, time.UTC), Users: share(7, "20.00")},
			{ID: 11, Description: "Transfer", Date: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), Payment: true, Users: share(7, "50.00")},
			{ID: 12, Description: "Settle all balances", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Users: share(7, "5.00")},
			{ID: 13, Description: "Gift", Date: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), Users: share(7, "0.00")},
			{ID: 14, Description: "Old", Date: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), DeletedAt: &deleted, Users: share(7, "9.00")},
		},
	}
	pub := &recordingPublisher{}

	seed := storage.NewStore(kv, nil)
	seed.SaveTransactions(ctx, []core.Transaction{
		{ID: "5", Amount: 8, Description: "Stale", Date: time.Date(2025, 3, 2, 12, 0, 0, 0, rome), Origin: core.OriginSynced},
		{ID: "9", Amount: 30, Description: "February", Date: time.Date(2025, 2, 20, 12, 0, 0, 0, rome), Origin: core.OriginSynced},
	})

	s := newService(t, kv, remote, WithEventPublisher(pub))
	withKey(t, s)
	manual, _ := s.AddExpense(ctx, "12", "Lunch")

	res, err := s.Sync(ctx, SyncRequest{ID: "req-1", Source: "test"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Fetched != 5 || res.Kept != 1 || res.Total != 3 || res.Period != "2025-03" || res.Spent != 32 {
		t.Errorf("unexpected result %+v", res)
	}
	if want := time.Date(2025, 3, 1, 0, 0, 0, 0, rome); !remote.since.Equal(want) {
		t.Errorf("since = %v, want %v", remote.since, want)
	}

	got := s.Transactions()
	wantIDs := []core.TransactionID{manual.ID, "10", "9"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d records, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("record %d = %s, want %s", i, got[i].ID, id)
		}
	}

	if len(pub.msgs) != 1 || pub.msgs[0].RequestID != "req-1" || pub.msgs[0].Kept != 1 {
		t.Errorf("unexpected events %+v", pub.msgs)
	}

	// running it again changes nothing
	if _, err := s.Sync(ctx, SyncRequest{}); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	again := s.Transactions()
	if len(again) != len(got) {
		t.Errorf("sync is not idempotent: %d vs %d records", len(again), len(got))
	}

	persisted := newService(t, kv, remote).Transactions()
	if len(persisted) != 3 {
		t.Errorf("sync result not persisted, got %d records", len(persisted))
	}
}

func TestSyncWithoutCredential(t *testing.T) {
	remote := &fakeRemote{}
	s := newService(t, storage.NewMemoryKV(), remote)

	_, err := s.Sync(context.Background(), SyncRequest{})
	if !errors.Is(err, ErrMissingCredential) || !errors.Is(err, core.ErrAuth) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if remote.calls != 0 {
		t.Error("no fetch expected without a credential")
	}
	if s.Syncing() {
		t.Error("busy flag should be cleared")
	}
}

func TestSyncFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		remote *fakeRemote
		want   error
	}{
		{"identity rejected", &fakeRemote{userErr: core.ErrAuth}, core.ErrAuth},
		{"listing failed", &fakeRemote{userID: 7, listErr: core.ErrNetwork}, core.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			s := newService(t, storage.NewMemoryKV(), tt.remote, WithEventPublisher(pub))
			withKey(t, s)
			s.AddExpense(ctx, "3", "Tea")
			before := s.Transactions()

			if _, err := s.Sync(ctx, SyncRequest{}); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			after := s.Transactions()
			if len(after) != len(before) || after[0].ID != before[0].ID {
				t.Error("state changed after a failed sync")
			}
			if len(pub.msgs) != 0 {
				t.Error("no event expected for a failed sync")
			}
		})
	}
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	remote := &fakeRemote{userID: 7, entered: make(chan struct{}), release: make(chan struct{})}
	s := newService(t, storage.NewMemoryKV(), remote)
	withKey(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(context.Background(), SyncRequest{})
		done <- err
	}()

	<-remote.entered
	if !s.Syncing() {
		t.Error("expected busy flag while a sync is in flight")
	}
	if _, err := s.Sync(context.Background(), SyncRequest{}); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}

	close(remote.release)
	if err := <-done; err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if s.Syncing() {
		t.Error("busy flag should be cleared")
	}
}

func TestResetAndKeyChangeRejectedDuringSync(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{
		userID:   7,
		expenses: []core.RemoteExpense{
			{ID: 1, Description: "Dinner", Date: time.Date(2025, 3, 12, 19, 0, 0, 0, time.UTC), Users: share(7, "20.00")},
		},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	kv := storage.NewMemoryKV()
	s := newService(t, kv, remote)
	withKey(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(ctx, SyncRequest{})
		done <- err
	}()
	<-remote.entered

	if err := s.Reset(ctx); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("Reset during sync: expected ErrSyncInProgress, got %v", err)
	}
	if _, err := s.UpdateSettings(ctx, core.Settings{BudgetLimit: 1000}); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("clearing the key during sync: expected ErrSyncInProgress, got %v", err)
	}
	if _, err := s.UpdateSettings(ctx, core.Settings{BudgetLimit: 500, APIKey: "key"}); err != nil {
		t.Errorf("budget change during sync: %v", err)
	}

	close(remote.release)
	if err := <-done; err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset after sync: %v", err)
	}
	reloaded := newService(t, kv, remote)
	if n := len(reloaded.Transactions()); n != 0 {
		t.Errorf("persisted records after reset = %d, want 0", n)
	}
	if reloaded.Settings().HasCredential() {
		t.Error("credential should be cleared")
	}
}

func TestSyncEventFailureDoesNotFailSync(t *testing.T) {
	s := newService(t, storage.NewMemoryKV(), &fakeRemote{userID: 7},
		WithEventPublisher(&recordingPublisher{err: errors.New("broker down")}))
	withKey(t, s)

	if _, err := s.Sync(context.Background(), SyncRequest{}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := newService(t, storage.NewMemoryKV(), &fakeRemote{})
	withKey(t, s)
	s.AddExpense(ctx, "100", "Groceries")
	s.AddExpense(ctx, "50", "Settle up with Ann")

	v := s.Summary()
	if v.Month != "2025-03" || v.Spent != 100 || v.Remaining != 900 || v.SpentToday != 100 {
		t.Errorf("unexpected view %+v", v)
	}
	// 17 days left including today: 900/17 = 52.94
	if v.RemainingDays != 17 || v.DailySafe != 53 {
		t.Errorf("remaining days %d, daily safe %v", v.RemainingDays, v.DailySafe)
	}
	if len(s.MonthlyTransactions()) != 1 {
		t.Error("settlements must be hidden from the monthly list")
	}
	if len(s.Transactions()) != 2 {
		t.Error("settlements stay in the store")
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	s := newService(t, storage.NewMemoryKV(), &fakeRemote{})
	if _, err := s.Export(ctx); !errors.Is(err, ErrExportDisabled) {
		t.Fatalf("expected ErrExportDisabled, got %v", err)
	}

	exporter := memory.New()
	s = newService(t, storage.NewMemoryKV(), &fakeRemote{}, WithExporter(exporter))
	s.AddExpense(ctx, "7", "Pizza")
	s.AddExpense(ctx, "7", "Settle up")

	ref, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if ref != "mem:2025-03:1" {
		t.Errorf("ref = %q", ref)
	}
	rows, ok := exporter.Rows("2025-03")
	if !ok || len(rows) != 8 {
		t.Fatalf("expected summary plus one transaction row, got %d", len(rows))
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newService(t, kv, &fakeRemote{})
	withKey(t, s)
	s.AddExpense(ctx, "3", "Tea")

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(s.Transactions()) != 0 || s.Settings() != core.DefaultSettings() {
		t.Error("in-memory state not reset")
	}
	if _, ok, _ := kv.Get(ctx, storage.KeySettings); ok {
		t.Error("settings key should be gone")
	}
}
