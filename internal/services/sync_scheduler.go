package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nettracker/internal/log"
)

const SourceScheduler = "scheduler"

// SyncSchedulerConfig holds configuration for the auto-sync scheduler
type SyncSchedulerConfig struct {
	// Interval between automatic syncs (default: 15m)
	Interval time.Duration

	// SyncOnStart runs a sync as soon as the scheduler starts (default: true)
	SyncOnStart bool
}

// DefaultSyncSchedulerConfig returns sensible defaults
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Interval:    15 * time.Minute,
		SyncOnStart: true,
	}
}

// Syncer runs one sync.
type Syncer interface {
	Sync(ctx context.Context, req SyncRequest) (SyncResult, error)
}

// SyncScheduler triggers a sync on a fixed interval.
type SyncScheduler struct {
	syncer Syncer
	config SyncSchedulerConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncScheduler(syncer Syncer, config SyncSchedulerConfig) *SyncScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSyncSchedulerConfig().Interval
	}
	return &SyncScheduler{
		syncer: syncer,
		config: config,
		logger: log.Default(log.ComponentScheduler),
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (p *SyncScheduler) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync scheduler is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync scheduler started",
		"interval", p.config.Interval,
		"sync_on_start", p.config.SyncOnStart)

	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight sync.
func (p *SyncScheduler) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync scheduler stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync scheduler stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (p *SyncScheduler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncScheduler) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.SyncOnStart {
		p.runOnce(ctx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *SyncScheduler) runOnce(ctx context.Context) {
	_, err := p.syncer.Sync(ctx, SyncRequest{Source: SourceScheduler})
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingCredential):
		p.logger.DebugContext(ctx, "Scheduled sync skipped, no API key")
	case errors.Is(err, ErrSyncInProgress):
		p.logger.DebugContext(ctx, "Scheduled sync skipped, sync in progress")
	default:
		p.logger.WarnContext(ctx, "Scheduled sync failed", log.FieldError, err)
	}
}
