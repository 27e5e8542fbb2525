package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/sheets"
	"carteira/internal/storage"
)

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// PollInterval is how often to check snapshot ages (default: 1m)
	PollInterval time.Duration

	// MaxRetries is the number of consecutive failures before a dataset
	// backs off (default: 3)
	MaxRetries int

	// FailureBackoff is how long a repeatedly failing dataset rests before
	// refreshes resume (default: 15m)
	FailureBackoff time.Duration

	// PruneInterval is how often to prune old audit rows (default: 1h)
	PruneInterval time.Duration

	// PruneAge is how old audit rows must be before pruning (default: 7d)
	PruneAge time.Duration
}

// DefaultRefreshProcessorConfig returns sensible defaults
func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{
		PollInterval:   time.Minute,
		MaxRetries:     3,
		FailureBackoff: 15 * time.Minute,
		PruneInterval:  1 * time.Hour,
		PruneAge:       7 * 24 * time.Hour,
	}
}

// RefreshProcessor keeps the snapshot store in step with the spreadsheet.
// It polls snapshot ages, refetches whichever datasets their refresh policy
// marks due, records each run on the audit trail and announces successful
// refreshes over AMQP.
type RefreshProcessor struct {
	reader     sheets.RecordReader
	storage    *storage.SnapshotRepository
	amqpClient *amqp.Client
	specs      []sheets.DatasetSpec
	config     RefreshProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Per-dataset retry state
	attempts  map[string]int
	notBefore map[string]time.Time
}

// NewRefreshProcessor creates a new refresh processor. A nil specs slice
// selects the standard dataset table; zero config fields fall back to the
// defaults.
func NewRefreshProcessor(
	reader sheets.RecordReader,
	repo *storage.SnapshotRepository,
	amqpClient *amqp.Client,
	specs []sheets.DatasetSpec,
	config RefreshProcessorConfig,
) *RefreshProcessor {
	if specs == nil {
		specs = sheets.DefaultDatasets()
	}
	def := DefaultRefreshProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.FailureBackoff <= 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.PruneInterval <= 0 {
		config.PruneInterval = def.PruneInterval
	}
	if config.PruneAge <= 0 {
		config.PruneAge = def.PruneAge
	}
	return &RefreshProcessor{
		reader:     reader,
		storage:    repo,
		amqpClient: amqpClient,
		specs:      specs,
		config:     config,
		attempts:   make(map[string]int),
		notBefore:  make(map[string]time.Time),
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Refresh processor started",
		"poll_interval", p.config.PollInterval,
		"datasets", len(p.specs))

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Refresh processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main refresh loop
func (p *RefreshProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	pruneTicker := time.NewTicker(p.config.PruneInterval)
	defer pruneTicker.Stop()

	// Refresh whatever is already due on startup
	p.refreshDue(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.refreshDue(ctx)
		case <-pruneTicker.C:
			p.pruneAudit(ctx)
		}
	}
}

// refreshDue runs one pass over the dataset table and refreshes whatever
// the refresh policies mark as due.
func (p *RefreshProcessor) refreshDue(ctx context.Context) {
	ages, err := p.storage.SnapshotAges(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read snapshot ages", "error", err)
		return
	}

	now := time.Now()
	for _, spec := range p.specs {
		// Check if we should stop
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if now.Before(p.retryNotBefore(spec.Name)) {
			continue
		}

		checker, err := GetStalenessChecker(PolicyFor(spec.Name))
		if err != nil {
			slog.ErrorContext(ctx, "No staleness checker for dataset",
				"dataset", spec.Name, "error", err)
			continue
		}
		maxAge := spec.MaxAge
		if maxAge <= 0 {
			maxAge = time.Hour
		}
		if !checker.IsDue(ages[spec.Name], now, maxAge) {
			continue
		}

		p.refreshOne(ctx, spec.Name)
	}
}

// refreshOne fetches a dataset into the snapshot store and records the
// outcome on the audit trail.
func (p *RefreshProcessor) refreshOne(ctx context.Context, dataset string) error {
	started := time.Now()
	ds, err := p.reader.ReadRecords(ctx, dataset)
	if err == nil {
		err = p.storage.WriteSnapshot(ctx, ds)
	}
	finished := time.Now()

	if err != nil {
		p.handleFailure(ctx, dataset, started, finished, err)
		return err
	}
	p.clearRetryState(dataset)

	run := storage.RefreshRun{
		Dataset:    dataset,
		StartedAt:  started,
		FinishedAt: finished,
		Rows:       ds.Len(),
		Status:     storage.RefreshStatusOK,
	}
	if err := p.storage.RecordRefresh(ctx, run); err != nil {
		slog.WarnContext(ctx, "Failed to record refresh run",
			"dataset", dataset, "error", err)
		// Don't fail the run - the snapshot itself landed
	}

	if err := p.publishRefreshed(ctx, ds); err != nil {
		slog.ErrorContext(ctx, "Failed to publish refresh message",
			"dataset", dataset, "error", err)
		// Don't fail the run - caches fall back to TTL expiry
	}

	slog.InfoContext(ctx, "Dataset refreshed",
		"dataset", dataset,
		"rows", ds.Len(),
		"took", finished.Sub(started))

	return nil
}

// RefreshAll refreshes every dataset once, regardless of snapshot age.
// First runs and manual triggers use it.
func (p *RefreshProcessor) RefreshAll(ctx context.Context) error {
	var failed []string
	for _, spec := range p.specs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.refreshOne(ctx, spec.Name); err != nil {
			failed = append(failed, spec.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("refresh failed for %d of %d datasets: %v",
			len(failed), len(p.specs), failed)
	}
	return nil
}

// handleFailure records a failed refresh and backs the dataset off once it
// keeps failing.
func (p *RefreshProcessor) handleFailure(ctx context.Context, dataset string, started, finished time.Time, refreshErr error) {
	attempt := p.recordFailure(dataset)

	slog.WarnContext(ctx, "Dataset refresh failed",
		"dataset", dataset,
		"attempt", attempt,
		"error", refreshErr)

	run := storage.RefreshRun{
		Dataset:    dataset,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     storage.RefreshStatusError,
		Error:      refreshErr.Error(),
	}
	if err := p.storage.RecordRefresh(ctx, run); err != nil {
		slog.ErrorContext(ctx, "Failed to record refresh run",
			"dataset", dataset, "error", err)
	}

	if attempt >= p.config.MaxRetries {
		p.deferRetries(dataset, finished.Add(p.config.FailureBackoff))
		slog.ErrorContext(ctx, "Dataset refresh failing repeatedly, backing off",
			"dataset", dataset,
			"attempts", attempt,
			"retry_after", p.config.FailureBackoff)
	}
}

func (p *RefreshProcessor) publishRefreshed(ctx context.Context, ds *core.Dataset) error {
	if p.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping refresh message")
		return nil
	}
	return p.amqpClient.PublishDatasetRefreshed(ctx, ds.Name, ds.Len(), ds.FetchedAt)
}

// pruneAudit removes audit rows older than the configured retention.
func (p *RefreshProcessor) pruneAudit(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.PruneAge)
	n, err := p.storage.PruneRefreshRuns(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to prune refresh runs", "error", err)
		return
	}
	if n > 0 {
		slog.DebugContext(ctx, "Pruned refresh runs", "removed", n)
	}
}

func (p *RefreshProcessor) retryNotBefore(dataset string) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notBefore[dataset]
}

func (p *RefreshProcessor) recordFailure(dataset string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[dataset]++
	return p.attempts[dataset]
}

func (p *RefreshProcessor) deferRetries(dataset string, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[dataset] = 0
	p.notBefore[dataset] = until
}

func (p *RefreshProcessor) clearRetryState(dataset string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, dataset)
	delete(p.notBefore, dataset)
}
