package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns the default processor configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// claimingRepository is the repository surface the processor needs beyond
// shared.OutboxRepository: atomic claiming and retention cleanup
type claimingRepository interface {
	shared.OutboxRepository
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// OutboxProcessor drains staged entries to a sink in the background. Entries
// that keep failing move to DEAD after their retry budget and stay in the
// table for inspection.
type OutboxProcessor struct {
	repo   claimingRepository
	sink   EnvelopeSink
	config OutboxProcessorConfig
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates an outbox processor draining to the given sink
func NewOutboxProcessor(repo claimingRepository, sink EnvelopeSink, config OutboxProcessorConfig, logger *zap.Logger) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxProcessor{
		repo:   repo,
		sink:   sink,
		config: config,
		logger: logger,
	}
}

// Start launches the polling and cleanup loops
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop cancels the loops and waits for them to drain
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

// processBatch claims one batch of due entries and delivers them
func (p *OutboxProcessor) processBatch(ctx context.Context) {
	due, err := p.repo.FetchPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to fetch due outbox entries", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(due))
	for i, entry := range due {
		ids[i] = entry.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Error(err))
		return
	}

	for _, entry := range claimed {
		p.deliver(ctx, entry)
	}
}

// deliver sends one entry to the sink and records the outcome
func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) {
	if err := p.sink.Send(ctx, entry); err != nil {
		entry.MarkFailed(err.Error())
		if entry.Status == shared.OutboxStatusDead {
			p.logger.Warn("outbox entry moved to dead letter",
				zap.String("event_id", entry.EventID.String()),
				zap.String("event_type", entry.EventType),
				zap.String("stream_id", entry.StreamID),
				zap.Int("retry_count", entry.RetryCount),
				zap.String("last_error", entry.LastError),
			)
		} else {
			p.logger.Error("failed to deliver outbox entry",
				zap.String("event_id", entry.EventID.String()),
				zap.String("event_type", entry.EventType),
				zap.Error(err),
			)
		}
		if updateErr := p.repo.Update(ctx, entry); updateErr != nil {
			p.logger.Error("failed to update outbox entry", zap.Error(updateErr))
		}
		return
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to mark outbox entry as sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("outbox entry delivered",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
}

func (p *OutboxProcessor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(ctx)
		}
	}
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up sent outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up sent outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
