package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// Processor is the background loop that drains pending outbox entries.
// A single goroutine runs the ticks, so batches never overlap.
type Processor struct {
	config  ProcessorConfig
	store   Store
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewProcessor creates a new Processor.
func NewProcessor(config ProcessorConfig, store Store, handler Handler, logger *slog.Logger) *Processor {
	return &Processor{
		config:  config,
		store:   store,
		handler: handler,
		logger:  logger,
	}
}

// Start launches the processing loop. Starting an already running
// processor is a no-op.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	if p.logger != nil {
		p.logger.Info("starting outbox processor",
			slog.Duration("interval", p.config.Interval),
			slog.Int("batch_size", p.config.BatchSize),
		)
	}

	go p.run(loopCtx)
}

// IsRunning reports whether the processing loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop cancels the loop and waits for the in-flight batch to finish.
// Stopping a processor that is not running is a no-op.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done

	if p.logger != nil {
		p.logger.Info("outbox processor stopped")
	}
}

// run executes batches until the context is canceled. A batch-level
// failure doubles the wait once; the next clean batch restores it.
func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	interval := p.config.Interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if err := p.ProcessBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if p.logger != nil {
				p.logger.Error("failed to process batch", slog.Any("error", err))
			}
			interval = 2 * p.config.Interval
		} else {
			interval = p.config.Interval
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// ProcessBatch claims one batch of pending entries and runs each through
// the handler. Per-entry failures are recorded against the entry and
// never abort the batch.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	entries, err := p.store.GetPending(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	if p.logger != nil {
		p.logger.Info("processing entries", slog.Int("count", len(entries)))
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.processEntry(ctx, entry)
	}

	return nil
}

// releaseTimeout bounds the detached store write that releases a claim
// when the loop context is already gone.
const releaseTimeout = 5 * time.Second

// processEntry runs one entry and books a transient failure against its
// attempt allowance. An entry claimed by a concurrent worker is skipped.
func (p *Processor) processEntry(ctx context.Context, entry *domain.OutboxEntry) {
	err := p.handler.Handle(ctx, entry)
	if err == nil {
		return
	}

	if p.logger != nil {
		p.logger.Error("failed to process entry",
			slog.String("entry_id", entry.ID.String()),
			slog.String("kind", string(entry.Kind)),
			slog.Any("error", err),
		)
	}

	if apperrors.Is(err, apperrors.ErrConflict) {
		return
	}

	// A canceled loop context must still release the claim, otherwise a
	// shutdown mid-call strands the entry in processing.
	recordCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
	}

	if incErr := p.store.IncrementAttempts(recordCtx, entry.ID, err.Error()); incErr != nil {
		if p.logger != nil {
			p.logger.Error("failed to record entry attempt",
				slog.String("entry_id", entry.ID.String()),
				slog.Any("error", incErr),
			)
		}
	}
}
