package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/brokerscan/internal/model"
)

// DefaultConcurrency is the number of runs a BatchProcessor keeps in flight.
const DefaultConcurrency = 4

// BatchResult is the outcome of one profile's run. Err is set when the run
// could not start; Run is nil in that case.
type BatchResult struct {
	Profile *model.ClientProfile
	Run     *model.DiscoveryRun
	Err     error
}

// BatchProcessor runs discovery for several profiles concurrently. Each run
// stays sequential across its brokers.
type BatchProcessor struct {
	orchestrator    *Orchestrator
	concurrency     int
	includeDisabled bool
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithIncludeDisabled searches disabled brokers too.
func WithIncludeDisabled(include bool) BatchOption {
	return func(b *BatchProcessor) {
		b.includeDisabled = include
	}
}

// NewBatchProcessor creates a BatchProcessor sharing o across runs.
func NewBatchProcessor(o *Orchestrator, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		orchestrator: o,
		concurrency:  DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every profile and returns the results in input order.
// A failing run is stored with its error and does not stop the others.
// The returned error is ctx's error when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, profiles []*model.ClientProfile) ([]BatchResult, error) {
	results := make([]BatchResult, len(profiles))
	err := bp.ProcessBatchWithCallback(ctx, profiles, func(index int, res BatchResult) {
		// Each index is written by exactly one goroutine.
		results[index] = res
	})
	return results, err
}

// ProcessBatchWithCallback runs every profile and calls fn as each run
// completes. fn is called from the worker goroutines and must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, profiles []*model.ClientProfile, fn func(index int, res BatchResult)) error {
	bp.logger.Info("starting batch processing",
		"total_profiles", len(profiles),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, profile := range profiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				fn(i, BatchResult{Profile: profile, Err: err})
				return nil
			}

			run, err := bp.orchestrator.RunDiscovery(gctx, profile, nil, bp.includeDisabled)
			if err != nil {
				bp.logger.Warn("run failed", "index", i+1, "error", err)
			} else {
				bp.logger.Info("run completed",
					"index", i+1,
					"total", len(profiles),
					"found", run.Summary().Found,
				)
			}
			fn(i, BatchResult{Profile: profile, Run: run, Err: err})
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("batch processing complete",
		"total_profiles", len(profiles),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
