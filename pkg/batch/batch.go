// Package batch orchestrates the per-slice extraction phases: the text track
// over every slice, the whole-image overview, then the overview-guided vision
// track. Slices are processed in fixed-size batches by a bounded worker pool;
// a batch completes in full before the next one starts, and cancellation is
// honored at batch boundaries.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/blueplan/drawing-analyzer/internal/apperrors"
	"github.com/blueplan/drawing-analyzer/internal/logging"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// TextRunner is the text track as the orchestrator sees it.
type TextRunner interface {
	Run(ctx context.Context, slice types.Slice) ([]types.TextRegion, bool, error)
}

// VisionRunner is the vision track as the orchestrator sees it.
type VisionRunner interface {
	Run(ctx context.Context, slice types.Slice, overview types.Overview, regions []types.TextRegion) ([]types.ComponentCandidate, error)
}

// OverviewBuilder assembles the whole-image overview between the two phases.
type OverviewBuilder func(ctx context.Context, regions []types.TextRegion, cmap types.CoordinateMap, imgW, imgH int) (types.Overview, error)

// Config tunes concurrency and the retry policy around external calls.
type Config struct {
	Concurrency int
	BatchSize   int

	// MaxAttempts bounds the retries of one slice's track call; RetryBase is
	// the initial backoff delay, doubled per attempt with jitter.
	MaxAttempts uint64
	RetryBase   time.Duration
}

// DefaultConfig returns moderate parallelism suited to a local inference server.
func DefaultConfig() Config {
	return Config{Concurrency: 4, BatchSize: 8, MaxAttempts: 3, RetryBase: 500 * time.Millisecond}
}

func (c *Config) normalize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
}

// Orchestrator drives both extraction phases over a slice set.
type Orchestrator struct {
	config Config
	text   TextRunner
	vision VisionRunner
	log    *logging.Logger
}

// New creates an Orchestrator.
func New(config Config, text TextRunner, vision VisionRunner, log *logging.Logger) *Orchestrator {
	config.normalize()
	if log == nil {
		log = logging.NewLogger("batch")
	}
	return &Orchestrator{config: config, text: text, vision: vision, log: log}
}

// Output collects everything the two phases produced.
type Output struct {
	Regions    []types.TextRegion
	Candidates []types.ComponentCandidate
	Overview   types.Overview
	Stats      types.RunStats
}

// Run executes text extraction, overview assembly, and vision extraction over
// slices. A failing slice contributes empty results and is flagged in the run
// statistics; only fatal pipeline errors or cancellation abort the run.
func (o *Orchestrator) Run(ctx context.Context, slices []types.Slice, cmap types.CoordinateMap, imgW, imgH int, buildOverview OverviewBuilder) (*Output, error) {
	start := time.Now()
	out := &Output{Stats: types.RunStats{TotalSlices: len(slices)}}

	regionsBySlice := make([][]types.TextRegion, len(slices))
	hitBySlice := make([]bool, len(slices))
	failedText := make([]bool, len(slices))
	if err := o.runPhase(ctx, slices, func(ctx context.Context, i int, sl types.Slice) error {
		return o.retry(ctx, func() error {
			regions, hit, err := o.text.Run(ctx, sl)
			if err != nil {
				return err
			}
			regionsBySlice[i] = regions
			hitBySlice[i] = hit
			return nil
		})
	}, func(i int, sl types.Slice, err error) {
		o.log.Warn("text track failed", "slice", sl.ID, "error", err)
		failedText[i] = true
		out.Stats.FailedTextSlices = append(out.Stats.FailedTextSlices, sl.ID)
	}); err != nil {
		return nil, err
	}

	for i, regions := range regionsBySlice {
		out.Regions = append(out.Regions, regions...)
		if failedText[i] {
			continue
		}
		if hitBySlice[i] {
			out.Stats.CacheHits++
		} else {
			out.Stats.CacheMisses++
		}
	}

	if buildOverview != nil {
		ov, err := buildOverview(ctx, out.Regions, cmap, imgW, imgH)
		if err != nil {
			// Advisory only: the vision phase runs with whatever was assembled.
			o.log.Warn("overview assembly degraded", "error", err)
			out.Stats.OverviewFailed = true
		}
		out.Overview = ov
	}

	candidatesBySlice := make([][]types.ComponentCandidate, len(slices))
	if o.vision != nil {
		if err := o.runPhase(ctx, slices, func(ctx context.Context, i int, sl types.Slice) error {
			return o.retry(ctx, func() error {
				cands, err := o.vision.Run(ctx, sl, out.Overview, regionsBySlice[i])
				if err != nil {
					return err
				}
				candidatesBySlice[i] = cands
				return nil
			})
		}, func(i int, sl types.Slice, err error) {
			o.log.Warn("vision track failed", "slice", sl.ID, "error", err)
			out.Stats.FailedVisionSlices = append(out.Stats.FailedVisionSlices, sl.ID)
		}); err != nil {
			return nil, err
		}
	}

	for _, cands := range candidatesBySlice {
		out.Candidates = append(out.Candidates, cands...)
	}

	out.Stats.Elapsed = time.Since(start)
	return out, nil
}

// runPhase processes slices batch by batch with a bounded worker pool. onFail
// records per-slice failures; fatal errors abort the phase. The next batch
// starts only after the previous one fully drained.
func (o *Orchestrator) runPhase(ctx context.Context, slices []types.Slice, work func(context.Context, int, types.Slice) error, onFail func(int, types.Slice, error)) error {
	var mu sync.Mutex
	var fatal error

	for lo := 0; lo < len(slices); lo += o.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		hi := lo + o.config.BatchSize
		if hi > len(slices) {
			hi = len(slices)
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, o.config.Concurrency)
		for i := lo; i < hi; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()

				if err := work(ctx, i, slices[i]); err != nil {
					mu.Lock()
					if apperrors.IsFatal(err) {
						if fatal == nil {
							fatal = err
						}
					} else {
						onFail(i, slices[i], err)
					}
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if fatal != nil {
			return fatal
		}
	}
	return nil
}

// retry wraps one external call in the bounded exponential backoff policy.
// Fatal pipeline errors and context cancellation are not retried.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.config.RetryBase

	return backoff.Retry(func() error {
		err := op()
		if err != nil && apperrors.IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, o.config.MaxAttempts-1), ctx))
}
