package process

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"gator/internal/ingest"
	"gator/internal/models"
	"gator/internal/rss"
)

const (
	defaultCycleTimeout     = 2 * time.Minute
	defaultProgressInterval = 5 * time.Minute
)

// Scheduler leases the next feed to poll.
type Scheduler interface {
	Next(ctx context.Context) (feed models.Feed, release func(), ok bool, err error)
}

// Ingester runs a single fetch-parse-persist cycle.
type Ingester interface {
	Ingest(ctx context.Context, feed models.Feed) (ingest.Result, error)
}

// Config holds poller settings
type Config struct {
	// Concurrency is the number of workers, 0 for runtime.NumCPU().
	Concurrency int
	// Interval is the pause between two cycles of the same worker.
	Interval time.Duration
	// CycleTimeout bounds a single feed's fetch and persist.
	CycleTimeout     time.Duration
	ProgressInterval time.Duration
}

// Poller drives ingestion cycles: each worker independently leases the
// stalest feed, ingests it, and waits for the next tick.
type Poller struct {
	scheduler Scheduler
	ingester  Ingester
	logger    zerolog.Logger

	Concurrency      int
	interval         time.Duration
	cycleTimeout     time.Duration
	progressInterval time.Duration

	// Counters
	cycles        atomic.Int64
	failures      atomic.Int64
	idle          atomic.Int64
	inserted      atomic.Int64
	duplicates    atomic.Int64
	skipped       atomic.Int64
	activeWorkers atomic.Int32
}

// NewPoller creates a poller; the interval must be positive.
func NewPoller(scheduler Scheduler, ingester Ingester, cfg Config, logger zerolog.Logger) (*Poller, error) {
	if scheduler == nil || ingester == nil {
		return nil, fmt.Errorf("scheduler and ingester cannot be nil")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}

	return &Poller{
		scheduler:        scheduler,
		ingester:         ingester,
		logger:           logger,
		Concurrency:      cfg.Concurrency,
		interval:         cfg.Interval,
		cycleTimeout:     cfg.CycleTimeout,
		progressInterval: cfg.ProgressInterval,
	}, nil
}

// Run polls until ctx is cancelled. No per-feed failure stops it; the
// returned error is always nil once every worker has exited.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Int("workers", p.Concurrency).
		Dur("interval", p.interval).
		Msg("Starting feed polling")

	progressTicker := time.NewTicker(p.progressInterval)
	defer progressTicker.Stop()

	// goroutine to log progress
	go func() {
		for {
			select {
			case <-progressTicker.C:
				p.logProgress()
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, i)
	}
	wg.Wait()

	p.logger.Info().Msg("All feed workers finished")
	p.logProgress()
	return nil
}

// RunOnce runs one cycle on each worker concurrently and returns when all are done.
func (p *Poller) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.RunCycle(ctx, p.logger.With().Int("worker", id).Logger())
		}(i)
	}
	wg.Wait()
}

func (p *Poller) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	logger := p.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("Feed worker started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.RunCycle(ctx, logger)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Debug().Err(ctx.Err()).Msg("Feed worker exiting")
			return
		}
	}
}

// RunCycle leases one feed and ingests it, logging the outcome. It reports
// whether a feed was polled successfully.
func (p *Poller) RunCycle(ctx context.Context, logger zerolog.Logger) bool {
	if ctx.Err() != nil {
		return false
	}

	feed, release, ok, err := p.scheduler.Next(ctx)
	if err != nil {
		p.failures.Add(1)
		logger.Error().Err(err).Msg("Failed to select next feed")
		return false
	}
	if !ok {
		p.idle.Add(1)
		logger.Info().Msg("No feed available, skipping cycle")
		return false
	}
	defer release()

	p.cycles.Add(1)
	logger = logger.With().Str("feed_id", feed.ID).Str("feed", feed.Name).Str("url", feed.URL).Logger()
	logger.Debug().Msg("Processing feed")

	cycleCtx, cancel := context.WithTimeout(ctx, p.cycleTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.ingester.Ingest(cycleCtx, feed)
	p.inserted.Add(int64(res.Inserted))
	p.duplicates.Add(int64(res.Duplicates))
	p.skipped.Add(int64(res.Skipped))

	if err != nil {
		p.failures.Add(1)
		event := logger.Warn()
		var fetchErr *rss.FetchError
		switch {
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			event = logger.Info()
		case errors.As(err, &fetchErr) && fetchErr.StatusCode != 0:
			event = event.Int("status", fetchErr.StatusCode)
		case errors.Is(err, ingest.ErrStorage):
			event = logger.Error()
		}
		event.Err(err).
			Stringer("stage", res.Stage).
			Int("inserted", res.Inserted).
			Dur("duration", time.Since(start)).
			Msg("Feed cycle failed")
		return false
	}

	logger.Info().
		Int("items", res.Items).
		Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Int("skipped", res.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Feed processed successfully")
	return true
}

func (p *Poller) logProgress() {
	s := p.Stats()
	p.logger.Info().
		Int64("cycles", s.Cycles).
		Int64("failures", s.Failures).
		Int64("idle", s.Idle).
		Int64("inserted", s.Inserted).
		Int64("duplicates", s.Duplicates).
		Int64("skipped", s.Skipped).
		Int32("active_workers", p.activeWorkers.Load()).
		Msg("Processing progress")
}

// Stats is a snapshot of poller counters.
type Stats struct {
	Cycles     int64
	Failures   int64
	Idle       int64
	Inserted   int64
	Duplicates int64
	Skipped    int64
}

// Stats returns processing statistics since the poller was created.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:     p.cycles.Load(),
		Failures:   p.failures.Load(),
		Idle:       p.idle.Load(),
		Inserted:   p.inserted.Load(),
		Duplicates: p.duplicates.Load(),
		Skipped:    p.skipped.Load(),
	}
}
