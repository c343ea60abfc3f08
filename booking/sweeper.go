/*
sweeper.go - Automated expiry of stale pending bookings

PURPOSE:
  A pending booking ties up the learner's first payment and the tutor's
  slots. If the tutor neither approves nor rejects it within PendingTTL,
  the sweeper cancels it and refunds the learner without user action.

DESIGN:
  - Runs a background goroutine on a fixed interval (default 1 hour)
  - Each booking is expired in its own transaction through
    Service.ExpireBooking, which re-checks status and age under lock
  - A booking resolved concurrently (cancelled, approved) is skipped
  - A failure on one booking is logged and does not stop the others
  - At most Concurrency bookings are processed at once

USAGE:
  sweeper := NewExpirySweeper(service, SweeperConfig{Logger: logger})
  sweeper.Start(ctx)
  // ... later
  sweeper.Stop()

SEE ALSO:
  - service.go: ExpireBooking
  - policy.go: Expiry rule
*/
package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval    = time.Hour
	DefaultPendingTTL       = 72 * time.Hour
	DefaultSweepConcurrency = 4
)

type SweeperConfig struct {
	Interval    time.Duration
	PendingTTL  time.Duration
	Concurrency int
	Logger      *zap.Logger
}

// SweepReport summarizes one pass.
type SweepReport struct {
	Cutoff  time.Time     `json:"cutoff"`
	Scanned int           `json:"scanned"`
	Expired int           `json:"expired"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Took    time.Duration `json:"took"`
}

type ExpirySweeper struct {
	service     *Service
	interval    time.Duration
	ttl         time.Duration
	concurrency int
	logger      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun atomic.Pointer[SweepReport]
	nextRun atomic.Pointer[time.Time]
}

func NewExpirySweeper(service *Service, cfg SweeperConfig) *ExpirySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultSweepConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ExpirySweeper{
		service:     service,
		interval:    cfg.Interval,
		ttl:         cfg.PendingTTL,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger.Named("sweeper"),
	}
}

// Start runs a pass immediately and then every interval until Stop or ctx ends.
func (sw *ExpirySweeper) Start(ctx context.Context) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})
	go sw.run(ctx, sw.done)

	sw.logger.Info("expiry sweeper started",
		zap.Duration("interval", sw.interval),
		zap.Duration("pending_ttl", sw.ttl),
		zap.Int("concurrency", sw.concurrency),
	)
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (sw *ExpirySweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
	sw.cancel = nil
	sw.nextRun.Store(nil)
	sw.logger.Info("expiry sweeper stopped")
}

func (sw *ExpirySweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	sw.scheduleNext(time.Now())
	sw.sweep(ctx)

	for {
		select {
		case tick := <-ticker.C:
			sw.scheduleNext(tick)
			sw.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (sw *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := sw.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sw.logger.Error("sweep failed", zap.Error(err))
	}
}

// RunNow performs one pass and reports what it did. Only failing to list
// candidates is returned as an error.
func (sw *ExpirySweeper) RunNow(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	cutoff := sw.service.clock.Now().Add(-sw.ttl)
	report := SweepReport{Cutoff: cutoff}

	stale, err := sw.service.PendingBefore(ctx, cutoff)
	if err != nil {
		return report, err
	}
	report.Scanned = len(stale)

	var expired, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(sw.concurrency)
	for _, b := range stale {
		id := b.ID
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			_, err := sw.service.ExpireBooking(ctx, id, cutoff)
			switch {
			case err == nil:
				expired.Add(1)
			case errors.Is(err, ErrAlreadyTerminal), errors.Is(err, ErrInvalidTransition):
				skipped.Add(1)
				sw.logger.Debug("booking resolved before expiry", zap.String("booking_id", string(id)), zap.Error(err))
			default:
				failed.Add(1)
				sw.logger.Error("failed to expire booking", zap.String("booking_id", string(id)), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Expired = int(expired.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	report.Took = time.Since(start)
	sw.lastRun.Store(&report)

	if report.Scanned > 0 {
		sw.logger.Info("sweep completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("expired", report.Expired),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// LastRun returns the report of the most recent pass, if any.
func (sw *ExpirySweeper) LastRun() (SweepReport, bool) {
	r := sw.lastRun.Load()
	if r == nil {
		return SweepReport{}, false
	}
	return *r, true
}

// NextRunTime returns when the ticker fires next, or the zero time when the
// loop is not running. Passes triggered through RunNow do not move it.
func (sw *ExpirySweeper) NextRunTime() time.Time {
	if next := sw.nextRun.Load(); next != nil {
		return *next
	}
	return time.Time{}
}

func (sw *ExpirySweeper) scheduleNext(tick time.Time) {
	next := tick.Add(sw.interval)
	sw.nextRun.Store(&next)
}
