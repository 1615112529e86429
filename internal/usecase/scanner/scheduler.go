package scanner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/usecase/alerts"
)

// Scheduler drives the periodic scan cycle and the daily expiry warning
// job.
type Scheduler struct {
	scanner  *Scanner
	warner   *alerts.Warner
	interval time.Duration
	log      zerolog.Logger

	now      func() time.Time
	lastWarn time.Time
}

// NewScheduler builds a scheduler. warner may be nil to disable expiry
// warnings.
func NewScheduler(sc *Scanner, warner *alerts.Warner, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		scanner:  sc,
		warner:   warner,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
}

// Run executes one cycle immediately, then one per interval until the
// context is cancelled. Blocks; run it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.cycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			s.scanner.Wait()
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle is one full pass: fetch and detect, retire stale zones, then turn
// fresh confluence into delivered signals. Expiry warnings piggyback on the
// first cycle of each UTC day.
func (s *Scheduler) cycle(ctx context.Context) {
	start := s.now()

	sum := s.scanner.ScanPatterns(ctx, s.scanner.cfg.Symbols, s.scanner.cfg.Timeframes)
	transitioned := s.scanner.UpdatePatternStatuses(ctx)
	signals := s.scanner.ProcessSignals(ctx, true)

	if s.warner != nil {
		day := s.now().UTC().Truncate(24 * time.Hour)
		if day.After(s.lastWarn) {
			s.warner.WarnExpiring(ctx)
			s.lastWarn = day
		}
	}

	s.log.Info().
		Dur("took", s.now().Sub(start)).
		Int("candles", sum.CandlesStored).
		Int("patterns", sum.PatternsFound).
		Int("transitions", transitioned).
		Int("signals", len(signals)).
		Msg("cycle complete")
}
