// Package confluence tallies directional agreement across timeframes and
// turns qualifying alignments into trade signals.
package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/infrastructure/indicators"
	"cryptolens-backend/internal/usecase/levels"
)

const (
	atrPeriod     = 14
	swingLookback = 2
	candleContext = 100
)

// Config is the signal gating policy.
type Config struct {
	// Timeframes is the configured scan set in ascending duration order.
	Timeframes []domain.Timeframe
	// MinConfluence is the minimum aligned-timeframe count for a signal.
	MinConfluence int
	// RequireHTF demands at least one aligned higher timeframe (4h, 1d).
	RequireHTF bool
	// Cooldown suppresses repeat signals per (symbol, direction).
	Cooldown time.Duration
}

// Result is the outcome of one confluence check. Dominant is empty on a tie.
type Result struct {
	BullishTimeframes []domain.Timeframe
	BearishTimeframes []domain.Timeframe
	Dominant          domain.Direction
	Score             int
	Aligned           []domain.Timeframe
}

// Neutral reports whether neither side holds a strict majority.
func (r Result) Neutral() bool { return r.Dominant == "" }

// Aggregator queries the latest active pattern per timeframe and builds
// signals from qualifying alignments.
type Aggregator struct {
	patterns domain.PatternRepository
	signals  domain.SignalRepository
	candles  domain.CandleRepository
	calc     *levels.Calculator
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewAggregator(
	patterns domain.PatternRepository,
	signals domain.SignalRepository,
	candles domain.CandleRepository,
	calc *levels.Calculator,
	cfg Config,
	log zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		patterns: patterns,
		signals:  signals,
		candles:  candles,
		calc:     calc,
		cfg:      cfg,
		log:      log.With().Str("component", "confluence").Logger(),
		now:      time.Now,
	}
}

// CheckConfluence takes the single most recent active pattern per configured
// timeframe and tallies the directional votes. A strict majority wins; a tie
// is neutral with score zero.
func (a *Aggregator) CheckConfluence(ctx context.Context, symbol string) Result {
	var res Result
	for _, tf := range a.cfg.Timeframes {
		p, err := a.patterns.LatestActive(ctx, symbol, tf)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				a.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("latest pattern lookup failed")
			}
			continue
		}
		switch p.Direction {
		case domain.Bullish:
			res.BullishTimeframes = append(res.BullishTimeframes, tf)
		case domain.Bearish:
			res.BearishTimeframes = append(res.BearishTimeframes, tf)
		}
	}

	switch {
	case len(res.BullishTimeframes) > len(res.BearishTimeframes):
		res.Dominant = domain.Bullish
		res.Score = len(res.BullishTimeframes)
		res.Aligned = res.BullishTimeframes
	case len(res.BearishTimeframes) > len(res.BullishTimeframes):
		res.Dominant = domain.Bearish
		res.Score = len(res.BearishTimeframes)
		res.Aligned = res.BearishTimeframes
	}
	return res
}

// GenerateSignal creates and persists a signal for the symbol when the
// current confluence passes every gate. It returns nil when any gate
// rejects, and also on persistence failure, so a scan over many symbols is
// never aborted by one bad symbol.
func (a *Aggregator) GenerateSignal(ctx context.Context, symbol string) *domain.Signal {
	res := a.CheckConfluence(ctx, symbol)
	if res.Neutral() || res.Score < a.cfg.MinConfluence {
		return nil
	}
	if a.cfg.RequireHTF && !hasHigherTimeframe(res.Aligned) {
		a.log.Debug().Str("symbol", symbol).Int("score", res.Score).
			Msg("confluence lacks a higher timeframe")
		return nil
	}

	dir := domain.SignalDirectionFor(res.Dominant)
	if a.inCooldown(ctx, symbol, dir) {
		return nil
	}

	pattern := a.pickPattern(ctx, symbol, res)
	if pattern == nil {
		return nil
	}

	atr, swingHigh, swingLow := a.marketContext(ctx, symbol, pattern.Timeframe, pattern)
	lv := a.calc.Compute(pattern.Type, pattern.ZoneLow, pattern.ZoneHigh, pattern.Direction, atr, swingHigh, swingLow)

	aligned, err := json.Marshal(timeframeStrings(res.Aligned))
	if err != nil {
		a.log.Error().Err(err).Str("symbol", symbol).Msg("encode aligned timeframes")
		return nil
	}

	sig := &domain.Signal{
		ID:                uuid.NewString(),
		Symbol:            symbol,
		Direction:         dir,
		Entry:             lv.Entry,
		StopLoss:          lv.StopLoss,
		TakeProfit1:       lv.TakeProfit1,
		TakeProfit2:       lv.TakeProfit2,
		TakeProfit3:       lv.TakeProfit3,
		RiskReward:        lv.RiskReward3,
		ConfluenceScore:   res.Score,
		AlignedTimeframes: string(aligned),
		PatternID:         pattern.ID,
		Status:            domain.SignalPending,
		CreatedAt:         a.now(),
	}
	if err := a.signals.Create(ctx, sig); err != nil {
		a.log.Error().Err(err).Str("symbol", symbol).Str("direction", string(dir)).
			Msg("persist signal")
		return nil
	}

	a.log.Info().Str("symbol", symbol).Str("direction", string(dir)).
		Int("score", res.Score).Str("pattern", string(pattern.Type)).
		Str("timeframe", string(pattern.Timeframe)).Msg("signal created")
	return sig
}

// inCooldown checks the most recent signal for (symbol, direction) against
// the cooldown window. Time-based, not content-based: the only dedup.
func (a *Aggregator) inCooldown(ctx context.Context, symbol string, dir domain.SignalDirection) bool {
	last, err := a.signals.LastCreated(ctx, symbol, dir)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("cooldown lookup failed")
		}
		return false
	}
	return a.now().Sub(last.CreatedAt) < a.cfg.Cooldown
}

// pickPattern walks the fixed timeframe priority from highest duration down
// and returns the first aligned timeframe's active pattern in the dominant
// direction.
func (a *Aggregator) pickPattern(ctx context.Context, symbol string, res Result) *domain.Pattern {
	for _, tf := range domain.TimeframePriority {
		if !containsTimeframe(res.Aligned, tf) {
			continue
		}
		p, err := a.patterns.LatestActiveDirectional(ctx, symbol, tf, res.Dominant)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				a.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("pattern selection lookup failed")
			}
			continue
		}
		return p
	}
	return nil
}

// marketContext derives ATR and the nearest opposing swing points from the
// pattern's own timeframe. All three are zero when history is too short.
func (a *Aggregator) marketContext(ctx context.Context, symbol string, tf domain.Timeframe, p *domain.Pattern) (atr, swingHigh, swingLow float64) {
	candles, err := a.candles.Latest(ctx, symbol, tf, candleContext)
	if err != nil || len(candles) == 0 {
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("candle context unavailable")
		}
		return 0, 0, 0
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	atr = indicators.LatestATR(highs, lows, closes, atrPeriod)
	swingHigh = indicators.NearestSwingAbove(indicators.FindSwingHighs(highs, swingLookback), p.ZoneHigh)
	swingLow = indicators.NearestSwingBelow(indicators.FindSwingLows(lows, swingLookback), p.ZoneLow)
	return atr, swingHigh, swingLow
}

func hasHigherTimeframe(tfs []domain.Timeframe) bool {
	for _, tf := range tfs {
		if tf.IsHigher() {
			return true
		}
	}
	return false
}

func containsTimeframe(tfs []domain.Timeframe, tf domain.Timeframe) bool {
	for _, t := range tfs {
		if t == tf {
			return true
		}
	}
	return false
}

func timeframeStrings(tfs []domain.Timeframe) []string {
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = string(tf)
	}
	return out
}
