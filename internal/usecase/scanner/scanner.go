// Package scanner orchestrates one scan cycle: fetch candles, detect
// pattern zones, maintain zone lifecycles and turn confluence into
// delivered signals.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/notifier"
	"cryptolens-backend/internal/usecase/confluence"
	"cryptolens-backend/internal/usecase/eligibility"
	"cryptolens-backend/internal/usecase/patterns"
)

// dedupOverlap is the zone overlap fraction above which a freshly detected
// zone is considered a re-detection of an existing active pattern.
const dedupOverlap = 0.70

// rollupBaseLimit bounds how many stored 1m candles feed a rollup when the
// exchange fetch for a higher timeframe fails.
const rollupBaseLimit = 1500

// PriceSource exposes the exchange ticker. Satisfied by the market client.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// PushSender is the secondary device-push channel. Satisfied by the FCM
// client; nil disables push.
type PushSender interface {
	Enabled() bool
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// TokenStore lists registered device tokens for push delivery.
type TokenStore interface {
	Tokens() []string
}

// Config carries the scan loop parameters.
type Config struct {
	Symbols     []string
	Timeframes  []domain.Timeframe
	CandleLimit int
	// ExpiryFor returns how long an untouched active pattern stays alive.
	ExpiryFor func(domain.Timeframe) time.Duration
}

// Summary aggregates one ScanPatterns pass. Per-symbol failures are counted
// here instead of aborting the pass.
type Summary struct {
	CandlesStored int
	PatternsFound int
	Errors        int
}

// Scanner drives the detection and signal pipeline over the configured
// symbol/timeframe grid.
type Scanner struct {
	source    domain.CandleSource
	prices    PriceSource
	candles   domain.CandleRepository
	patterns  domain.PatternRepository
	cache     domain.PriceCache
	agg       *confluence.Aggregator
	limiter   *eligibility.Limiter
	dispatch  *notifier.Dispatcher
	push      PushSender
	tokens    TokenStore
	detectors []patterns.Detector
	cfg       Config
	log       zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)
	wg    sync.WaitGroup
}

func New(
	source domain.CandleSource,
	prices PriceSource,
	candles domain.CandleRepository,
	patternRepo domain.PatternRepository,
	cache domain.PriceCache,
	agg *confluence.Aggregator,
	limiter *eligibility.Limiter,
	dispatch *notifier.Dispatcher,
	detectCfg patterns.Config,
	cfg Config,
	log zerolog.Logger,
) *Scanner {
	if cfg.ExpiryFor == nil {
		cfg.ExpiryFor = func(domain.Timeframe) time.Duration { return 48 * time.Hour }
	}
	return &Scanner{
		source:    source,
		prices:    prices,
		candles:   candles,
		patterns:  patternRepo,
		cache:     cache,
		agg:       agg,
		limiter:   limiter,
		dispatch:  dispatch,
		detectors: patterns.All(detectCfg),
		cfg:       cfg,
		log:       log.With().Str("component", "scanner").Logger(),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// WithPush attaches the optional device-push channel.
func (s *Scanner) WithPush(push PushSender, tokens TokenStore) *Scanner {
	s.push = push
	s.tokens = tokens
	return s
}

// Wait blocks until all delayed deliveries scheduled by ProcessSignals have
// finished. Used on shutdown.
func (s *Scanner) Wait() { s.wg.Wait() }

// ScanPatterns fetches candles and runs every detector over every
// (symbol, timeframe) pair. Freshly detected zones are deduplicated against
// active patterns of the same identity before persisting. A failing symbol
// never stops the pass.
func (s *Scanner) ScanPatterns(ctx context.Context, symbols []string, timeframes []domain.Timeframe) Summary {
	var sum Summary
	for _, symbol := range symbols {
		for _, tf := range timeframes {
			series, err := s.fetchSeries(ctx, symbol, tf)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("candle fetch failed")
				sum.Errors++
				continue
			}
			if len(series) == 0 {
				continue
			}

			stored, err := s.candles.Upsert(ctx, series)
			if err != nil {
				s.log.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("candle upsert failed")
				sum.Errors++
			}
			sum.CandlesStored += stored

			sum.PatternsFound += s.detect(ctx, symbol, tf, series)
		}
		s.refreshPrice(ctx, symbol)
	}

	s.log.Info().Int("candles", sum.CandlesStored).Int("patterns", sum.PatternsFound).
		Int("errors", sum.Errors).Msg("scan pass complete")
	return sum
}

// fetchSeries pulls candles from the exchange, falling back to rolling up
// stored 1m candles when a higher-timeframe fetch fails.
func (s *Scanner) fetchSeries(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	series, err := s.source.Candles(ctx, symbol, tf, s.cfg.CandleLimit)
	if err == nil {
		return series, nil
	}
	if tf == domain.TF1m {
		return nil, err
	}

	base, baseErr := s.candles.Latest(ctx, symbol, domain.TF1m, rollupBaseLimit)
	if baseErr != nil || len(base) == 0 {
		return nil, err
	}
	rolled := Rollup(base, tf)
	if len(rolled) == 0 {
		return nil, err
	}
	s.log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).
		Int("candles", len(rolled)).Msg("rolled up from stored 1m candles")
	return rolled, nil
}

// detect runs all detectors over the series and persists zones that do not
// overlap an existing active pattern of the same identity by 70% or more.
func (s *Scanner) detect(ctx context.Context, symbol string, tf domain.Timeframe, series []domain.Candle) int {
	created := 0
	for _, det := range s.detectors {
		for _, z := range det.Detect(series) {
			if s.isDuplicate(ctx, symbol, tf, z) {
				continue
			}
			p := &domain.Pattern{
				ID:         uuid.NewString(),
				Symbol:     symbol,
				Timeframe:  tf,
				Type:       z.Type,
				Direction:  z.Direction,
				ZoneLow:    z.Low,
				ZoneHigh:   z.High,
				DetectedAt: z.DetectedAt,
				Status:     domain.PatternActive,
				CreatedAt:  s.now(),
			}
			if err := s.patterns.Create(ctx, p); err != nil {
				s.log.Error().Err(err).Str("symbol", symbol).Str("type", string(z.Type)).
					Msg("persist pattern failed")
				continue
			}
			created++
			s.log.Info().Str("symbol", symbol).Str("timeframe", string(tf)).
				Str("type", string(z.Type)).Str("direction", string(z.Direction)).
				Float64("zone_low", z.Low).Float64("zone_high", z.High).
				Msg("pattern detected")
		}
	}
	return created
}

func (s *Scanner) isDuplicate(ctx context.Context, symbol string, tf domain.Timeframe, z domain.Zone) bool {
	existing, err := s.patterns.ActiveOverlapping(ctx, symbol, tf, z.Type, z.Direction, z.Low, z.High)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("overlap lookup failed")
		return false
	}
	for _, p := range existing {
		if p.Overlap(z.Low, z.High) >= dedupOverlap {
			return true
		}
	}
	return false
}

// ProcessSignals runs a confluence pass over every configured symbol and,
// when notify is set, delivers each new signal to eligible subscribers.
func (s *Scanner) ProcessSignals(ctx context.Context, notify bool) []domain.Signal {
	var out []domain.Signal
	for _, symbol := range s.cfg.Symbols {
		sig := s.agg.GenerateSignal(ctx, symbol)
		if sig == nil {
			continue
		}
		out = append(out, *sig)
		if notify {
			s.notify(ctx, sig)
		}
	}
	return out
}

// notify resolves the signal's source pattern, filters subscribers through
// tier eligibility and fans the notification out. Recipients on a delayed
// tier are delivered by a background goroutine after their delay.
func (s *Scanner) notify(ctx context.Context, sig *domain.Signal) {
	pt := s.patternTypeOf(ctx, sig)

	subs, err := s.limiter.EligibleSubscribers(ctx, pt)
	if err != nil {
		s.log.Error().Err(err).Str("signal", sig.ID).Msg("eligibility filter failed")
		return
	}
	price := s.currentPrice(ctx, sig.Symbol)

	var immediate []notifier.Recipient
	delayed := make(map[time.Duration][]notifier.Recipient)
	for _, sub := range subs {
		if !s.limiter.Policy(sub).AllowsSymbol(sig.Symbol) {
			continue
		}
		r := notifier.Recipient{SubscriberID: sub.ID, Topic: sub.NtfyTopic}
		if d := s.limiter.NotificationDelay(sub); d > 0 {
			delayed[d] = append(delayed[d], r)
		} else {
			immediate = append(immediate, r)
		}
	}

	s.dispatch.NotifySignal(ctx, sig, pt, immediate, price)
	for d, batch := range delayed {
		s.deliverLater(sig, pt, batch, price, d)
	}
	s.pushSignal(ctx, sig, pt, price)
}

// deliverLater schedules a delayed fan-out. The parent context is not used:
// the delivery must outlive the scan cycle that scheduled it.
func (s *Scanner) deliverLater(sig *domain.Signal, pt domain.PatternType, batch []notifier.Recipient, price float64, delay time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sleep(delay)
		s.dispatch.NotifySignal(context.Background(), sig, pt, batch, price)
	}()
}

// pushSignal mirrors the notification to registered devices over FCM.
func (s *Scanner) pushSignal(ctx context.Context, sig *domain.Signal, pt domain.PatternType, price float64) {
	if s.push == nil || !s.push.Enabled() || s.tokens == nil {
		return
	}
	tokens := s.tokens.Tokens()
	if len(tokens) == 0 {
		return
	}
	msg := notifier.FormatSignal(sig, pt, price, 0)
	data := map[string]string{
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
		"direction": string(sig.Direction),
	}
	if err := s.push.SendMulticast(ctx, tokens, msg.Title, msg.Body, data); err != nil {
		s.log.Warn().Err(err).Str("signal", sig.ID).Msg("push delivery failed")
	}
}

// patternTypeOf finds the signal's source pattern among the symbol's active
// patterns. An empty type broadcasts past the tier pattern allowlist, so a
// failed lookup degrades to notifying everyone rather than no one.
func (s *Scanner) patternTypeOf(ctx context.Context, sig *domain.Signal) domain.PatternType {
	active, err := s.patterns.Active(ctx, sig.Symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("signal", sig.ID).Msg("pattern lookup failed")
		return ""
	}
	for _, p := range active {
		if p.ID == sig.PatternID {
			return p.Type
		}
	}
	return ""
}

// UpdatePatternStatuses applies the fill/invalidation policy and the
// per-timeframe expiry window to every active pattern. Returns the number
// of patterns transitioned.
func (s *Scanner) UpdatePatternStatuses(ctx context.Context) int {
	active, err := s.patterns.Active(ctx, "")
	if err != nil {
		s.log.Error().Err(err).Msg("active pattern listing failed")
		return 0
	}

	now := s.now()
	prices := make(map[string]float64)
	changed := 0
	for _, p := range active {
		price, ok := prices[p.Symbol]
		if !ok {
			price = s.currentPrice(ctx, p.Symbol)
			prices[p.Symbol] = price
		}

		status := p.Status
		if price > 0 {
			status = patterns.FillStatus(p, price)
		}
		if status == domain.PatternActive {
			age := now.Sub(time.UnixMilli(p.DetectedAt))
			if age > s.cfg.ExpiryFor(p.Timeframe) {
				status = domain.PatternExpired
			}
		}
		if status == p.Status {
			continue
		}

		var filledAt *time.Time
		if status == domain.PatternFilled {
			t := now
			filledAt = &t
		}
		if err := s.patterns.UpdateStatus(ctx, p.ID, status, filledAt); err != nil {
			s.log.Error().Err(err).Str("pattern", p.ID).Msg("status update failed")
			continue
		}
		changed++
		s.log.Debug().Str("pattern", p.ID).Str("symbol", p.Symbol).
			Str("status", string(status)).Msg("pattern transitioned")
	}
	return changed
}

// refreshPrice pulls the ticker and warms the price cache. Best effort.
func (s *Scanner) refreshPrice(ctx context.Context, symbol string) {
	if s.prices == nil {
		return
	}
	price, err := s.prices.LastPrice(ctx, symbol)
	if err != nil || price <= 0 {
		return
	}
	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, symbol, price); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("price cache write failed")
		}
	}
}

// currentPrice resolves the freshest known price: cache first, then the
// ticker, then the latest stored close. Zero when nothing is known.
func (s *Scanner) currentPrice(ctx context.Context, symbol string) float64 {
	if s.cache != nil {
		if price, err := s.cache.Price(ctx, symbol); err == nil && price > 0 {
			return price
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("price cache read failed")
		}
	}
	if s.prices != nil {
		if price, err := s.prices.LastPrice(ctx, symbol); err == nil && price > 0 {
			if s.cache != nil {
				_ = s.cache.SetPrice(ctx, symbol, price)
			}
			return price
		}
	}
	for _, tf := range s.cfg.Timeframes {
		series, err := s.candles.Latest(ctx, symbol, tf, 1)
		if err == nil && len(series) > 0 {
			return series[len(series)-1].Close
		}
	}
	return 0
}
