package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"cryptolens-backend/internal/domain"
)

// InMemoryPatternRepository is a mutex-guarded pattern store. Used by tests
// and by deployments that run without Postgres.
type InMemoryPatternRepository struct {
	mu       sync.RWMutex
	patterns []domain.Pattern
}

func NewInMemoryPatternRepository() *InMemoryPatternRepository {
	return &InMemoryPatternRepository{}
}

func (r *InMemoryPatternRepository) Create(_ context.Context, p *domain.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, *p)
	return nil
}

func (r *InMemoryPatternRepository) ActiveOverlapping(_ context.Context, symbol string, tf domain.Timeframe, pt domain.PatternType, dir domain.Direction, low, high float64) ([]domain.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Pattern
	for _, p := range r.patterns {
		if p.Status != domain.PatternActive || p.Symbol != symbol || p.Timeframe != tf ||
			p.Type != pt || p.Direction != dir {
			continue
		}
		if p.ZoneLow <= high && p.ZoneHigh >= low {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *InMemoryPatternRepository) LatestActive(_ context.Context, symbol string, tf domain.Timeframe) (*domain.Pattern, error) {
	return r.latest(symbol, tf, "")
}

func (r *InMemoryPatternRepository) LatestActiveDirectional(_ context.Context, symbol string, tf domain.Timeframe, dir domain.Direction) (*domain.Pattern, error) {
	return r.latest(symbol, tf, dir)
}

func (r *InMemoryPatternRepository) latest(symbol string, tf domain.Timeframe, dir domain.Direction) (*domain.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *domain.Pattern
	for i := range r.patterns {
		p := &r.patterns[i]
		if p.Status != domain.PatternActive || p.Symbol != symbol || p.Timeframe != tf {
			continue
		}
		if dir != "" && p.Direction != dir {
			continue
		}
		if best == nil || p.DetectedAt > best.DetectedAt {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *InMemoryPatternRepository) Active(_ context.Context, symbol string) ([]domain.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Pattern
	for _, p := range r.patterns {
		if p.Status != domain.PatternActive {
			continue
		}
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *InMemoryPatternRepository) UpdateStatus(_ context.Context, id string, status domain.PatternStatus, filledAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.patterns {
		if r.patterns[i].ID == id {
			r.patterns[i].Status = status
			r.patterns[i].FilledAt = filledAt
			return nil
		}
	}
	return domain.ErrNotFound
}

// InMemorySignalRepository stores signals in creation order.
type InMemorySignalRepository struct {
	mu      sync.RWMutex
	signals []domain.Signal
}

func NewInMemorySignalRepository() *InMemorySignalRepository {
	return &InMemorySignalRepository{}
}

func (r *InMemorySignalRepository) Create(_ context.Context, s *domain.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, *s)
	return nil
}

func (r *InMemorySignalRepository) LastCreated(_ context.Context, symbol string, dir domain.SignalDirection) (*domain.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *domain.Signal
	for i := range r.signals {
		s := &r.signals[i]
		if s.Symbol != symbol || s.Direction != dir {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *InMemorySignalRepository) MarkNotified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.signals {
		if r.signals[i].ID != id {
			continue
		}
		if r.signals[i].Status == domain.SignalNotified {
			return nil
		}
		r.signals[i].Status = domain.SignalNotified
		t := at
		r.signals[i].NotifiedAt = &t
		return nil
	}
	return domain.ErrNotFound
}

func (r *InMemorySignalRepository) Pending(_ context.Context) ([]domain.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Signal
	for _, s := range r.signals {
		if s.Status == domain.SignalPending {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *InMemorySignalRepository) Recent(_ context.Context, limit int) ([]domain.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Signal, len(r.signals))
	copy(out, r.signals)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InMemoryCandleRepository keys candles by (symbol, timeframe, timestamp).
type InMemoryCandleRepository struct {
	mu      sync.RWMutex
	candles map[string][]domain.Candle // symbol|tf -> ascending time
}

func NewInMemoryCandleRepository() *InMemoryCandleRepository {
	return &InMemoryCandleRepository{candles: make(map[string][]domain.Candle)}
}

func candleKey(symbol string, tf domain.Timeframe) string {
	return symbol + "|" + string(tf)
}

func (r *InMemoryCandleRepository) Upsert(_ context.Context, candles []domain.Candle) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, c := range candles {
		key := candleKey(c.Symbol, c.Timeframe)
		series := r.candles[key]
		idx := sort.Search(len(series), func(i int) bool {
			return series[i].Timestamp >= c.Timestamp
		})
		if idx < len(series) && series[idx].Timestamp == c.Timestamp {
			series[idx] = c
		} else {
			series = append(series, domain.Candle{})
			copy(series[idx+1:], series[idx:])
			series[idx] = c
			inserted++
		}
		r.candles[key] = series
	}
	return inserted, nil
}

func (r *InMemoryCandleRepository) Latest(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	series := r.candles[candleKey(symbol, tf)]
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]domain.Candle, len(series))
	copy(out, series)
	return out, nil
}

// InMemorySubscriberRepository serves a fixed subscriber projection.
type InMemorySubscriberRepository struct {
	mu   sync.RWMutex
	subs []domain.Subscriber
}

func NewInMemorySubscriberRepository(subs ...domain.Subscriber) *InMemorySubscriberRepository {
	return &InMemorySubscriberRepository{subs: subs}
}

func (r *InMemorySubscriberRepository) All(_ context.Context) ([]domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Subscriber, len(r.subs))
	copy(out, r.subs)
	return out, nil
}

func (r *InMemorySubscriberRepository) ExpiringBetween(_ context.Context, from, to time.Time) ([]domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Subscriber
	for _, s := range r.subs {
		if s.ExpiresAt == nil {
			continue
		}
		if !s.ExpiresAt.Before(from) && s.ExpiresAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

// InMemoryNotificationRepository records outcomes and summaries.
type InMemoryNotificationRepository struct {
	mu        sync.RWMutex
	outcomes  []domain.NotificationOutcome
	summaries []domain.Notification
}

func NewInMemoryNotificationRepository() *InMemoryNotificationRepository {
	return &InMemoryNotificationRepository{}
}

func (r *InMemoryNotificationRepository) RecordOutcomes(_ context.Context, outcomes []domain.NotificationOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcomes...)
	return nil
}

func (r *InMemoryNotificationRepository) RecordSummary(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, *n)
	return nil
}

func (r *InMemoryNotificationRepository) SuccessCountSince(_ context.Context, subscriberID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, o := range r.outcomes {
		if o.SubscriberID == subscriberID && o.SignalID != "" && o.Success && !o.SentAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Outcomes returns a copy of every recorded outcome.
func (r *InMemoryNotificationRepository) Outcomes() []domain.NotificationOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.NotificationOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Summaries returns a copy of every recorded summary.
func (r *InMemoryNotificationRepository) Summaries() []domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Notification, len(r.summaries))
	copy(out, r.summaries)
	return out
}

// InMemoryPriceCache is the process-local fallback when redis is disabled.
type InMemoryPriceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewInMemoryPriceCache() *InMemoryPriceCache {
	return &InMemoryPriceCache{prices: make(map[string]float64)}
}

func (c *InMemoryPriceCache) SetPrice(_ context.Context, symbol string, price float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = price
	return nil
}

func (c *InMemoryPriceCache) Price(_ context.Context, symbol string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p, nil
}
