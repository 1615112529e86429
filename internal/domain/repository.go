package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// CandleSource provides ascending-time OHLCV series per (symbol, timeframe).
// Symbols use the "BASE/QUOTE" format.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// CandleRepository stores immutable candles keyed by (symbol, timeframe, timestamp).
type CandleRepository interface {
	Upsert(ctx context.Context, candles []Candle) (int, error)
	// Latest returns up to limit most recent candles in ascending time order.
	Latest(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// PatternRepository stores detected pattern zones. Status updates are
// idempotent: re-setting the current status is a no-op.
type PatternRepository interface {
	Create(ctx context.Context, p *Pattern) error
	// ActiveOverlapping returns active patterns with the same
	// symbol/timeframe/type/direction whose zone overlaps [low, high].
	ActiveOverlapping(ctx context.Context, symbol string, tf Timeframe, pt PatternType, dir Direction, low, high float64) ([]Pattern, error)
	// LatestActive returns the most recently detected active pattern for the
	// symbol/timeframe, or ErrNotFound.
	LatestActive(ctx context.Context, symbol string, tf Timeframe) (*Pattern, error)
	// LatestActiveDirectional is LatestActive restricted to one direction.
	LatestActiveDirectional(ctx context.Context, symbol string, tf Timeframe, dir Direction) (*Pattern, error)
	// Active returns all active patterns, optionally restricted to a symbol
	// (empty string = all symbols).
	Active(ctx context.Context, symbol string) ([]Pattern, error)
	UpdateStatus(ctx context.Context, id string, status PatternStatus, filledAt *time.Time) error
}

// SignalRepository stores generated trade signals.
type SignalRepository interface {
	Create(ctx context.Context, s *Signal) error
	// LastCreated returns the most recent signal for (symbol, direction)
	// regardless of status, or ErrNotFound. Drives the cooldown check.
	LastCreated(ctx context.Context, symbol string, dir SignalDirection) (*Signal, error)
	// MarkNotified advances pending -> notified; a no-op when already notified.
	MarkNotified(ctx context.Context, id string, at time.Time) error
	Pending(ctx context.Context) ([]Signal, error)
	Recent(ctx context.Context, limit int) ([]Signal, error)
}

// SubscriberRepository exposes the read-only user+subscription projection.
type SubscriberRepository interface {
	All(ctx context.Context) ([]Subscriber, error)
	// ExpiringBetween returns subscribers whose subscription expires inside
	// [from, to). Used for expiry warning notifications.
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]Subscriber, error)
}

// NotificationRepository records delivery outcomes and summaries.
type NotificationRepository interface {
	RecordOutcomes(ctx context.Context, outcomes []NotificationOutcome) error
	RecordSummary(ctx context.Context, n *Notification) error
	// SuccessCountSince counts successful signal deliveries to a subscriber
	// since the given instant. Broadcast outcomes carry no signal id and are
	// not counted. Drives per-tier daily quotas.
	SuccessCountSince(ctx context.Context, subscriberID string, since time.Time) (int, error)
}

// PriceCache holds the latest known price per symbol. Implementations must
// tolerate a cold cache by returning ErrNotFound.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64) error
	Price(ctx context.Context, symbol string) (float64, error)
}
