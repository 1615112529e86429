// Package patterns holds the price-action structure detectors. Detectors are
// pure over the candle series they are given; validation, dedup and
// persistence belong to the scanner.
package patterns

import "cryptolens-backend/internal/domain"

// Config carries the geometry thresholds shared by the detectors.
type Config struct {
	// MinZoneSizePct discards zones smaller than this percentage of price.
	MinZoneSizePct float64
	// OrderBlockStrength is the body-vs-rolling-mean multiplier that
	// qualifies a move as strong.
	OrderBlockStrength float64
	// SweepNoisePct is the minimum pierce beyond a swing level, as a
	// percentage of the swing price.
	SweepNoisePct float64
	// SwingLookback is the symmetric window for swing point detection.
	SwingLookback int
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinZoneSizePct:     0.1,
		OrderBlockStrength: 1.5,
		SweepNoisePct:      0.02,
		SwingLookback:      3,
	}
}

// Detector maps a candle series to zero or more candidate zones.
type Detector interface {
	Type() domain.PatternType
	Detect(candles []domain.Candle) []domain.Zone
}

// All returns one detector per supported pattern type.
func All(cfg Config) []Detector {
	return []Detector{
		NewFVGDetector(cfg),
		NewOrderBlockDetector(cfg),
		NewLiquiditySweepDetector(cfg),
	}
}

// Tradeable reports whether a zone is wide enough to trade at the given
// reference price. Filters noise-level gaps.
func (c Config) Tradeable(low, high, price float64) bool {
	if price <= 0 || high <= low {
		return false
	}
	return (high-low)/price*100 >= c.MinZoneSizePct
}

// FillStatus applies the fill/invalidation policy to an active pattern at
// the current price. Thresholds scale with the pattern's own zone size, so
// wider zones tolerate proportionally more drift.
func FillStatus(p domain.Pattern, currentPrice float64) domain.PatternStatus {
	size := p.ZoneSize()
	switch p.Direction {
	case domain.Bullish:
		if currentPrice < p.ZoneLow-size {
			return domain.PatternInvalidated
		}
		if currentPrice > p.ZoneHigh+2*size {
			return domain.PatternFilled
		}
	case domain.Bearish:
		if currentPrice > p.ZoneHigh+size {
			return domain.PatternInvalidated
		}
		if currentPrice < p.ZoneLow-2*size {
			return domain.PatternFilled
		}
	}
	return domain.PatternActive
}
