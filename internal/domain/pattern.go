package domain

import "time"

// PatternType names a detected price-action structure.
type PatternType string

const (
	PatternFVG            PatternType = "fvg"
	PatternOrderBlock     PatternType = "order_block"
	PatternLiquiditySweep PatternType = "liquidity_sweep"
)

// DisplayName returns the human-readable pattern name used in notifications.
func (pt PatternType) DisplayName() string {
	switch pt {
	case PatternFVG:
		return "FVG (Fair Value Gap)"
	case PatternOrderBlock:
		return "Order Block"
	case PatternLiquiditySweep:
		return "Liquidity Sweep"
	}
	return string(pt)
}

// Abbrev returns the short pattern tag used in notification titles.
func (pt PatternType) Abbrev() string {
	switch pt {
	case PatternFVG:
		return "FVG"
	case PatternOrderBlock:
		return "OB"
	case PatternLiquiditySweep:
		return "LS"
	}
	return "SIG"
}

// Direction is the bias of a pattern zone.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// PatternStatus tracks the lifecycle of a pattern zone. Geometry never
// changes after detection; only the status transitions.
type PatternStatus string

const (
	PatternActive      PatternStatus = "active"
	PatternFilled      PatternStatus = "filled"
	PatternInvalidated PatternStatus = "invalidated"
	PatternExpired     PatternStatus = "expired"
)

// Zone is a detector candidate before validation and persistence.
type Zone struct {
	Type       PatternType
	Direction  Direction
	Low        float64
	High       float64
	DetectedAt int64 // unix ms of the candle that completed the structure
}

// Size returns the zone height in price units.
func (z Zone) Size() float64 { return z.High - z.Low }

// Pattern is a persisted zone. zone_high >= zone_low always.
type Pattern struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Timeframe  Timeframe     `json:"timeframe"`
	Type       PatternType   `json:"patternType"`
	Direction  Direction     `json:"direction"`
	ZoneLow    float64       `json:"zoneLow"`
	ZoneHigh   float64       `json:"zoneHigh"`
	DetectedAt int64         `json:"detectedAt"`
	Status     PatternStatus `json:"status"`
	FilledAt   *time.Time    `json:"filledAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// ZoneSize returns the pattern zone height in price units.
func (p Pattern) ZoneSize() float64 { return p.ZoneHigh - p.ZoneLow }

// Overlap returns the fraction of the smaller zone covered by the overlap
// of [p.ZoneLow, p.ZoneHigh] and [low, high]. Used for detection dedup.
func (p Pattern) Overlap(low, high float64) float64 {
	lo := p.ZoneLow
	if low > lo {
		lo = low
	}
	hi := p.ZoneHigh
	if high < hi {
		hi = high
	}
	if hi <= lo {
		return 0
	}
	smaller := p.ZoneSize()
	if s := high - low; s < smaller {
		smaller = s
	}
	if smaller <= 0 {
		return 1
	}
	return (hi - lo) / smaller
}
