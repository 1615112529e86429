package domain

import "time"

// Timeframe identifies a candle interval, e.g. "1h".
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Timeframes lists all supported intervals in ascending duration.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

// TimeframePriority lists intervals from highest to lowest duration.
// Confluence signals are built from the highest aligned timeframe.
var TimeframePriority = []Timeframe{TF1d, TF4h, TF1h, TF15m, TF5m, TF1m}

// HigherTimeframes are the intervals that satisfy the HTF confluence gate.
var HigherTimeframes = []Timeframe{TF4h, TF1d}

var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// Duration returns the candle interval length, or zero for unknown timeframes.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// IsHigher reports whether tf is one of the designated higher timeframes.
func (tf Timeframe) IsHigher() bool {
	for _, h := range HigherTimeframes {
		if tf == h {
			return true
		}
	}
	return false
}

// Candle is a single OHLCV bar. Immutable once written; unique per
// (symbol, timeframe, timestamp).
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Timestamp int64     `json:"timestamp"` // open time, unix ms
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Body returns the signed candle body (close - open).
func (c Candle) Body() float64 { return c.Close - c.Open }

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool { return c.Close < c.Open }
