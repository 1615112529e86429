// Package levels computes risk-managed trade levels for a pattern zone.
// Levels are a pure function of zone geometry plus ATR and swing context;
// they are recomputed on demand and never stored as authoritative state.
package levels

import (
	"math"

	"cryptolens-backend/internal/domain"
)

// Config carries the risk policy shared by all pattern types.
type Config struct {
	// DefaultRR is the reward multiple for the extended target when no
	// opposing swing point is available.
	DefaultRR float64
	// MinRiskPct floors the stop distance as a percentage of entry. When
	// the natural stop is tighter the stop is widened; entry never moves.
	MinRiskPct float64
}

// Calculator maps pattern zones to trading levels.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute returns entry, stop and three take-profit levels for the zone.
// atr may be zero (unavailable); the buffer then falls back to a fraction
// of the zone size. swingHigh/swingLow are the nearest opposing swing
// points, zero when none exists.
func (c *Calculator) Compute(
	patternType domain.PatternType,
	zoneLow, zoneHigh float64,
	direction domain.Direction,
	atr, swingHigh, swingLow float64,
) domain.TradingLevels {
	switch patternType {
	case domain.PatternOrderBlock:
		return c.orderBlock(zoneLow, zoneHigh, direction, atr, swingHigh, swingLow)
	case domain.PatternLiquiditySweep:
		return c.liquiditySweep(zoneLow, zoneHigh, direction, atr, swingHigh, swingLow)
	default:
		return c.fvg(zoneLow, zoneHigh, direction, atr, swingHigh, swingLow)
	}
}

// fvg enters at the zone edge nearer price continuation and stops beyond
// the opposite edge. The full gap plus buffer has to fail before the idea
// is wrong.
func (c *Calculator) fvg(zoneLow, zoneHigh float64, direction domain.Direction, atr, swingHigh, swingLow float64) domain.TradingLevels {
	buffer := stopBuffer(atr, zoneHigh-zoneLow, 0.5)

	if direction == domain.Bullish {
		entry := zoneHigh
		stop := c.floorStop(entry, zoneLow-buffer, direction)
		risk := entry - stop

		var tp1, tp2, tp3 float64
		if swingHigh > entry {
			tp1 = math.Min(entry+risk, swingHigh)
			tp2 = swingHigh
			tp3 = swingHigh + (swingHigh-entry)*0.5
		} else {
			tp1 = entry + risk
			tp2 = entry + risk*2
			tp3 = entry + risk*c.cfg.DefaultRR
		}
		return build(entry, stop, tp1, tp2, tp3)
	}

	entry := zoneLow
	stop := c.floorStop(entry, zoneHigh+buffer, direction)
	risk := stop - entry

	var tp1, tp2, tp3 float64
	if swingLow > 0 && swingLow < entry {
		tp1 = math.Max(entry-risk, swingLow)
		tp2 = swingLow
		tp3 = swingLow - (entry-swingLow)*0.5
	} else {
		tp1 = entry - risk
		tp2 = entry - risk*2
		tp3 = entry - risk*c.cfg.DefaultRR
	}
	return build(entry, stop, tp1, tp2, tp3)
}

// orderBlock enters at the 50% level of the block and stops beyond the
// zone edge with a tighter buffer than an FVG.
func (c *Calculator) orderBlock(zoneLow, zoneHigh float64, direction domain.Direction, atr, swingHigh, swingLow float64) domain.TradingLevels {
	buffer := stopBuffer(atr, zoneHigh-zoneLow, 0.3)
	entry := (zoneLow + zoneHigh) / 2

	if direction == domain.Bullish {
		stop := c.floorStop(entry, zoneLow-buffer, direction)
		risk := entry - stop

		var tp1, tp2, tp3 float64
		if swingHigh > entry {
			tp1 = entry + risk
			tp2 = swingHigh
			tp3 = swingHigh + risk
		} else {
			tp1 = entry + risk
			tp2 = entry + risk*2
			tp3 = entry + risk*c.cfg.DefaultRR
		}
		return build(entry, stop, tp1, tp2, tp3)
	}

	stop := c.floorStop(entry, zoneHigh+buffer, direction)
	risk := stop - entry

	var tp1, tp2, tp3 float64
	if swingLow > 0 && swingLow < entry {
		tp1 = entry - risk
		tp2 = swingLow
		tp3 = swingLow - risk
	} else {
		tp1 = entry - risk
		tp2 = entry - risk*2
		tp3 = entry - risk*c.cfg.DefaultRR
	}
	return build(entry, stop, tp1, tp2, tp3)
}

// liquiditySweep enters at the reclaimed level with the stop just past the
// sweep wick. The wick already marks the extreme, so the buffer is minimal
// and targets start at 1.5R.
func (c *Calculator) liquiditySweep(zoneLow, zoneHigh float64, direction domain.Direction, atr, swingHigh, swingLow float64) domain.TradingLevels {
	buffer := stopBuffer(atr, zoneHigh-zoneLow, 0.2)

	if direction == domain.Bullish {
		entry := zoneHigh
		stop := c.floorStop(entry, zoneLow-buffer, direction)
		risk := entry - stop

		var tp1, tp2, tp3 float64
		if swingHigh > entry {
			tp1 = entry + risk*1.5
			tp2 = swingHigh
			tp3 = swingHigh + (swingHigh-entry)*0.618
		} else {
			tp1 = entry + risk*1.5
			tp2 = entry + risk*2.5
			tp3 = entry + risk*4
		}
		return build(entry, stop, tp1, tp2, tp3)
	}

	entry := zoneLow
	stop := c.floorStop(entry, zoneHigh+buffer, direction)
	risk := stop - entry

	var tp1, tp2, tp3 float64
	if swingLow > 0 && swingLow < entry {
		tp1 = entry - risk*1.5
		tp2 = swingLow
		tp3 = swingLow - (entry-swingLow)*0.618
	} else {
		tp1 = entry - risk*1.5
		tp2 = entry - risk*2.5
		tp3 = entry - risk*4
	}
	return build(entry, stop, tp1, tp2, tp3)
}

// stopBuffer scales with volatility when ATR is known, else with the zone
// itself.
func stopBuffer(atr, zoneSize, factor float64) float64 {
	if atr > 0 {
		return atr * factor
	}
	return zoneSize * factor
}

// floorStop widens the stop when the natural stop distance is below the
// minimum risk percentage of entry. Entry placement is never changed.
func (c *Calculator) floorStop(entry, stop float64, direction domain.Direction) float64 {
	if entry <= 0 || c.cfg.MinRiskPct <= 0 {
		return stop
	}
	minRisk := entry * c.cfg.MinRiskPct / 100
	if math.Abs(entry-stop) >= minRisk {
		return stop
	}
	if direction == domain.Bullish {
		return entry - minRisk
	}
	return entry + minRisk
}

func build(entry, stop, tp1, tp2, tp3 float64) domain.TradingLevels {
	risk := math.Abs(entry - stop)
	lv := domain.TradingLevels{
		Entry:       entry,
		StopLoss:    stop,
		TakeProfit1: tp1,
		TakeProfit2: tp2,
		TakeProfit3: tp3,
		Risk:        risk,
	}
	if risk > 0 {
		lv.RiskReward1 = math.Abs(tp1-entry) / risk
		lv.RiskReward2 = math.Abs(tp2-entry) / risk
		lv.RiskReward3 = math.Abs(tp3-entry) / risk
	}
	return lv
}
