package patterns

import (
	"testing"

	"cryptolens-backend/internal/domain"
)

// sweepSeries builds 15 quiet candles with flat highs so no swing highs
// form, then lets the caller punch in the swing and the sweep.
func sweepSeries() []domain.Candle {
	candles := make([]domain.Candle, 15)
	for i := range candles {
		candles[i] = candle(int64(i+1)*1000, 92, 100, 91.5, 92.5)
	}
	return candles
}

func TestLiquiditySweepDetector(t *testing.T) {
	d := NewLiquiditySweepDetector(DefaultConfig())

	t.Run("bullish sweep of a prior swing low", func(t *testing.T) {
		candles := sweepSeries()
		candles[5].Low = 90 // swing low, neighbors sit at 91.5
		// Wick pierces 90 by far more than the noise buffer, close reclaims.
		candles[10].Low = 89.5
		candles[10].Open = 90.8
		candles[10].Close = 91

		got := d.Detect(candles)
		if len(got) != 1 {
			t.Fatalf("got %d zones, want 1: %+v", len(got), got)
		}
		z := got[0]
		if z.Type != domain.PatternLiquiditySweep || z.Direction != domain.Bullish {
			t.Errorf("got %s/%s, want liquidity_sweep/bullish", z.Type, z.Direction)
		}
		if z.Low != 89.5 || z.High != 90 {
			t.Errorf("zone = [%v, %v], want [wick 89.5, level 90]", z.Low, z.High)
		}
		if z.DetectedAt != candles[10].Timestamp {
			t.Errorf("DetectedAt = %d, want the sweep candle's timestamp", z.DetectedAt)
		}
	})

	t.Run("bearish sweep of a prior swing high", func(t *testing.T) {
		candles := sweepSeries()
		candles[5].High = 102 // swing high above the flat 100s
		candles[10].High = 102.6
		candles[10].Open = 101.5
		candles[10].Close = 101

		got := d.Detect(candles)
		if len(got) != 1 {
			t.Fatalf("got %d zones, want 1: %+v", len(got), got)
		}
		z := got[0]
		if z.Direction != domain.Bearish {
			t.Errorf("direction = %s, want bearish", z.Direction)
		}
		if z.Low != 102 || z.High != 102.6 {
			t.Errorf("zone = [%v, %v], want [level 102, wick 102.6]", z.Low, z.High)
		}
	})

	t.Run("pierce without reclaim is not a sweep", func(t *testing.T) {
		candles := sweepSeries()
		candles[5].Low = 90
		candles[10].Low = 89.5
		candles[10].Close = 89.8 // closes below the swept level

		if got := d.Detect(candles); len(got) != 0 {
			t.Fatalf("got %d zones, want 0: %+v", len(got), got)
		}
	})

	t.Run("pierce within the noise buffer ignored", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SweepNoisePct = 1 // buffer = 0.9 at price 90
		d := NewLiquiditySweepDetector(cfg)

		candles := sweepSeries()
		candles[5].Low = 90
		candles[10].Low = 89.5 // only 0.5 below, inside the buffer
		candles[10].Close = 91

		if got := d.Detect(candles); len(got) != 0 {
			t.Fatalf("got %d zones, want 0: %+v", len(got), got)
		}
	})

	t.Run("swing too recent to sweep", func(t *testing.T) {
		candles := sweepSeries()
		// A pierce two candles after the candidate low lands inside its
		// confirmation window, so no sweepable level exists yet.
		candles[5].Low = 90
		candles[7].Low = 89.5
		candles[7].Close = 91

		if got := d.Detect(candles); len(got) != 0 {
			t.Fatalf("got %d zones, want 0: %+v", len(got), got)
		}
	})

	t.Run("series too short", func(t *testing.T) {
		if got := d.Detect(sweepSeries()[:6]); got != nil {
			t.Fatalf("got %+v, want nil", got)
		}
	})
}
