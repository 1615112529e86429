package levels

import (
	"math"
	"testing"

	"cryptolens-backend/internal/domain"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func testCalculator() *Calculator {
	return NewCalculator(Config{DefaultRR: 3, MinRiskPct: 0.5})
}

func TestComputeFVG(t *testing.T) {
	c := testCalculator()

	t.Run("bullish with ATR and no swing", func(t *testing.T) {
		// Zone [100, 102], ATR 2 -> buffer 1, entry 102, stop 99.
		lv := c.Compute(domain.PatternFVG, 100, 102, domain.Bullish, 2, 0, 0)

		if !approx(lv.Entry, 102) {
			t.Errorf("entry = %v, want 102", lv.Entry)
		}
		if !approx(lv.StopLoss, 99) {
			t.Errorf("stop = %v, want 99", lv.StopLoss)
		}
		if !approx(lv.Risk, 3) {
			t.Errorf("risk = %v, want 3", lv.Risk)
		}
		if !approx(lv.TakeProfit1, 105) || !approx(lv.TakeProfit2, 108) || !approx(lv.TakeProfit3, 111) {
			t.Errorf("tps = %v/%v/%v, want 105/108/111",
				lv.TakeProfit1, lv.TakeProfit2, lv.TakeProfit3)
		}
	})

	t.Run("bearish mirrors bullish", func(t *testing.T) {
		lv := c.Compute(domain.PatternFVG, 100, 102, domain.Bearish, 2, 0, 0)

		if !approx(lv.Entry, 100) {
			t.Errorf("entry = %v, want 100", lv.Entry)
		}
		if !approx(lv.StopLoss, 103) {
			t.Errorf("stop = %v, want 103", lv.StopLoss)
		}
		if !approx(lv.TakeProfit3, 91) {
			t.Errorf("tp3 = %v, want 91", lv.TakeProfit3)
		}
	})

	t.Run("zone fallback when ATR unavailable", func(t *testing.T) {
		// Buffer falls back to half the zone size.
		lv := c.Compute(domain.PatternFVG, 100, 102, domain.Bullish, 0, 0, 0)

		if !approx(lv.StopLoss, 99) {
			t.Errorf("stop = %v, want 99 (zone low minus half zone)", lv.StopLoss)
		}
	})

	t.Run("swing high caps and anchors targets", func(t *testing.T) {
		lv := c.Compute(domain.PatternFVG, 100, 102, domain.Bullish, 2, 104, 0)

		// Swing 104 is nearer than the 1:1 target 105.
		if !approx(lv.TakeProfit1, 104) {
			t.Errorf("tp1 = %v, want capped at swing 104", lv.TakeProfit1)
		}
		if !approx(lv.TakeProfit2, 104) {
			t.Errorf("tp2 = %v, want swing 104", lv.TakeProfit2)
		}
		if !approx(lv.TakeProfit3, 105) {
			t.Errorf("tp3 = %v, want swing + half the swing distance", lv.TakeProfit3)
		}
	})
}

func TestComputeOrderBlock(t *testing.T) {
	c := testCalculator()

	// Zone [100, 102], ATR 2 -> buffer 0.6, entry at midpoint 101.
	lv := c.Compute(domain.PatternOrderBlock, 100, 102, domain.Bullish, 2, 0, 0)

	if !approx(lv.Entry, 101) {
		t.Errorf("entry = %v, want midpoint 101", lv.Entry)
	}
	if !approx(lv.StopLoss, 99.4) {
		t.Errorf("stop = %v, want 99.4", lv.StopLoss)
	}
	if !approx(lv.Risk, 1.6) {
		t.Errorf("risk = %v, want 1.6", lv.Risk)
	}

	withSwing := c.Compute(domain.PatternOrderBlock, 100, 102, domain.Bullish, 2, 106, 0)
	if !approx(withSwing.TakeProfit2, 106) {
		t.Errorf("tp2 = %v, want swing 106", withSwing.TakeProfit2)
	}
	if !approx(withSwing.TakeProfit3, 107.6) {
		t.Errorf("tp3 = %v, want swing plus risk", withSwing.TakeProfit3)
	}
}

func TestComputeLiquiditySweep(t *testing.T) {
	c := testCalculator()

	// Zone [89.5, 90]: wick at 89.5, reclaimed level 90. ATR 1 -> buffer 0.2.
	lv := c.Compute(domain.PatternLiquiditySweep, 89.5, 90, domain.Bullish, 1, 0, 0)

	if !approx(lv.Entry, 90) {
		t.Errorf("entry = %v, want reclaimed level 90", lv.Entry)
	}
	if !approx(lv.StopLoss, 89.3) {
		t.Errorf("stop = %v, want 89.3", lv.StopLoss)
	}
	risk := lv.Risk
	if !approx(lv.TakeProfit1, 90+risk*1.5) || !approx(lv.TakeProfit2, 90+risk*2.5) || !approx(lv.TakeProfit3, 90+risk*4) {
		t.Errorf("tps = %v/%v/%v, want 1.5R/2.5R/4R", lv.TakeProfit1, lv.TakeProfit2, lv.TakeProfit3)
	}
	if !approx(lv.RiskReward1, 1.5) || !approx(lv.RiskReward2, 2.5) || !approx(lv.RiskReward3, 4) {
		t.Errorf("rr = %v/%v/%v, want 1.5/2.5/4", lv.RiskReward1, lv.RiskReward2, lv.RiskReward3)
	}
}

func TestRiskRewardIdentity(t *testing.T) {
	c := testCalculator()

	cases := []struct {
		pt          domain.PatternType
		low, high   float64
		dir         domain.Direction
		atr, sh, sl float64
	}{
		{domain.PatternFVG, 100, 102, domain.Bullish, 2, 0, 0},
		{domain.PatternFVG, 100, 102, domain.Bearish, 0, 0, 97},
		{domain.PatternOrderBlock, 50, 51, domain.Bullish, 0.8, 55, 0},
		{domain.PatternOrderBlock, 50, 51, domain.Bearish, 0, 0, 0},
		{domain.PatternLiquiditySweep, 89.5, 90, domain.Bullish, 1, 95, 0},
		{domain.PatternLiquiditySweep, 102, 102.6, domain.Bearish, 0, 0, 98},
	}

	for _, tc := range cases {
		lv := c.Compute(tc.pt, tc.low, tc.high, tc.dir, tc.atr, tc.sh, tc.sl)

		if lv.Risk <= 0 {
			t.Fatalf("%s %s: risk = %v, want > 0", tc.pt, tc.dir, lv.Risk)
		}
		if !approx(lv.Risk, math.Abs(lv.Entry-lv.StopLoss)) {
			t.Errorf("%s %s: risk %v != |entry-stop| %v",
				tc.pt, tc.dir, lv.Risk, math.Abs(lv.Entry-lv.StopLoss))
		}
		for i, pair := range []struct{ tp, rr float64 }{
			{lv.TakeProfit1, lv.RiskReward1},
			{lv.TakeProfit2, lv.RiskReward2},
			{lv.TakeProfit3, lv.RiskReward3},
		} {
			want := math.Abs(pair.tp-lv.Entry) / lv.Risk
			if !approx(pair.rr, want) {
				t.Errorf("%s %s: rr%d = %v, want %v", tc.pt, tc.dir, i+1, pair.rr, want)
			}
		}
	}
}

func TestMinRiskFloor(t *testing.T) {
	c := NewCalculator(Config{DefaultRR: 3, MinRiskPct: 1})

	// Tiny zone, tiny ATR: natural risk far below 1% of entry.
	lv := c.Compute(domain.PatternFVG, 100, 100.2, domain.Bullish, 0.1, 0, 0)

	if got := lv.Risk / lv.Entry * 100; got < 1-eps {
		t.Errorf("risk pct = %v, want >= 1", got)
	}
	// The floor moves the stop, never the entry.
	if !approx(lv.Entry, 100.2) {
		t.Errorf("entry = %v, want unchanged 100.2", lv.Entry)
	}

	// A naturally wide stop is left alone.
	wide := c.Compute(domain.PatternFVG, 100, 102, domain.Bullish, 4, 0, 0)
	if !approx(wide.StopLoss, 98) {
		t.Errorf("stop = %v, want natural 98", wide.StopLoss)
	}

	short := c.Compute(domain.PatternFVG, 100, 100.2, domain.Bearish, 0.1, 0, 0)
	if got := short.Risk / short.Entry * 100; got < 1-eps {
		t.Errorf("short risk pct = %v, want >= 1", got)
	}
	if short.StopLoss <= short.Entry {
		t.Errorf("short stop %v not above entry %v", short.StopLoss, short.Entry)
	}
}
