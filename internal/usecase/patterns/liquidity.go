package patterns

import (
	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/infrastructure/indicators"
)

const (
	// sweepScanWindow limits detection to the most recent candles.
	sweepScanWindow = 10
	// sweepMinAge / sweepMaxAge bound how far back the swept swing may sit.
	sweepMinAge = 3
	sweepMaxAge = 50
)

// LiquiditySweepDetector finds stop hunts: a wick that pierces a prior swing
// extreme beyond a noise buffer and closes back across it within the same
// candle.
type LiquiditySweepDetector struct {
	cfg Config
}

func NewLiquiditySweepDetector(cfg Config) *LiquiditySweepDetector {
	return &LiquiditySweepDetector{cfg: cfg}
}

func (d *LiquiditySweepDetector) Type() domain.PatternType { return domain.PatternLiquiditySweep }

func (d *LiquiditySweepDetector) Detect(candles []domain.Candle) []domain.Zone {
	if len(candles) < 2*d.cfg.SwingLookback+sweepMinAge {
		return nil
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	swingHighs := indicators.FindSwingHighs(highs, d.cfg.SwingLookback)
	swingLows := indicators.FindSwingLows(lows, d.cfg.SwingLookback)

	start := len(candles) - sweepScanWindow
	if start < 0 {
		start = 0
	}

	var zones []domain.Zone
	for i := start; i < len(candles); i++ {
		cur := candles[i]

		// Bullish sweep: wick below a prior swing low, close reclaims it.
		for _, sw := range swingLows {
			if sw.Index >= i-sweepMinAge || sw.Index < i-sweepMaxAge {
				continue
			}
			buffer := sw.Price * d.cfg.SweepNoisePct / 100
			if cur.Low < sw.Price-buffer && cur.Close > sw.Price {
				if d.cfg.Tradeable(cur.Low, sw.Price, cur.Close) {
					zones = append(zones, domain.Zone{
						Type:       domain.PatternLiquiditySweep,
						Direction:  domain.Bullish,
						Low:        cur.Low,
						High:       sw.Price,
						DetectedAt: cur.Timestamp,
					})
				}
				break // one sweep per candle
			}
		}

		// Bearish sweep: wick above a prior swing high, close loses it.
		for _, sw := range swingHighs {
			if sw.Index >= i-sweepMinAge || sw.Index < i-sweepMaxAge {
				continue
			}
			buffer := sw.Price * d.cfg.SweepNoisePct / 100
			if cur.High > sw.Price+buffer && cur.Close < sw.Price {
				if d.cfg.Tradeable(sw.Price, cur.High, cur.Close) {
					zones = append(zones, domain.Zone{
						Type:       domain.PatternLiquiditySweep,
						Direction:  domain.Bearish,
						Low:        sw.Price,
						High:       cur.High,
						DetectedAt: cur.Timestamp,
					})
				}
				break
			}
		}
	}
	return zones
}
