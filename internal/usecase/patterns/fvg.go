package patterns

import "cryptolens-backend/internal/domain"

// FVGDetector finds fair value gaps (imbalances): a three-candle window
// where the middle candle's impulse leaves a gap between the first candle
// and the third. Price tends to revisit these gaps.
type FVGDetector struct {
	cfg Config
}

func NewFVGDetector(cfg Config) *FVGDetector {
	return &FVGDetector{cfg: cfg}
}

func (d *FVGDetector) Type() domain.PatternType { return domain.PatternFVG }

func (d *FVGDetector) Detect(candles []domain.Candle) []domain.Zone {
	if len(candles) < 3 {
		return nil
	}

	var zones []domain.Zone
	for i := 2; i < len(candles); i++ {
		c1 := candles[i-2]
		c3 := candles[i]

		// Bullish gap: c1 high never reaches c3 low.
		if c1.High < c3.Low {
			if d.cfg.Tradeable(c1.High, c3.Low, c3.Close) {
				zones = append(zones, domain.Zone{
					Type:       domain.PatternFVG,
					Direction:  domain.Bullish,
					Low:        c1.High,
					High:       c3.Low,
					DetectedAt: c3.Timestamp,
				})
			}
		}

		// Bearish gap: c1 low stays above c3 high.
		if c1.Low > c3.High {
			if d.cfg.Tradeable(c3.High, c1.Low, c3.Close) {
				zones = append(zones, domain.Zone{
					Type:       domain.PatternFVG,
					Direction:  domain.Bearish,
					Low:        c3.High,
					High:       c1.Low,
					DetectedAt: c3.Timestamp,
				})
			}
		}
	}
	return zones
}
