package patterns

import "cryptolens-backend/internal/domain"

// orderBlockWindow is the rolling window for the average body baseline.
const orderBlockWindow = 20

// orderBlockSearch is how many candles back to look for the opposing candle.
const orderBlockSearch = 3

// OrderBlockDetector finds the last opposing candle before a strong
// directional move. The zone direction follows the move, not the order-block
// candle's own color.
type OrderBlockDetector struct {
	cfg Config
}

func NewOrderBlockDetector(cfg Config) *OrderBlockDetector {
	return &OrderBlockDetector{cfg: cfg}
}

func (d *OrderBlockDetector) Type() domain.PatternType { return domain.PatternOrderBlock }

func (d *OrderBlockDetector) Detect(candles []domain.Candle) []domain.Zone {
	if len(candles) < orderBlockWindow+1 {
		return nil
	}

	bodies := make([]float64, len(candles))
	for i, c := range candles {
		b := c.Body()
		if b < 0 {
			b = -b
		}
		bodies[i] = b
	}

	var zones []domain.Zone
	for i := orderBlockWindow; i < len(candles); i++ {
		avg := rollingMean(bodies, i, orderBlockWindow)
		if avg == 0 || bodies[i] <= avg*d.cfg.OrderBlockStrength {
			continue
		}

		move := candles[i]
		switch {
		case move.IsBullish():
			if z, ok := d.lastOpposing(candles, i, domain.Bullish); ok {
				zones = append(zones, z)
			}
		case move.IsBearish():
			if z, ok := d.lastOpposing(candles, i, domain.Bearish); ok {
				zones = append(zones, z)
			}
		}
	}
	return zones
}

// lastOpposing walks back from the strong move looking for the most recent
// candle of the opposite color and turns its body into the zone.
func (d *OrderBlockDetector) lastOpposing(candles []domain.Candle, moveIdx int, dir domain.Direction) (domain.Zone, bool) {
	for j := moveIdx - 1; j >= moveIdx-orderBlockSearch && j >= 0; j-- {
		c := candles[j]
		opposing := (dir == domain.Bullish && c.IsBearish()) ||
			(dir == domain.Bearish && c.IsBullish())
		if !opposing {
			continue
		}

		low, high := c.Open, c.Close
		if low > high {
			low, high = high, low
		}
		if !d.cfg.Tradeable(low, high, c.Close) {
			continue
		}
		return domain.Zone{
			Type:       domain.PatternOrderBlock,
			Direction:  dir,
			Low:        low,
			High:       high,
			DetectedAt: candles[moveIdx].Timestamp,
		}, true
	}
	return domain.Zone{}, false
}

func rollingMean(values []float64, end, window int) float64 {
	start := end - window
	if start < 0 {
		return 0
	}
	sum := 0.0
	for i := start; i < end; i++ {
		sum += values[i]
	}
	return sum / float64(window)
}
