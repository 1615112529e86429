package scanner

import "cryptolens-backend/internal/domain"

// Rollup aggregates an ascending candle series into target-interval buckets
// aligned to the epoch. Open comes from the first candle in a bucket, close
// from the last, high/low are the extremes and volume is summed. The final
// bucket may be partial, matching how exchanges report the in-progress
// candle.
func Rollup(base []domain.Candle, target domain.Timeframe) []domain.Candle {
	bucketMs := target.Duration().Milliseconds()
	if len(base) == 0 || bucketMs == 0 {
		return nil
	}
	if d := base[0].Timeframe.Duration(); d >= target.Duration() {
		return nil
	}

	var out []domain.Candle
	for _, c := range base {
		start := c.Timestamp - c.Timestamp%bucketMs
		if len(out) == 0 || out[len(out)-1].Timestamp != start {
			out = append(out, domain.Candle{
				Symbol:    c.Symbol,
				Timeframe: target,
				Timestamp: start,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			})
			continue
		}
		cur := &out[len(out)-1]
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	return out
}
