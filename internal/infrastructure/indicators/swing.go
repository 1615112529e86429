package indicators

// Swing marks a local price extreme.
type Swing struct {
	Index int
	Price float64
}

// FindSwingLows identifies candles whose low is strictly below the lows of
// the lookback candles on each side.
func FindSwingLows(lows []float64, lookback int) []Swing {
	var swings []Swing
	for i := lookback; i < len(lows)-lookback; i++ {
		cur := lows[i]
		isSwing := true
		for j := 1; j <= lookback; j++ {
			if lows[i-j] <= cur || lows[i+j] <= cur {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, Swing{Index: i, Price: cur})
		}
	}
	return swings
}

// FindSwingHighs identifies candles whose high is strictly above the highs
// of the lookback candles on each side.
func FindSwingHighs(highs []float64, lookback int) []Swing {
	var swings []Swing
	for i := lookback; i < len(highs)-lookback; i++ {
		cur := highs[i]
		isSwing := true
		for j := 1; j <= lookback; j++ {
			if highs[i-j] >= cur || highs[i+j] >= cur {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, Swing{Index: i, Price: cur})
		}
	}
	return swings
}

// NearestSwingAbove returns the lowest swing high strictly above price,
// or 0 when none exists. Used as the opposing liquidity target for longs.
func NearestSwingAbove(swings []Swing, price float64) float64 {
	best := 0.0
	for _, s := range swings {
		if s.Price > price && (best == 0 || s.Price < best) {
			best = s.Price
		}
	}
	return best
}

// NearestSwingBelow returns the highest swing low strictly below price,
// or 0 when none exists.
func NearestSwingBelow(swings []Swing, price float64) float64 {
	best := 0.0
	for _, s := range swings {
		if s.Price < price && s.Price > best {
			best = s.Price
		}
	}
	return best
}
