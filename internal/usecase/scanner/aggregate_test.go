package scanner

import (
	"testing"

	"cryptolens-backend/internal/domain"
)

func minuteCandle(ts int64, o, h, l, c, v float64) domain.Candle {
	return domain.Candle{
		Symbol: testSymbol, Timeframe: domain.TF1m, Timestamp: ts,
		Open: o, High: h, Low: l, Close: c, Volume: v,
	}
}

func TestRollup(t *testing.T) {
	const minute = int64(60_000)
	base := []domain.Candle{
		minuteCandle(0*minute, 100, 101, 99.5, 100.5, 1),
		minuteCandle(1*minute, 100.5, 102, 100, 101.5, 2),
		minuteCandle(2*minute, 101.5, 101.8, 100.8, 101, 1),
		minuteCandle(3*minute, 101, 103, 100.9, 102.5, 3),
		minuteCandle(4*minute, 102.5, 102.8, 101.9, 102, 1),
		// Next bucket, partial: only two of five minutes present.
		minuteCandle(5*minute, 102, 104, 101.8, 103.5, 2),
		minuteCandle(6*minute, 103.5, 103.8, 103, 103.2, 1),
	}

	out := Rollup(base, domain.TF5m)
	if len(out) != 2 {
		t.Fatalf("buckets = %d, want 2", len(out))
	}

	first := out[0]
	if first.Timeframe != domain.TF5m || first.Timestamp != 0 {
		t.Errorf("first bucket at %d tf %s, want 0 5m", first.Timestamp, first.Timeframe)
	}
	if first.Open != 100 || first.Close != 102 {
		t.Errorf("first open/close = %v/%v, want 100/102", first.Open, first.Close)
	}
	if first.High != 103 || first.Low != 99.5 {
		t.Errorf("first high/low = %v/%v, want 103/99.5", first.High, first.Low)
	}
	if first.Volume != 8 {
		t.Errorf("first volume = %v, want 8", first.Volume)
	}

	second := out[1]
	if second.Timestamp != 5*minute {
		t.Errorf("second bucket at %d, want %d", second.Timestamp, 5*minute)
	}
	if second.Open != 102 || second.Close != 103.2 || second.High != 104 || second.Low != 101.8 {
		t.Errorf("second OHLC = %v/%v/%v/%v", second.Open, second.High, second.Low, second.Close)
	}
	if second.Volume != 3 {
		t.Errorf("second volume = %v, want 3", second.Volume)
	}
}

func TestRollupUnalignedStart(t *testing.T) {
	const minute = int64(60_000)
	base := []domain.Candle{
		minuteCandle(3*minute, 100, 101, 99, 100.5, 1),
		minuteCandle(4*minute, 100.5, 102, 100, 101, 1),
		minuteCandle(5*minute, 101, 101.5, 100.5, 101.2, 1),
	}

	out := Rollup(base, domain.TF5m)
	if len(out) != 2 {
		t.Fatalf("buckets = %d, want 2", len(out))
	}
	if out[0].Timestamp != 0 || out[1].Timestamp != 5*minute {
		t.Errorf("bucket starts = %d, %d; want 0, %d", out[0].Timestamp, out[1].Timestamp, 5*minute)
	}
	if out[0].Open != 100 || out[0].Close != 101 {
		t.Errorf("first open/close = %v/%v, want 100/101", out[0].Open, out[0].Close)
	}
}

func TestRollupRejectsCoarserBase(t *testing.T) {
	base := []domain.Candle{{
		Symbol: testSymbol, Timeframe: domain.TF1h, Timestamp: 0,
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1,
	}}
	if out := Rollup(base, domain.TF5m); out != nil {
		t.Errorf("rollup from 1h to 5m = %v, want nil", out)
	}
	if out := Rollup(nil, domain.TF5m); out != nil {
		t.Errorf("rollup of empty series = %v, want nil", out)
	}
}
