package confluence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/repository"
	"cryptolens-backend/internal/usecase/levels"
)

const testSymbol = "BTC/USDT"

func testConfig() Config {
	return Config{
		Timeframes:    []domain.Timeframe{domain.TF15m, domain.TF1h, domain.TF4h, domain.TF1d},
		MinConfluence: 3,
		RequireHTF:    true,
		Cooldown:      4 * time.Hour,
	}
}

func newTestAggregator(cfg Config) (*Aggregator, *repository.InMemoryPatternRepository, *repository.InMemorySignalRepository) {
	patterns := repository.NewInMemoryPatternRepository()
	signals := repository.NewInMemorySignalRepository()
	candles := repository.NewInMemoryCandleRepository()
	calc := levels.NewCalculator(levels.Config{DefaultRR: 3, MinRiskPct: 0.5})
	agg := NewAggregator(patterns, signals, candles, calc, cfg, zerolog.Nop())
	return agg, patterns, signals
}

func addPattern(t *testing.T, repo *repository.InMemoryPatternRepository, tf domain.Timeframe, dir domain.Direction, detectedAt int64) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.Pattern{
		ID:         string(tf) + "-" + string(dir),
		Symbol:     testSymbol,
		Timeframe:  tf,
		Type:       domain.PatternFVG,
		Direction:  dir,
		ZoneLow:    100,
		ZoneHigh:   102,
		DetectedAt: detectedAt,
		Status:     domain.PatternActive,
	})
	if err != nil {
		t.Fatalf("create pattern: %v", err)
	}
}

func TestCheckConfluence(t *testing.T) {
	t.Run("three aligned bullish timeframes", func(t *testing.T) {
		agg, patterns, _ := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF4h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1d, domain.Bullish, 1000)

		res := agg.CheckConfluence(context.Background(), testSymbol)
		if res.Dominant != domain.Bullish || res.Score != 3 {
			t.Fatalf("got dominant=%q score=%d, want bullish/3", res.Dominant, res.Score)
		}
		want := []domain.Timeframe{domain.TF1h, domain.TF4h, domain.TF1d}
		if len(res.Aligned) != len(want) {
			t.Fatalf("aligned = %v, want %v", res.Aligned, want)
		}
		for i := range want {
			if res.Aligned[i] != want[i] {
				t.Errorf("aligned[%d] = %s, want %s", i, res.Aligned[i], want[i])
			}
		}
	})

	t.Run("tie is neutral with score zero", func(t *testing.T) {
		agg, patterns, _ := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF15m, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF4h, domain.Bearish, 1000)
		addPattern(t, patterns, domain.TF1d, domain.Bearish, 1000)

		res := agg.CheckConfluence(context.Background(), testSymbol)
		if !res.Neutral() || res.Score != 0 {
			t.Fatalf("got dominant=%q score=%d, want neutral/0", res.Dominant, res.Score)
		}
	})

	t.Run("no patterns at all", func(t *testing.T) {
		agg, _, _ := newTestAggregator(testConfig())

		res := agg.CheckConfluence(context.Background(), testSymbol)
		if !res.Neutral() || len(res.Aligned) != 0 {
			t.Fatalf("got %+v, want empty neutral result", res)
		}
	})

	t.Run("majority side only counts its own timeframes", func(t *testing.T) {
		agg, patterns, _ := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF15m, domain.Bearish, 1000)
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF4h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1d, domain.Bullish, 1000)

		res := agg.CheckConfluence(context.Background(), testSymbol)
		if res.Dominant != domain.Bullish || res.Score != 3 {
			t.Fatalf("got dominant=%q score=%d, want bullish/3", res.Dominant, res.Score)
		}
	})
}

func TestGenerateSignal(t *testing.T) {
	t.Run("qualifying confluence produces a long signal", func(t *testing.T) {
		agg, patterns, signals := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF4h, domain.Bullish, 2000)
		addPattern(t, patterns, domain.TF1d, domain.Bullish, 3000)

		sig := agg.GenerateSignal(context.Background(), testSymbol)
		if sig == nil {
			t.Fatal("got nil signal, want one")
		}
		if sig.Direction != domain.Long {
			t.Errorf("direction = %s, want long", sig.Direction)
		}
		if sig.Status != domain.SignalPending {
			t.Errorf("status = %s, want pending", sig.Status)
		}
		if sig.ConfluenceScore != 3 {
			t.Errorf("score = %d, want 3", sig.ConfluenceScore)
		}
		// The 1d pattern wins the priority walk.
		if sig.PatternID != "1d-bullish" {
			t.Errorf("pattern = %s, want the 1d pattern", sig.PatternID)
		}
		if sig.AlignedTimeframes != `["1h","4h","1d"]` {
			t.Errorf("aligned = %s, want JSON list in ascending order", sig.AlignedTimeframes)
		}
		if pending, _ := signals.Pending(context.Background()); len(pending) != 1 {
			t.Errorf("persisted %d signals, want 1", len(pending))
		}
	})

	t.Run("score below minimum rejected", func(t *testing.T) {
		agg, patterns, signals := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF4h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1d, domain.Bullish, 1000)

		if sig := agg.GenerateSignal(context.Background(), testSymbol); sig != nil {
			t.Fatalf("got %+v, want nil", sig)
		}
		if pending, _ := signals.Pending(context.Background()); len(pending) != 0 {
			t.Errorf("persisted %d signals, want 0", len(pending))
		}
	})

	t.Run("higher timeframe gate", func(t *testing.T) {
		cfg := testConfig()
		cfg.Timeframes = []domain.Timeframe{domain.TF5m, domain.TF15m, domain.TF1h, domain.TF4h}
		agg, patterns, _ := newTestAggregator(cfg)
		addPattern(t, patterns, domain.TF5m, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF15m, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)

		if sig := agg.GenerateSignal(context.Background(), testSymbol); sig != nil {
			t.Fatalf("got %+v, want nil without a 4h/1d timeframe", sig)
		}

		cfg.RequireHTF = false
		agg2, patterns2, _ := newTestAggregator(cfg)
		addPattern(t, patterns2, domain.TF5m, domain.Bullish, 1000)
		addPattern(t, patterns2, domain.TF15m, domain.Bullish, 1000)
		addPattern(t, patterns2, domain.TF1h, domain.Bullish, 1000)

		if sig := agg2.GenerateSignal(context.Background(), testSymbol); sig == nil {
			t.Fatal("got nil, want a signal with the gate disabled")
		}
	})

	t.Run("cooldown yields exactly one signal", func(t *testing.T) {
		agg, patterns, signals := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF4h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1d, domain.Bullish, 1000)

		first := agg.GenerateSignal(context.Background(), testSymbol)
		second := agg.GenerateSignal(context.Background(), testSymbol)
		if first == nil || second != nil {
			t.Fatalf("first=%v second=%v, want signal then nil", first, second)
		}

		recent, _ := signals.Recent(context.Background(), 0)
		if len(recent) != 1 {
			t.Fatalf("persisted %d signals, want 1", len(recent))
		}

		// Once the window passes, the same confluence may fire again.
		agg.now = func() time.Time { return time.Now().Add(5 * time.Hour) }
		if sig := agg.GenerateSignal(context.Background(), testSymbol); sig == nil {
			t.Fatal("got nil after cooldown elapsed, want a signal")
		}
	})

	t.Run("opposite directions do not share a cooldown", func(t *testing.T) {
		agg, patterns, _ := newTestAggregator(testConfig())
		addPattern(t, patterns, domain.TF1h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF4h, domain.Bullish, 1000)
		addPattern(t, patterns, domain.TF1d, domain.Bullish, 1000)

		if sig := agg.GenerateSignal(context.Background(), testSymbol); sig == nil {
			t.Fatal("want a long signal first")
		}

		// Flip the board bearish.
		for _, tf := range []domain.Timeframe{domain.TF1h, domain.TF4h, domain.TF1d} {
			if err := patterns.UpdateStatus(context.Background(), string(tf)+"-bullish", domain.PatternFilled, nil); err != nil {
				t.Fatalf("update status: %v", err)
			}
			addPattern(t, patterns, tf, domain.Bearish, 5000)
		}

		sig := agg.GenerateSignal(context.Background(), testSymbol)
		if sig == nil || sig.Direction != domain.Short {
			t.Fatalf("got %+v, want a short signal", sig)
		}
	})
}
