package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/notifier"
	"cryptolens-backend/internal/repository"
	"cryptolens-backend/internal/usecase/confluence"
	"cryptolens-backend/internal/usecase/eligibility"
	"cryptolens-backend/internal/usecase/levels"
	"cryptolens-backend/internal/usecase/patterns"
)

const testSymbol = "BTC/USDT"

type fakeSource struct {
	series map[string][]domain.Candle
	errs   map[string]error
}

func sourceKey(symbol string, tf domain.Timeframe) string {
	return symbol + "|" + string(tf)
}

func (f *fakeSource) Candles(_ context.Context, symbol string, tf domain.Timeframe, _ int) ([]domain.Candle, error) {
	key := sourceKey(symbol, tf)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if s, ok := f.series[key]; ok {
		return s, nil
	}
	return nil, nil
}

type fakeTicker struct {
	price float64
	err   error
}

func (f *fakeTicker) LastPrice(context.Context, string) (float64, error) {
	return f.price, f.err
}

type sentMessage struct {
	topic string
	msg   notifier.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (f *fakeSender) Send(_ context.Context, topic string, msg notifier.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("refused")
	}
	f.sent = append(f.sent, sentMessage{topic: topic, msg: msg})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	scanner  *Scanner
	candles  *repository.InMemoryCandleRepository
	patterns *repository.InMemoryPatternRepository
	signals  *repository.InMemorySignalRepository
	store    *repository.InMemoryNotificationRepository
	cache    *repository.InMemoryPriceCache
	sender   *fakeSender
	sleeps   *[]time.Duration
}

func newTestEnv(source domain.CandleSource, ticker PriceSource, subs ...domain.Subscriber) *testEnv {
	log := zerolog.Nop()
	candles := repository.NewInMemoryCandleRepository()
	patternRepo := repository.NewInMemoryPatternRepository()
	signals := repository.NewInMemorySignalRepository()
	store := repository.NewInMemoryNotificationRepository()
	cache := repository.NewInMemoryPriceCache()
	sender := &fakeSender{}

	calc := levels.NewCalculator(levels.Config{DefaultRR: 3, MinRiskPct: 0})
	agg := confluence.NewAggregator(patternRepo, signals, candles, calc, confluence.Config{
		Timeframes:    []domain.Timeframe{domain.TF15m, domain.TF1h, domain.TF4h, domain.TF1d},
		MinConfluence: 3,
		RequireHTF:    true,
		Cooldown:      4 * time.Hour,
	}, log)

	limiter := eligibility.NewLimiter(
		repository.NewInMemorySubscriberRepository(subs...),
		store, eligibility.DefaultPolicies(), log,
	)

	dispatch := notifier.NewDispatcher(sender, notifier.NewBreaker(5, time.Minute), signals, store, notifier.Config{
		MaxConcurrent:  10,
		MaxPerHost:     10,
		RequestTimeout: time.Second,
		MaxRetries:     1,
		Backoff:        time.Millisecond,
		Priority:       4,
	}, log)

	sleeps := &[]time.Duration{}
	sc := New(source, ticker, candles, patternRepo, cache, agg, limiter, dispatch,
		patterns.DefaultConfig(), Config{
			Symbols:     []string{testSymbol},
			Timeframes:  []domain.Timeframe{domain.TF15m, domain.TF1h, domain.TF4h, domain.TF1d},
			CandleLimit: 200,
		}, log)
	sc.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }

	return &testEnv{
		scanner:  sc,
		candles:  candles,
		patterns: patternRepo,
		signals:  signals,
		store:    store,
		cache:    cache,
		sender:   sender,
		sleeps:   sleeps,
	}
}

func candle1h(ts int64, o, h, l, c float64) domain.Candle {
	return domain.Candle{
		Symbol: testSymbol, Timeframe: domain.TF1h, Timestamp: ts,
		Open: o, High: h, Low: l, Close: c, Volume: 10,
	}
}

// gapSeries carries one bullish fair value gap between 100 and 102. Too
// short for the order block or sweep detectors to engage.
func gapSeries() []domain.Candle {
	return []domain.Candle{
		candle1h(1000, 99, 100, 98.5, 99.8),
		candle1h(2000, 99.8, 103, 99.5, 102.8),
		candle1h(3000, 102.8, 104, 102, 103.5),
		candle1h(4000, 103.5, 104.5, 103, 104),
		candle1h(5000, 104, 105, 103.8, 104.6),
	}
}

func TestScanPatternsDetectsAndStores(t *testing.T) {
	source := &fakeSource{series: map[string][]domain.Candle{
		sourceKey(testSymbol, domain.TF1h): gapSeries(),
	}}
	env := newTestEnv(source, &fakeTicker{price: 104.6})

	sum := env.scanner.ScanPatterns(context.Background(), []string{testSymbol}, []domain.Timeframe{domain.TF1h})
	if sum.Errors != 0 {
		t.Fatalf("errors = %d, want 0", sum.Errors)
	}
	if sum.CandlesStored != 5 {
		t.Errorf("candles stored = %d, want 5", sum.CandlesStored)
	}
	if sum.PatternsFound != 1 {
		t.Fatalf("patterns found = %d, want 1", sum.PatternsFound)
	}

	active, err := env.patterns.Active(context.Background(), testSymbol)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active patterns = %d, want 1", len(active))
	}
	p := active[0]
	if p.Type != domain.PatternFVG || p.Direction != domain.Bullish {
		t.Errorf("pattern = %s/%s, want fvg/bullish", p.Type, p.Direction)
	}
	if p.ZoneLow != 100 || p.ZoneHigh != 102 {
		t.Errorf("zone = [%v, %v], want [100, 102]", p.ZoneLow, p.ZoneHigh)
	}

	price, err := env.cache.Price(context.Background(), testSymbol)
	if err != nil || price != 104.6 {
		t.Errorf("cached price = %v (%v), want 104.6", price, err)
	}
}

func TestScanPatternsDeduplicatesRedetections(t *testing.T) {
	source := &fakeSource{series: map[string][]domain.Candle{
		sourceKey(testSymbol, domain.TF1h): gapSeries(),
	}}
	env := newTestEnv(source, &fakeTicker{price: 104.6})

	ctx := context.Background()
	tfs := []domain.Timeframe{domain.TF1h}
	env.scanner.ScanPatterns(ctx, []string{testSymbol}, tfs)
	second := env.scanner.ScanPatterns(ctx, []string{testSymbol}, tfs)

	if second.PatternsFound != 0 {
		t.Errorf("second pass patterns = %d, want 0", second.PatternsFound)
	}
	active, _ := env.patterns.Active(ctx, testSymbol)
	if len(active) != 1 {
		t.Errorf("active patterns = %d, want 1", len(active))
	}
}

func TestScanPatternsIsolatesSymbolFailures(t *testing.T) {
	source := &fakeSource{
		series: map[string][]domain.Candle{
			sourceKey(testSymbol, domain.TF1h): gapSeries(),
		},
		errs: map[string]error{
			sourceKey("ETH/USDT", domain.TF1h): errors.New("exchange down"),
		},
	}
	env := newTestEnv(source, &fakeTicker{price: 104.6})

	sum := env.scanner.ScanPatterns(context.Background(),
		[]string{"ETH/USDT", testSymbol}, []domain.Timeframe{domain.TF1h})
	if sum.Errors != 1 {
		t.Errorf("errors = %d, want 1", sum.Errors)
	}
	if sum.PatternsFound != 1 {
		t.Errorf("patterns found = %d, want 1", sum.PatternsFound)
	}
}

func TestScanPatternsRollsUpWhenFetchFails(t *testing.T) {
	source := &fakeSource{errs: map[string]error{
		sourceKey(testSymbol, domain.TF5m): errors.New("exchange down"),
	}}
	env := newTestEnv(source, &fakeTicker{price: 100})

	ctx := context.Background()
	var base []domain.Candle
	for i := 0; i < 10; i++ {
		base = append(base, domain.Candle{
			Symbol: testSymbol, Timeframe: domain.TF1m,
			Timestamp: int64(i) * 60_000,
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1,
		})
	}
	if _, err := env.candles.Upsert(ctx, base); err != nil {
		t.Fatalf("seed candles: %v", err)
	}

	sum := env.scanner.ScanPatterns(ctx, []string{testSymbol}, []domain.Timeframe{domain.TF5m})
	if sum.Errors != 0 {
		t.Fatalf("errors = %d, want 0", sum.Errors)
	}
	if sum.CandlesStored != 2 {
		t.Errorf("candles stored = %d, want 2 rolled-up buckets", sum.CandlesStored)
	}

	rolled, err := env.candles.Latest(ctx, testSymbol, domain.TF5m, 10)
	if err != nil || len(rolled) != 2 {
		t.Fatalf("rolled candles = %d (%v), want 2", len(rolled), err)
	}
	if rolled[0].Volume != 5 {
		t.Errorf("first bucket volume = %v, want 5", rolled[0].Volume)
	}
}

func seedPattern(t *testing.T, env *testEnv, id string, tf domain.Timeframe, dir domain.Direction, detectedAt time.Time) {
	t.Helper()
	err := env.patterns.Create(context.Background(), &domain.Pattern{
		ID: id, Symbol: testSymbol, Timeframe: tf, Type: domain.PatternFVG,
		Direction: dir, ZoneLow: 100, ZoneHigh: 102,
		DetectedAt: detectedAt.UnixMilli(),
		Status:     domain.PatternActive, CreatedAt: detectedAt,
	})
	if err != nil {
		t.Fatalf("seed pattern %s: %v", id, err)
	}
}

func premiumSubscriber(id, topic string) domain.Subscriber {
	return domain.Subscriber{
		ID: id, Email: id + "@example.com", NtfyTopic: topic,
		IsActive: true, IsVerified: true, NotifyEnabled: true,
		Tier: domain.TierPremium, SubStatus: domain.SubActive,
	}
}

func TestProcessSignalsEndToEnd(t *testing.T) {
	env := newTestEnv(&fakeSource{}, &fakeTicker{price: 103},
		premiumSubscriber("sub-1", "topic-1"))

	ctx := context.Background()
	now := time.Now()
	seedPattern(t, env, "p-1h", domain.TF1h, domain.Bullish, now)
	seedPattern(t, env, "p-4h", domain.TF4h, domain.Bullish, now)
	seedPattern(t, env, "p-1d", domain.TF1d, domain.Bullish, now)

	sigs := env.scanner.ProcessSignals(ctx, true)
	if len(sigs) != 1 {
		t.Fatalf("signals = %d, want 1", len(sigs))
	}
	sig := sigs[0]

	if sig.Direction != domain.Long {
		t.Errorf("direction = %s, want long", sig.Direction)
	}
	if sig.ConfluenceScore != 3 {
		t.Errorf("score = %d, want 3", sig.ConfluenceScore)
	}
	// Zone [100, 102] with no candle history: the stop buffer falls back to
	// half the zone size, so entry 102, stop 99, risk 3.
	if sig.Entry != 102 || sig.StopLoss != 99 {
		t.Errorf("entry/stop = %v/%v, want 102/99", sig.Entry, sig.StopLoss)
	}
	if sig.TakeProfit1 != 105 || sig.TakeProfit2 != 108 || sig.TakeProfit3 != 111 {
		t.Errorf("targets = %v/%v/%v, want 105/108/111",
			sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3)
	}

	if env.sender.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", env.sender.count())
	}
	env.sender.mu.Lock()
	got := env.sender.sent[0]
	env.sender.mu.Unlock()
	if got.topic != "topic-1" {
		t.Errorf("topic = %q, want topic-1", got.topic)
	}

	recent, err := env.signals.Recent(ctx, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("recent signals = %d (%v), want 1", len(recent), err)
	}
	if recent[0].Status != domain.SignalNotified {
		t.Errorf("status = %s, want notified", recent[0].Status)
	}
	if recent[0].NotifiedAt == nil {
		t.Error("notified_at not set")
	}

	outcomes := env.store.Outcomes()
	if len(outcomes) != 1 || !outcomes[0].Success || outcomes[0].SignalID != sig.ID {
		t.Errorf("outcomes = %+v, want one success for %s", outcomes, sig.ID)
	}
}

func TestProcessSignalsDelaysFreeTier(t *testing.T) {
	free := domain.Subscriber{
		ID: "free-1", Email: "free@example.com", NtfyTopic: "topic-free",
		IsActive: true, IsVerified: true, NotifyEnabled: true,
		Tier: domain.TierFree, SubStatus: domain.SubActive,
	}
	env := newTestEnv(&fakeSource{}, &fakeTicker{price: 103}, free)

	now := time.Now()
	seedPattern(t, env, "p-1h", domain.TF1h, domain.Bullish, now)
	seedPattern(t, env, "p-4h", domain.TF4h, domain.Bullish, now)
	seedPattern(t, env, "p-1d", domain.TF1d, domain.Bullish, now)

	sigs := env.scanner.ProcessSignals(context.Background(), true)
	if len(sigs) != 1 {
		t.Fatalf("signals = %d, want 1", len(sigs))
	}
	env.scanner.Wait()

	if env.sender.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", env.sender.count())
	}
	env.sender.mu.Lock()
	topic := env.sender.sent[0].topic
	env.sender.mu.Unlock()
	if topic != "topic-free" {
		t.Errorf("topic = %q, want topic-free", topic)
	}
	if len(*env.sleeps) != 1 || (*env.sleeps)[0] != 10*time.Minute {
		t.Errorf("sleeps = %v, want [10m]", *env.sleeps)
	}
}

func TestProcessSignalsNoConfluence(t *testing.T) {
	env := newTestEnv(&fakeSource{}, &fakeTicker{price: 103},
		premiumSubscriber("sub-1", "topic-1"))

	seedPattern(t, env, "p-1h", domain.TF1h, domain.Bullish, time.Now())

	sigs := env.scanner.ProcessSignals(context.Background(), true)
	if len(sigs) != 0 {
		t.Fatalf("signals = %d, want 0", len(sigs))
	}
	if env.sender.count() != 0 {
		t.Errorf("deliveries = %d, want 0", env.sender.count())
	}
}

func TestUpdatePatternStatuses(t *testing.T) {
	env := newTestEnv(&fakeSource{}, &fakeTicker{})
	ctx := context.Background()
	now := time.Now()
	env.scanner.cfg.ExpiryFor = func(domain.Timeframe) time.Duration { return 48 * time.Hour }

	// Zone [100, 102], size 2: filled above 106, invalidated below 98.
	seed := func(id string, detectedAt time.Time) {
		seedPattern(t, env, id, domain.TF1h, domain.Bullish, detectedAt)
	}
	seed("p-filled", now)
	if err := env.cache.SetPrice(ctx, testSymbol, 107); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if n := env.scanner.UpdatePatternStatuses(ctx); n != 1 {
		t.Fatalf("transitions = %d, want 1", n)
	}
	assertStatus(t, env, "p-filled", domain.PatternFilled)

	seed("p-invalidated", now)
	if err := env.cache.SetPrice(ctx, testSymbol, 97); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if n := env.scanner.UpdatePatternStatuses(ctx); n != 1 {
		t.Fatalf("transitions = %d, want 1", n)
	}
	assertStatus(t, env, "p-invalidated", domain.PatternInvalidated)

	seed("p-expired", now.Add(-72*time.Hour))
	seed("p-active", now)
	if err := env.cache.SetPrice(ctx, testSymbol, 101); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if n := env.scanner.UpdatePatternStatuses(ctx); n != 1 {
		t.Fatalf("transitions = %d, want 1", n)
	}
	assertStatus(t, env, "p-expired", domain.PatternExpired)
	assertStatus(t, env, "p-active", domain.PatternActive)
}

func assertStatus(t *testing.T, env *testEnv, id string, want domain.PatternStatus) {
	t.Helper()
	all, err := env.patterns.Active(context.Background(), testSymbol)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	for _, p := range all {
		if p.ID == id {
			if want == domain.PatternActive {
				return
			}
			t.Fatalf("pattern %s still active, want %s", id, want)
		}
	}
	if want == domain.PatternActive {
		t.Fatalf("pattern %s not active", id)
	}
}
