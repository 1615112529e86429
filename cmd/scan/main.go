// Command scan runs one detection pass against the exchange and prints the
// zones and would-be signals without persisting or notifying anything.
// Useful for eyeballing detector output against a live chart.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptolens-backend/internal/config"
	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/infrastructure/market"
	"cryptolens-backend/internal/repository"
	"cryptolens-backend/internal/usecase/confluence"
	"cryptolens-backend/internal/usecase/eligibility"
	"cryptolens-backend/internal/usecase/levels"
	"cryptolens-backend/internal/usecase/patterns"
	"cryptolens-backend/internal/usecase/scanner"
	"cryptolens-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, e.g. BTC/USDT,ETH/USDT (default: configured set)")
	timeframesFlag := flag.String("timeframes", "", "comma-separated timeframes, e.g. 1h,4h,1d (default: configured set)")
	asJSON := flag.Bool("json", false, "print results as JSON")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("warn", cfg.Log.Format)

	symbols := cfg.Scanner.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	timeframes := cfg.ScanTimeframes()
	if *timeframesFlag != "" {
		timeframes = timeframes[:0]
		for _, raw := range strings.Split(*timeframesFlag, ",") {
			tf := domain.Timeframe(strings.TrimSpace(raw))
			if tf.Duration() == 0 {
				fmt.Fprintf(os.Stderr, "unknown timeframe %q\n", raw)
				os.Exit(1)
			}
			timeframes = append(timeframes, tf)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	marketClient := market.NewClient(market.Config{
		BaseURL:           cfg.Exchange.BaseURL,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Burst:             cfg.Exchange.Burst,
		Timeout:           time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	}, log)

	candleRepo := repository.NewInMemoryCandleRepository()
	patternRepo := repository.NewInMemoryPatternRepository()
	signalRepo := repository.NewInMemorySignalRepository()
	notifRepo := repository.NewInMemoryNotificationRepository()

	calc := levels.NewCalculator(levels.Config{
		DefaultRR:  cfg.Signals.DefaultRR,
		MinRiskPct: cfg.Signals.MinRiskPct,
	})
	agg := confluence.NewAggregator(patternRepo, signalRepo, candleRepo, calc, confluence.Config{
		Timeframes:    timeframes,
		MinConfluence: cfg.Signals.MinConfluence,
		RequireHTF:    cfg.Signals.RequireHTF,
		Cooldown:      0,
	}, log)
	limiter := eligibility.NewLimiter(repository.NewInMemorySubscriberRepository(),
		notifRepo, eligibility.DefaultPolicies(), log)

	sc := scanner.New(marketClient, marketClient, candleRepo, patternRepo,
		repository.NewInMemoryPriceCache(), agg, limiter, nil,
		patterns.DefaultConfig(), scanner.Config{
			Symbols:     symbols,
			Timeframes:  timeframes,
			CandleLimit: cfg.Scanner.CandleLimit,
		}, log)

	sum := sc.ScanPatterns(ctx, symbols, timeframes)
	signals := sc.ProcessSignals(ctx, false)

	allPatterns, _ := patternRepo.Active(ctx, "")

	if *asJSON {
		out := struct {
			Patterns []domain.Pattern `json:"patterns"`
			Signals  []domain.Signal  `json:"signals"`
		}{Patterns: allPatterns, Signals: signals}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Printf("scanned %d symbols x %d timeframes: %d candles, %d patterns, %d fetch errors\n\n",
		len(symbols), len(timeframes), sum.CandlesStored, sum.PatternsFound, sum.Errors)
	for _, p := range allPatterns {
		fmt.Printf("%-10s %-4s %-15s %-8s zone [%.4f, %.4f]\n",
			p.Symbol, p.Timeframe, p.Type, p.Direction, p.ZoneLow, p.ZoneHigh)
	}
	if len(allPatterns) > 0 && len(signals) > 0 {
		fmt.Println()
	}
	for _, s := range signals {
		fmt.Printf("SIGNAL %s %s  entry %.4f  stop %.4f  tp %.4f/%.4f/%.4f  confluence %d\n",
			s.Symbol, strings.ToUpper(string(s.Direction)),
			s.Entry, s.StopLoss, s.TakeProfit1, s.TakeProfit2, s.TakeProfit3, s.ConfluenceScore)
	}
	if len(signals) == 0 {
		fmt.Println("\nno qualifying confluence right now")
	}
}
