package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"cryptolens-backend/internal/config"
	api "cryptolens-backend/internal/delivery/http"
	"cryptolens-backend/internal/delivery/websocket"
	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/infrastructure/cache"
	"cryptolens-backend/internal/infrastructure/db"
	"cryptolens-backend/internal/infrastructure/fcm"
	"cryptolens-backend/internal/infrastructure/market"
	"cryptolens-backend/internal/infrastructure/ntfy"
	"cryptolens-backend/internal/notifier"
	"cryptolens-backend/internal/repository"
	"cryptolens-backend/internal/usecase/alerts"
	"cryptolens-backend/internal/usecase/confluence"
	"cryptolens-backend/internal/usecase/eligibility"
	"cryptolens-backend/internal/usecase/levels"
	"cryptolens-backend/internal/usecase/patterns"
	"cryptolens-backend/internal/usecase/scanner"
	"cryptolens-backend/pkg/logger"
)

// initialBackoff seeds the single-topic retry delay; it doubles per attempt.
const initialBackoff = time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("environment", cfg.Environment).Msg("starting cryptolens")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		candleRepo  domain.CandleRepository
		patternRepo domain.PatternRepository
		signalRepo  domain.SignalRepository
		subRepo     domain.SubscriberRepository
		notifRepo   domain.NotificationRepository
	)
	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database.URL, db.DefaultPoolConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		candleRepo = repository.NewPostgresCandleRepository(pool)
		patternRepo = repository.NewPostgresPatternRepository(pool)
		signalRepo = repository.NewPostgresSignalRepository(pool)
		subRepo = repository.NewPostgresSubscriberRepository(pool)
		notifRepo = repository.NewPostgresNotificationRepository(pool)
		log.Info().Msg("postgres storage ready")
	} else {
		candleRepo = repository.NewInMemoryCandleRepository()
		patternRepo = repository.NewInMemoryPatternRepository()
		signalRepo = repository.NewInMemorySignalRepository()
		subRepo = repository.NewInMemorySubscriberRepository()
		notifRepo = repository.NewInMemoryNotificationRepository()
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
	}

	var priceCache domain.PriceCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		priceCache = cache.NewPriceCache(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis price cache ready")
	} else {
		priceCache = repository.NewInMemoryPriceCache()
	}

	marketClient := market.NewClient(market.Config{
		BaseURL:           cfg.Exchange.BaseURL,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Burst:             cfg.Exchange.Burst,
		Timeout:           time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	}, log)

	calc := levels.NewCalculator(levels.Config{
		DefaultRR:  cfg.Signals.DefaultRR,
		MinRiskPct: cfg.Signals.MinRiskPct,
	})
	agg := confluence.NewAggregator(patternRepo, signalRepo, candleRepo, calc, confluence.Config{
		Timeframes:    cfg.ScanTimeframes(),
		MinConfluence: cfg.Signals.MinConfluence,
		RequireHTF:    cfg.Signals.RequireHTF,
		Cooldown:      cfg.Cooldown(),
	}, log)

	limiter := eligibility.NewLimiter(subRepo, notifRepo, tierPolicies(cfg.Tiers), log)

	sender := ntfy.NewClient(cfg.Ntfy.URL, cfg.RequestTimeout())
	breaker := notifier.NewBreaker(cfg.Dispatcher.BreakerFailMax, cfg.BreakerReset())
	dispatcher := notifier.NewDispatcher(sender, breaker, signalRepo, notifRepo, notifier.Config{
		MaxConcurrent:  cfg.Dispatcher.MaxConcurrent,
		MaxPerHost:     cfg.Dispatcher.MaxPerHost,
		RequestTimeout: cfg.RequestTimeout(),
		MaxRetries:     cfg.Dispatcher.MaxRetries,
		Backoff:        initialBackoff,
		Priority:       cfg.Ntfy.Priority,
	}, log)

	detectCfg := patterns.Config{
		MinZoneSizePct:     cfg.Signals.MinZoneSizePct,
		OrderBlockStrength: cfg.Signals.OrderBlockStrength,
		SweepNoisePct:      cfg.Signals.SweepNoisePct,
		SwingLookback:      patterns.DefaultConfig().SwingLookback,
	}
	sc := scanner.New(marketClient, marketClient, candleRepo, patternRepo, priceCache,
		agg, limiter, dispatcher, detectCfg, scanner.Config{
			Symbols:     cfg.Scanner.Symbols,
			Timeframes:  cfg.ScanTimeframes(),
			CandleLimit: cfg.Scanner.CandleLimit,
			ExpiryFor:   cfg.ExpiryFor,
		}, log)

	tokenRepo := repository.NewDeviceTokenRepository()
	fcmCreds := ""
	if cfg.FCM.Enabled {
		fcmCreds = cfg.FCM.CredentialsPath
	}
	fcmClient, err := fcm.NewClient(ctx, fcmCreds, log)
	if err != nil {
		log.Fatal().Err(err).Msg("fcm init failed")
	}
	if fcmClient.Enabled() {
		sc.WithPush(fcmClient, tokenRepo)
	}

	warner := alerts.NewWarner(subRepo, dispatcher, log)
	broadcaster := alerts.NewBroadcaster(subRepo, dispatcher, notifRepo, log)

	sched := scanner.NewScheduler(sc, warner,
		time.Duration(cfg.Scanner.IntervalMinutes)*time.Minute, log)
	go sched.Run(ctx)

	wsHandler := websocket.NewHandler(patternRepo, signalRepo, log)
	signalHandler := api.NewSignalHandler(patternRepo, signalRepo)
	tokenHandler := api.NewTokenHandler(tokenRepo)
	testHandler := api.NewTestHandler(fcmClient, tokenRepo)
	adminHandler := api.NewAdminHandler(broadcaster)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.Handle)
	mux.HandleFunc("/api/signals", signalHandler.HandleRecentSignals)
	mux.HandleFunc("/api/patterns", signalHandler.HandleActivePatterns)
	mux.HandleFunc("/api/tokens/register", tokenHandler.HandleRegisterToken)
	mux.HandleFunc("/api/tokens/unregister", tokenHandler.HandleUnregisterToken)
	mux.HandleFunc("/api/tokens/count", tokenHandler.HandleGetTokenCount)
	mux.HandleFunc("/api/admin/broadcast", adminHandler.HandleBroadcast)
	mux.HandleFunc("/api/admin/test-notification", testHandler.SendTestNotification)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	sc.Wait()
}

// tierPolicies applies configured quota and delay overrides onto the
// built-in tier defaults.
func tierPolicies(tc config.TierConfig) eligibility.PolicyTable {
	policies := eligibility.DefaultPolicies()
	apply := func(tier domain.Tier, limits config.TierLimits) {
		p := policies[tier]
		if limits.DailyNotifications > 0 {
			p.DailyQuota = limits.DailyNotifications
		}
		if limits.DelaySeconds > 0 {
			p.Delay = time.Duration(limits.DelaySeconds) * time.Second
		}
		policies[tier] = p
	}
	apply(domain.TierFree, tc.Free)
	apply(domain.TierPro, tc.Pro)
	apply(domain.TierPremium, tc.Premium)
	return policies
}
