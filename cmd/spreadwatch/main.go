package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spreadwatch/config"
	"spreadwatch/internal/breaker"
	"spreadwatch/internal/feed"
	"spreadwatch/internal/gear"
	"spreadwatch/internal/logger"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/model"
	"spreadwatch/internal/monitor"
	"spreadwatch/internal/notification"
	"spreadwatch/internal/store"

	"github.com/joho/godotenv"
)

// quickChecks is the tick count of -once mode when MAX_CHECKS is unset.
const quickChecks = 5

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	once := flag.Bool("once", false, "run a short burst of checks and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[spreadwatch] .env not loaded: %v", err)
	}

	// ---- Load config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[spreadwatch] config: %v", err)
	}
	if *once && cfg.MaxChecks == 0 {
		cfg.MaxChecks = quickChecks
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[spreadwatch] invalid config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Printf("[spreadwatch] %v, using info", err)
	}
	lg, logCloser := logger.InitWithOptions("spreadwatch", logger.Options{Level: level, File: cfg.LogFile})
	defer logCloser.Close()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		lg.Info("shutdown signal received")
		cancel()
	}()

	// ---- Metrics + health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.StoreBackend, 3*cfg.PollInterval)

	// ---- Persistence ----
	storeCfg := cfg.Store()
	if storeCfg.Backend == store.BackendRedis {
		storeCfg.RedisBreaker = breaker.New(cfg.BreakerFailures, cfg.BreakerCooldown)
	}
	memStore, err := store.Open(ctx, storeCfg)
	if err != nil {
		log.Fatalf("[spreadwatch] store init failed: %v", err)
	}
	defer memStore.Close()

	if p, ok := memStore.(store.Pinger); ok {
		health.CheckStore(ctx, p)
		health.StartLivenessChecker(ctx, p, 10*time.Second)
	}
	journal, _ := memStore.(model.AlertJournal)
	history, _ := memStore.(model.AlertHistory)

	// ---- Notifiers ----
	hub := notification.NewHub()
	defer hub.Close()
	sinks := notification.Multi{notification.NewLogNotifier(lg), hub}
	if cfg.TelegramEnabled() {
		tg, err := notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.BotToken,
			ChatID:   cfg.ChatID,
		})
		if err != nil {
			log.Fatalf("[spreadwatch] telegram init failed: %v", err)
		}
		sinks = append(sinks, tg)
	} else {
		lg.Warn("BOT_TOKEN/CHAT_ID not set, telegram delivery disabled")
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.WebhookURL))
	}

	// ---- Gear engine ----
	engine, err := gear.New(ctx, cfg.Gear(), memStore, sinks, lg)
	if err != nil {
		log.Fatalf("[spreadwatch] engine init failed: %v", err)
	}

	// ---- Price feed ----
	feedBreaker := breaker.New(cfg.BreakerFailures, cfg.BreakerCooldown)
	feedBreaker.OnStateChange = func(from, to breaker.State) {
		prom.ObserveBreaker(from, to)
		health.SetBreakerState(to.String())
		lg.Warn("feed circuit breaker state change",
			slog.String("from", from.String()), slog.String("to", to.String()))
	}
	cache := feed.NewCache(feed.NewHTTPSource(feed.HTTPSourceConfig{
		BaseURL: cfg.FeedBaseURL,
		Bucket:  cfg.QuoteBucket,
		Timeout: cfg.FeedTimeout,
	}), feed.CacheConfig{
		TickerA: cfg.TickerA,
		TickerB: cfg.TickerB,
		TTL:     cfg.FeedTTL,
		Breaker: feedBreaker,
	})
	cache.Observe = prom.ObserveFetch
	health.SetFeedAgeSource(cache.Age)

	svc := monitor.New(cache, engine, monitor.Options{
		Interval:  cfg.PollInterval,
		MaxChecks: cfg.MaxChecks,
		Journal:   journal,
		Metrics:   prom,
		Health:    health,
		Logger:    lg,
	})

	// ---- HTTP server ----
	srv := metrics.NewServer(cfg.HTTPAddr, metrics.ServerDeps{
		Health:  health,
		Metrics: prom,
		Status:  func() any { return svc.Status() },
		History: history,
		WS:      http.HandlerFunc(hub.ServeWS),
	})
	srv.Start()

	if err := svc.Run(ctx); err != nil {
		lg.Error("monitor stopped with error", slog.Any("error", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Warn("http server shutdown", slog.Any("error", err))
	}
	lg.Info("shutdown complete")
}
