package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/life-quote-scraper/internal/api"
	"github.com/maltedev/life-quote-scraper/internal/browser"
	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/events"
	"github.com/maltedev/life-quote-scraper/internal/jobs"
	"github.com/maltedev/life-quote-scraper/internal/metrics"
	"github.com/maltedev/life-quote-scraper/internal/runner"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
	"github.com/maltedev/life-quote-scraper/internal/sink"
	"github.com/maltedev/life-quote-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	grid, err := config.LoadGrid(cfg.Scraper.GridFile)
	if err != nil {
		log.Error("failed to load grid", "error", err)
		os.Exit(1)
	}

	b, err := browser.New(runner.BrowserOptions(cfg), log)
	if err != nil {
		log.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	outbox := database.NewOutboxRepository(db)
	relay := database.NewRelay(outbox, redisClient, log, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sites := runner.DefaultRegistry()
	r := runner.New(b, grid, cfg, log,
		runner.WithRegistry(sites),
		runner.WithObserver(func(site string) scraper.Observer { return m.For(site) }))

	runs := database.NewRunRepository(db)
	quotes := database.NewQuoteRepository(db)
	publisher := events.NewPublisher(outbox, log)

	sinkFor := func(run *database.Run) (sink.Sink, error) {
		site, err := sites.Lookup(run.Site)
		if err != nil {
			return nil, err
		}
		return sink.Multi{
			r.OutputSink(site),
			sink.NewPostgres(db, quotes, runs, publisher, run, log),
		}, nil
	}

	manager := jobs.NewManager(runs, quotes, r, sites, sinkFor, log)
	go manager.StartWorker(ctx, 10*time.Second)

	consumer := jobs.NewConsumer(redisClient, manager, jobs.ConsumerConfig{}, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("run request consumer stopped with error", "error", err)
		}
	}()

	handlers := api.NewHandlers(manager, relay, log)
	router := api.NewRouter(handlers, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
