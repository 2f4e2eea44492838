package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kwhite/polytrack/internal/config"
	"github.com/kwhite/polytrack/internal/logger"
	"github.com/kwhite/polytrack/internal/repository"
	"github.com/kwhite/polytrack/internal/runlog"
	"github.com/kwhite/polytrack/internal/service"
	"github.com/kwhite/polytrack/internal/tracker"
)

func main() {
	appLogger := logger.NewFromEnv(&logger.EnvConfig{
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
		ServiceName: "polytrack-scrape",
		Environment: os.Getenv("APP_ENV"),
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	limit := flag.Int("limit", 0, "Maximum number of markets to fetch (0 = config default)")
	minInterval := flag.Int("min-interval", 0, "Minimum minutes between runs (0 = config default)")
	force := flag.Bool("force", false, "Skip the admission check and scrape regardless")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *limit > 0 {
		cfg.Scraper.MaxMarkets = *limit
	}
	interval := cfg.RunLog.MinIntervalMinutes
	if *minInterval > 0 {
		interval = *minInterval
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	marketRepo := repository.NewMarketRepository(db)
	runLog := runlog.NewClient(&cfg.RunLog)
	coord := tracker.NewCoordinator(runLog, appLogger)

	scraper := service.NewScrapeService(marketRepo, appLogger, &service.ScrapeConfig{
		BaseURL:       cfg.Scraper.BaseURL,
		PageSize:      cfg.Scraper.PageSize,
		MaxMarkets:    cfg.Scraper.MaxMarkets,
		Timeout:       cfg.Scraper.Timeout,
		ProgressEvery: cfg.Scraper.ProgressEvery,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Recover runs abandoned by crashed instances before deciding.
	coord.CleanupStale(ctx)

	if !*force {
		ok, reason := coord.ShouldRun(ctx, interval)
		if !ok {
			appLogger.WithField("reason", reason).Info("Skipping scrape")
			return
		}
	}

	// A failed start leaves the run untracked but the scrape still happens;
	// run tracking must never be the reason markets go stale.
	if _, ok := coord.StartRun(ctx); !ok {
		appLogger.Warn("Proceeding without run tracking")
	}

	start := time.Now()
	result, err := scraper.Run(ctx, coord)
	duration := time.Since(start).Seconds()

	if err != nil {
		coord.FailRun(ctx, err.Error(), &duration)
		appLogger.WithError(err).Error("Scrape failed")
		os.Exit(1)
	}

	coord.CompleteRun(ctx, result.Fetched, result.Added, result.Updated, result.Failed, duration)

	stats := coord.Statistics(ctx)
	appLogger.WithFields(logger.Fields{
		"total_scrapes":      stats.TotalScrapes,
		"successful_scrapes": stats.SuccessfulScrapes,
		"failed_scrapes":     stats.FailedScrapes,
		"markets_tracked":    stats.TotalMarketsTracked,
	}).Info("Scrape finished")
}
