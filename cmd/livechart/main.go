package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/live_price_chart/internal/config"
	"github.com/vitos/live_price_chart/internal/domain"
	"github.com/vitos/live_price_chart/internal/infrastructure/feed"
	"github.com/vitos/live_price_chart/internal/infrastructure/logger"
	"github.com/vitos/live_price_chart/internal/infrastructure/render"
	"github.com/vitos/live_price_chart/internal/infrastructure/storage"
	"github.com/vitos/live_price_chart/internal/scheduler"
	"github.com/vitos/live_price_chart/internal/usecase"
	"github.com/vitos/live_price_chart/internal/web"
	"go.uber.org/zap"
)

func main() {
	// Load .env
	godotenv.Load()

	// 1. Load Config
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Init Storage
	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("Failed to create data dir", zap.Error(err))
		}
	}
	store, err := storage.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Feed
	source, err := feed.New(cfg.Feed.URL, cfg.Feed.File, cfg.FetchTimeout())
	if err != nil {
		log.Fatal("Failed to init feed", zap.Error(err))
	}

	// 5. Init Sinks
	loc, _ := cfg.Location()
	ranges, _ := cfg.Ranges()
	hub := web.NewHub(log)
	pngSink := render.NewPNGSink(cfg.Chart.Width, cfg.Chart.Height, loc)
	// PNG rendering is slow compared to a websocket push, so it draws behind a coalescer.
	coalescer := render.NewCoalescer(pngSink, log)
	go coalescer.Run(ctx)

	status := usecase.StatusFanout{
		logger.NewStatusLogger(log),
		storage.NewStatusJournal(store, log),
		hub,
	}

	// 6. Init Driver
	reducer := usecase.NewSeriesReducer(ranges, cfg.Chart.Epsilon, cfg.Chart.MaxPoints)
	driver := usecase.NewPollDriver(
		source,
		usecase.NewRowNormalizer(loc),
		reducer,
		usecase.NewMergePlanner(reducer.Epsilon(), reducer.MaxPoints()),
		render.Fanout{hub, coalescer},
		status,
		store,
		usecase.PollDriverConfig{
			DefaultRange: domain.RangeKey(cfg.Series.DefaultRange),
			FetchTimeout: cfg.FetchTimeout(),
			MaxBackoff:   cfg.MaxBackoff(),
		},
		log,
	)

	// 7. Init Scheduler
	sched := scheduler.NewScheduler(ctx, store, cfg.StatusRetention(), log)
	if err := sched.RegisterPrune(cfg.Retention.PruneCron); err != nil {
		log.Fatal("Failed to register prune job", zap.Error(err))
	}
	sched.Start()

	// Empty range restores the last one selected for this series.
	if err := driver.Start(ctx, cfg.Series.Identifier, "", cfg.PollInterval()); err != nil {
		log.Fatal("Failed to start poll driver", zap.Error(err))
	}

	// 8. Start Server
	server := web.NewServer(cfg.Server.Port, driver, pngSink, store, ranges, hub, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	driver.Stop()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
