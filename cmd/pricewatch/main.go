// Command pricewatch is the ozon.ru price monitoring daemon.
//
// Usage:
//
//	pricewatch -config pricewatch.yaml      # run scheduled monitoring
//	pricewatch -once                        # run a single cycle and exit
//	pricewatch -add <url>                   # track a product and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pricewatch"
	"github.com/hazyhaar/pricewatch/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to pricewatch.yaml config file")
	once := flag.Bool("once", false, "run a single monitoring cycle and exit")
	addURL := flag.String("add", "", "add a product URL to the tracked set and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *addURL, *once); err != nil {
		logger.Error("pricewatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, addURL string, once bool) error {
	cfg := pricewatch.DefaultConfig()
	if configPath != "" {
		loaded, err := pricewatch.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	monitor, err := pricewatch.New(cfg, logger)
	if err != nil {
		return err
	}
	defer monitor.Close()

	if addURL != "" {
		added, err := monitor.Tracker().Add(addURL)
		if err != nil {
			return fmt.Errorf("add product: %w", err)
		}
		if !added {
			fmt.Println("already tracked")
			return nil
		}
		fmt.Printf("tracked, %d products total\n", monitor.Tracker().Count())
		return nil
	}

	if once {
		result, err := monitor.RunCycle(ctx)
		if err != nil {
			return err
		}
		logger.Info("pricewatch: done",
			"cycle", result.Cycle,
			"extracted", len(result.Prices),
			"changes", result.Stats.PriceChanges)
		return nil
	}

	if cfg.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           pricewatch.NewAPI(monitor).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("pricewatch: api listening", "addr", cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("pricewatch: api server", "error", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	tasks := []*scheduler.Task{
		scheduler.Every("monitor", cfg.Interval(), func(ctx context.Context) {
			if _, err := monitor.RunCycle(ctx); err != nil {
				logger.Warn("pricewatch: scheduled cycle", "error", err)
			}
		}),
	}
	if cfg.AutoCleanupDays > 0 {
		tasks = append(tasks, scheduler.DailyAt("pages-cleanup", 2, 0, monitor.CleanupPages))
	}
	if monitor.Store() != nil {
		tasks = append(tasks, scheduler.WeeklyAt("db-cleanup", time.Sunday, 3, 0, monitor.CleanupDB))
	}

	// First cycle runs immediately; the scheduler takes over afterwards.
	if _, err := monitor.RunCycle(ctx); err != nil {
		logger.Warn("pricewatch: initial cycle", "error", err)
	}

	scheduler.New(logger, tasks...).Run(ctx)
	return nil
}
