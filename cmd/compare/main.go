package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/maltedev/shop-compare/internal/api"
	"github.com/maltedev/shop-compare/internal/browser"
	"github.com/maltedev/shop-compare/internal/captcha"
	"github.com/maltedev/shop-compare/internal/captcha/ocr"
	"github.com/maltedev/shop-compare/internal/captcha/tesseract"
	"github.com/maltedev/shop-compare/internal/compare"
	"github.com/maltedev/shop-compare/internal/config"
	"github.com/maltedev/shop-compare/internal/database"
	"github.com/maltedev/shop-compare/internal/events"
	"github.com/maltedev/shop-compare/internal/operator"
	"github.com/maltedev/shop-compare/internal/pages"
	"github.com/maltedev/shop-compare/internal/ratelimit"
	"github.com/maltedev/shop-compare/internal/report"
	"github.com/maltedev/shop-compare/internal/storage"
	"github.com/maltedev/shop-compare/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("search run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      browser.DefaultOptions().UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
		ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("failed to close browser", "error", err)
		}
	}()

	gate := operator.NewGate(logger)
	var op captcha.Operator = operator.NewConsole(os.Stdin, os.Stdout, logger)
	if cfg.Captcha.Operator == config.OperatorHTTP {
		op = gate
	}

	engine := tesseract.New(tesseract.Options{
		TessdataDir: cfg.Captcha.TessdataDir,
		Languages:   cfg.Captcha.Languages,
	})
	solver := captcha.NewSolver(b, ocr.NewRunner(engine, logger), op, logger, captcha.Options{
		MaxAttempts: cfg.Captcha.MaxAttempts,
		SettleDelay: cfg.Captcha.SettleDelay,
	})

	textLog, err := report.NewTextLog(cfg.Report.LogPath)
	if err != nil {
		return err
	}

	open := func(ctx context.Context, name string) (compare.Session, error) {
		site, err := pages.Lookup(name)
		if err != nil {
			return nil, err
		}
		sess, err := pages.NewSession(b, site, logger)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)
	runner := compare.NewRunner(open, solver, limiter, textLog, logger, compare.Options{
		Sites:       cfg.Search.Sites,
		ResultLimit: cfg.Search.ResultLimit,
		ReportDir:   cfg.Report.Dir,
	})

	var runs api.RunLister
	if cfg.Report.HistoryPath != "" {
		store, err := storage.NewRunStore(cfg.Report.HistoryPath, cfg.Report.HistoryLimit)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		runner.SetHistory(store)
		runs = store
	}

	var stats api.StatsSource
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		solves := database.NewSolveRepository(db, logger)
		if err := solves.EnsureSchema(ctx); err != nil {
			return err
		}
		solver.AddRecorder(solves)
		stats = solves
	}

	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}

		publisher := events.NewPublisher(redisClient, logger)
		defer publisher.Close()
		solver.AddRecorder(publisher)
		runner.SetPublisher(publisher)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandlers(gate, runner, runs, stats, logger), cfg.Report.Dir),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("operator api listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("operator api failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	rep, runErr := runner.Run(ctx, cfg.Search.Query)

	htmlPath := filepath.Join(cfg.Report.Dir, "report.html")
	if err := report.WriteHTML(htmlPath, rep); err != nil {
		logger.Error("failed to write html report", "error", err)
	} else {
		logger.Info("report written", "path", htmlPath, "log", textLog.Path())
	}

	for _, p := range rep.Products {
		fmt.Println(p.String())
	}

	return runErr
}
