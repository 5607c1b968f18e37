package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"snatcher/internal/browser"
	"snatcher/internal/config"
	"snatcher/internal/currency"
	"snatcher/internal/database"
	"snatcher/internal/extract"
	"snatcher/internal/notify"
	"snatcher/internal/schedule"
	"snatcher/internal/scrape"
	"snatcher/internal/snatch"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using system environment")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL())
	if err != nil {
		logger.Error("cannot connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := &database.PostgresRepository{Pool: pool}
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		logger.Error("cannot build notifier", "error", err)
		os.Exit(1)
	}

	browsers, err := browser.NewFactory(cfg.Browser, logger.With("component", "browser"))
	if err != nil {
		logger.Error("cannot build browser factory", "error", err)
		os.Exit(1)
	}

	norm := currency.NewNormalizer(cfg.Currency.Base, cfg.Currency.Rates)
	rules := extract.NewRegistry()
	extractor := extract.New(norm, logger.With("component", "extract"))
	engine := snatch.NewEngine(logger.With("component", "snatch"), repo, notifier)
	orchestrator := scrape.NewOrchestrator(
		logger.With("component", "scrape"),
		repo, engine, browsers, rules, extractor, norm, cfg.Scrape,
	)

	interval := time.Duration(cfg.Scheduler.IntervalHours) * time.Hour
	scheduler := schedule.New(logger.With("component", "schedule"), orchestrator, interval)
	scheduler.Run(ctx)

	logger.Info("shut down")
}

func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) (notify.Notifier, error) {
	channels := notify.MultiNotifier{
		notify.NewMailNotifier(cfg.SMTP, logger.With("component", "notify")),
	}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram, logger.With("component", "notify"))
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
	}
	return channels, nil
}
