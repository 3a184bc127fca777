package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/docchannelbot/internal/bot"
	"github.com/Lllllllleong/docchannelbot/internal/catalog"
	"github.com/Lllllllleong/docchannelbot/internal/config"
	"github.com/Lllllllleong/docchannelbot/internal/gcp"
	"github.com/Lllllllleong/docchannelbot/internal/models"
	"github.com/Lllllllleong/docchannelbot/internal/server"
	"github.com/Lllllllleong/docchannelbot/internal/services"
	"github.com/Lllllllleong/docchannelbot/internal/stamper"
	"github.com/Lllllllleong/docchannelbot/internal/telegram"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Bot stopped.")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare catalog: %w", err)
	}

	if err := os.MkdirAll(cfg.DownloadsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create downloads dir: %w", err)
	}

	var mirror services.Mirror
	if cfg.ArchiveBucket != "" {
		m, err := gcp.NewArchiveMirror(ctx, cfg.ArchiveBucket, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		mirror = m
		logger.Info("Archive mirror enabled.", "bucket", cfg.ArchiveBucket)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Authorized on Telegram.", "bot", api.Self.UserName)

	sender, err := telegram.NewChannelSender(api, cfg.ChannelID, logger)
	if err != nil {
		return err
	}
	publisher := services.NewPublisher(store, sender, stamper.New(logger), mirror, services.PublisherConfig{
		ChannelHandle:  cfg.ChannelUsername,
		ChannelBaseURL: cfg.ChannelBaseURL,
		ScratchDir:     cfg.DownloadsDir,
	}, logger)

	handler := bot.NewHandler(api, store, publisher, nil, bot.Config{
		OwnerID:      cfg.OwnerID,
		DownloadsDir: cfg.DownloadsDir,
		Location:     cfg.Location,
		SessionTTL:   cfg.SessionTTL,
	}, logger)

	scheduler, err := services.NewScheduler(store, func(ctx context.Context, job models.ScheduledJob) {
		handler.RunScheduledJob(ctx, job)
	}, cfg.Location, logger)
	if err != nil {
		return err
	}
	handler.SetScheduler(scheduler)
	if _, err := scheduler.Restore(ctx); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Warn("Scheduler shutdown failed.", "error", err)
		}
	}()

	var pinger server.Pinger
	if p, ok := store.(server.Pinger); ok {
		pinger = p
	}
	httpServer := server.New(cfg.Port, pinger, logger)

	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		api.StopReceivingUpdates()
		return nil
	})
	g.Go(func() error {
		return handler.Run(gctx, updates)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Store, error) {
	switch cfg.CatalogBackend {
	case config.BackendFirestore:
		return catalog.OpenFirestoreStore(ctx, cfg.ProjectID, cfg.FirestoreDatabase, logger)
	default:
		return catalog.NewSQLiteStore(ctx, cfg.DatabasePath, logger)
	}
}
