package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/config"
	"github.com/gugamistri/meetingmind-sub001/internal/circuitbreaker"
	"github.com/gugamistri/meetingmind-sub001/internal/clients/caldav"
	"github.com/gugamistri/meetingmind-sub001/internal/domain"
	"github.com/gugamistri/meetingmind-sub001/internal/events"
	"github.com/gugamistri/meetingmind-sub001/internal/notify"
	"github.com/gugamistri/meetingmind-sub001/internal/ratelimit"
	"github.com/gugamistri/meetingmind-sub001/internal/scheduler"
	"github.com/gugamistri/meetingmind-sub001/internal/service"
	"github.com/gugamistri/meetingmind-sub001/internal/storage"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("failed to load config", "error", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatalw("failed to init storage", "error", err)
	}
	defer store.Close()

	bus := events.NewBus(logger)

	if cfg.TelegramToken != "" && cfg.NotifyChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.NotifyChatID, logger)
		if err != nil {
			logger.Fatalw("failed to init telegram notifier", "error", err)
		}
		bus.Subscribe(notifier)
	}

	if cfg.CalDAVURL != "" && cfg.CalDAVUsername != "" {
		account := &domain.CalendarAccount{
			Provider:  "caldav",
			Email:     cfg.CalDAVUsername,
			ServerURL: cfg.CalDAVURL,
			Username:  cfg.CalDAVUsername,
			Password:  cfg.CalDAVPassword,
			IsActive:  true,
		}
		if err := store.UpsertAccount(account); err != nil {
			logger.Fatalw("failed to register caldav account", "error", err)
		}
		logger.Infow("caldav account registered", "account_id", account.ID, "username", account.Username)
	}

	limiter := ratelimit.New(logger)
	breakers := circuitbreaker.NewManager(logger)

	syncSvc := service.NewSyncService(store, bus, limiter, breakers, cfg.EventRetentionDays, logger)
	syncSvc.RegisterCalendarService("caldav", caldav.NewService())

	detectorSvc := service.NewDetectorService(store, bus, nil, cfg.Detection, logger)

	sched := scheduler.New(cfg.Timezone, syncSvc, detectorSvc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Errorw("scheduler error", "error", err)
		}
	}()

	logger.Info("meetingmind sync core started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	sched.Stop()
}
