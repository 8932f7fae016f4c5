package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gatekeeper-bot/internal/admin"
	"gatekeeper-bot/internal/audit"
	"gatekeeper-bot/internal/config"
	"gatekeeper-bot/internal/dispatch"
	"gatekeeper-bot/internal/line"
	"gatekeeper-bot/internal/messaging"
	"gatekeeper-bot/internal/pending"
	"gatekeeper-bot/internal/server"
	"gatekeeper-bot/internal/telegram"
	"gatekeeper-bot/internal/timer"
	"gatekeeper-bot/internal/verify"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "gatekeeper-bot",
		Short:        "challenge new group members with a secret code",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a config file (optional)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	if !cfg.JSONFormat {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Create root context with cancellation
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// WaitGroup for tracking active goroutines
	var wg sync.WaitGroup

	// Volatile verification state
	timers := timer.NewService(logger)
	defer timers.Stop()
	store := pending.NewStore(timers)
	admins := admin.NewState(cfg.Admin.IDs, cfg.Admin.PTMessage)

	// Audit sinks
	var sinks audit.Multi
	var auditLog *audit.SQLiteStore
	if cfg.Audit.DBPath != "" {
		auditLog, err = audit.NewSQLiteStore(cfg.Audit.DBPath)
		if err != nil {
			logger.Error("failed to open audit log", zap.Error(err))
			return err
		}
		defer auditLog.Close()
		sinks = append(sinks, auditLog)
	}
	var hub *audit.Hub
	if cfg.Server.EventsEnabled {
		hub = audit.NewHub(logger)
		defer hub.Close()
		sinks = append(sinks, hub)
	}

	// Platform gateway
	var gateway messaging.Gateway
	var parser *line.Parser
	var tgAPI *tgbotapi.BotAPI
	switch cfg.Platform {
	case config.PlatformLINE:
		lineGateway, err := line.NewGateway(cfg.LINE.ChannelAccessToken, "")
		if err != nil {
			logger.Error("failed to create line gateway", zap.Error(err))
			return err
		}
		gateway = lineGateway
		parser = line.NewParser(cfg.LINE.ChannelSecret, logger)
	case config.PlatformTelegram:
		tgAPI, err = telegram.NewAPI(cfg.Telegram)
		if err != nil {
			logger.Error("failed to create telegram bot", zap.Error(err))
			return err
		}
		gateway = telegram.NewGateway(tgAPI)
	}

	machine := verify.NewMachine(store, timers, gateway, sinks, verify.Config{
		SecretCode:      cfg.Verification.SecretCode,
		Timeout:         cfg.Verification.Timeout,
		DeliveryTimeout: cfg.RequestTimeout,
	}, logger)

	dispatcher := dispatch.New(machine, admin.NewProcessor(admins, logger), gateway, dispatch.Options{
		MonitoredGroups: cfg.Verification.Groups,
		DedupeSize:      cfg.Webhook.DedupeSize,
		DedupeTTL:       cfg.Webhook.DedupeTTL,
	}, logger)

	// HTTP surface
	deps := server.Deps{Dispatcher: dispatcher, APIToken: cfg.Server.APIToken, Logger: logger}
	if parser != nil {
		deps.Parser = parser
	}
	if hub != nil {
		deps.Events = hub
	}
	if auditLog != nil {
		deps.Audit = auditLog
	}
	srv := server.New(server.NewRouter(deps), cfg.Server.Port, cfg.Server.ShutdownTimeout, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(rootCtx); err != nil {
			logger.Error("http server error", zap.Error(err))
			rootCancel()
		}
	}()

	if tgAPI != nil {
		bot := telegram.NewBot(tgAPI, dispatcher, cfg.Telegram, cfg.RequestTimeout, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(rootCtx); err != nil && err != context.Canceled {
				logger.Error("bot error", zap.Error(err))
			}
		}()
	}

	logger.Info("gatekeeper started",
		zap.String("platform", cfg.Platform),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("verification_timeout", cfg.Verification.Timeout),
		zap.Int("admins", len(admins.Admins())),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-rootCtx.Done():
	}

	// Cancel root context to signal all goroutines
	rootCancel()

	// Wait for graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete",
			zap.Int("abandoned_pending_members", store.Len()),
		)
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
	return nil
}
