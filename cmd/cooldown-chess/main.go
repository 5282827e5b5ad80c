package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "github.com/park285/cooldown-chess/internal/config"
	"github.com/park285/cooldown-chess/internal/egress"
	"github.com/park285/cooldown-chess/internal/hub"
	"github.com/park285/cooldown-chess/internal/msgcat"
	"github.com/park285/cooldown-chess/internal/obslog"
	"github.com/park285/cooldown-chess/internal/presence"
	"github.com/park285/cooldown-chess/internal/record"
	"github.com/park285/cooldown-chess/internal/results"
	"github.com/park285/cooldown-chess/internal/room"
	"github.com/park285/cooldown-chess/internal/session"
	"github.com/park285/cooldown-chess/internal/wsserver"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	texts, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 선택 싱크: 설정된 것만 붙인다
	var sinks []record.Sink
	var presenceStore *presence.Store
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		presenceStore, err = presence.Open(ctx, cfg.RedisURL, cfg.PresenceTTL)
		cancel()
		if err != nil {
			logger.Fatal("presence store init error", zap.Error(err))
		}
		sinks = append(sinks, presenceStore)
	}
	var repo *results.Repository
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		repo, err = results.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal("results repository init error", zap.Error(err))
		}
		sinks = append(sinks, repo)
	}
	if cfg.ResultWebhookURL != "" {
		token := cfg.ResultWebhookToken
		sinks = append(sinks, egress.NewClient(cfg.ResultWebhookURL, egress.WithHeaderProvider(func() map[string]string {
			if token == "" {
				return nil
			}
			return map[string]string{"Authorization": "Bearer " + token}
		})))
	}
	dispatcher := record.NewDispatcher(sinks,
		record.WithQueueSize(cfg.RecordQueueSize),
		record.WithLogger(obslog.Named("record")),
	)

	var sessionOpts []session.Option
	if len(cfg.Cooldowns) > 0 {
		sessionOpts = append(sessionOpts, session.WithCooldowns(cfg.Cooldowns))
	}
	h := hub.New(rootCtx,
		hub.WithLogger(obslog.Named("hub")),
		hub.WithRoomOptions(
			room.WithEmitter(dispatcher),
			room.WithTexts(texts),
			room.WithSessionOptions(sessionOpts...),
		),
	)

	ws := wsserver.New(h,
		wsserver.WithConfig(wsserver.Config{
			OutboxSize:     cfg.OutboxSize,
			PingInterval:   cfg.WSPingInterval,
			OriginPatterns: cfg.AllowedOrigins,
		}),
		wsserver.WithLogger(obslog.Named("ws")),
		wsserver.WithTexts(texts),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           ws.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		logger.Info("server_listening", zap.String("addr", cfg.ListenAddr), zap.Int("sinks", len(sinks)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown_started", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown; closing the rooms drops them
	if err := h.Shutdown(ctx); err != nil {
		logger.Warn("hub shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("record dispatcher close", zap.Error(err))
	}
	_ = presenceStore.Close()
	_ = repo.Close()
	logger.Info("shutdown_complete")
}
