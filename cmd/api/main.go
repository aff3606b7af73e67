package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"toolhub/activity"
	"toolhub/cmd/api/auth"
	"toolhub/cmd/api/router"
	"toolhub/cmd/api/services"
	"toolhub/config"
	"toolhub/db"
	"toolhub/internal/chatstack"
	"toolhub/internal/eventbus"
	"toolhub/internal/logger"
	"toolhub/repositories"
	"toolhub/session"
)

const janitorInterval = time.Minute

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB 초기화
	if err := db.Init(ctx, cfg.Mongo); err != nil {
		logger.Log.Errorf("failed to initialize MongoDB: %v", err)
		os.Exit(1)
	}
	defer db.Disconnect(context.Background())

	tools := repositories.NewToolRepository(db.Database())
	sponsors := repositories.NewSponsorRepository(db.Database())

	// 분석 이벤트: 브로커가 없으면 로그로만 남긴다.
	var analytics activity.AnalyticsRecorder = activity.LogAnalytics{}
	if brokers := cfg.Kafka.BootstrapServers; brokers != "" {
		topic := eventbus.NewTopic(cfg.Kafka.ChatTopic)
		if err := eventbus.EnsureTopic(brokers, topic, 3); err != nil {
			logger.Log.Errorf("failed to ensure eventbus topic: %v", err)
		}
		bus, err := eventbus.NewKafkaEventBus(brokers)
		if err != nil {
			logger.Log.Errorf("failed to create event bus: %v", err)
			os.Exit(1)
		}
		defer bus.Close()
		analytics = activity.NewEventBusAnalytics(bus, topic)
	}
	dispatcher := activity.NewDispatcher(tools, analytics, 0)

	clk := clock.New()
	deps, err := chatstack.Build(ctx, cfg, chatstack.Options{
		Inventory: sponsors,
		Notifier:  dispatcher,
		Clock:     clk,
	})
	if err != nil {
		logger.Log.Errorf("failed to build chat stack: %v", err)
		os.Exit(1)
	}

	manager := session.NewManager(cfg.Chat.SessionTTL, clk)
	go manager.RunJanitor(ctx, janitorInterval)

	jwtManager, err := auth.NewJWTManagerFromEnv()
	if err != nil {
		logger.Log.Warnf("only anonymous visitors are accepted: %v", err)
	}

	chatSvc := services.NewChatService(tools, manager, deps, cfg)
	engine := router.New(router.Options{Chat: chatSvc, JWT: jwtManager, Ping: db.Ping})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.WithCORS(engine, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("starting api server on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("api server error: %v", err)
			cancel()
		}
	}()

	// Graceful shutdown 설정
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Log.Info("received shutdown signal, shutting down api server...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("api server shutdown error: %v", err)
	}

	cancel()
	manager.CloseAll()
	dispatcher.Wait()

	logger.Log.Info("api server stopped")
}
