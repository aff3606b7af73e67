package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"toolhub/cmd/aggregate/handlers"
	"toolhub/config"
	"toolhub/db"
	"toolhub/internal/eventbus"
	"toolhub/internal/logger"
	"toolhub/repositories"
)

const groupID = "toolhub-aggregate"

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokers := cfg.Kafka.BootstrapServers
	if brokers == "" {
		logger.Log.Error("kafka.bootstrap_servers (KAFKA_BOOTSTRAP_SERVERS) is required")
		os.Exit(1)
	}

	// MongoDB 초기화
	if err := db.Init(ctx, cfg.Mongo); err != nil {
		logger.Log.Errorf("failed to initialize MongoDB: %v", err)
		os.Exit(1)
	}
	defer db.Disconnect(context.Background())

	// EventBus 초기화 및 토픽 보장
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

	h := handlers.NewActivityHandlers(repositories.NewStatsRepository(db.Database()))

	logger.Log.Info("starting aggregate service with eventbus...")

	// Graceful shutdown 설정
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopped := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stopped)
		if err := bus.Subscribe(ctx, groupID, topic, h.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Errorf("eventbus subscribe error: %v", err)
		}
	}()

	select {
	case <-sigChan:
		logger.Log.Info("received shutdown signal, shutting down aggregate service...")
	case <-stopped:
	}

	cancel()
	wg.Wait()

	logger.Log.Info("aggregate service stopped")
}
