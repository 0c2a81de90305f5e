package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/northpay/gateway/internal/adapter/secondary/database"
	"github.com/northpay/gateway/internal/adapter/secondary/messaging"
	"github.com/northpay/gateway/internal/config"
	"github.com/northpay/gateway/internal/constant/model/db"
	"github.com/northpay/gateway/internal/core/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize secondary adapter: Database
	dbConn, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize secondary adapter: Repository (implements output port)
	orderRepo := database.NewGormOrderRepository(dbConn)

	// Initialize core service: Settlement processor
	processor := service.NewSettlementProcessor(logger, orderRepo)

	// Initialize secondary adapter: Messaging
	msgClient, err := messaging.NewRabbitMQClient(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer msgClient.Close()

	// Start consuming messages
	err = msgClient.ConsumeSettlements(func(msg messaging.SettlementMessage) error {
		return processor.Process(context.Background(), msg.OrderID)
	})
	if err != nil {
		logger.Fatal("Failed to start consuming messages", zap.Error(err))
	}

	logger.Info("Settlement worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
}
