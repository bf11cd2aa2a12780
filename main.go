package main

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"github.com/careloop/leadscout/internal/api"
	"github.com/careloop/leadscout/internal/config"
	"github.com/careloop/leadscout/pkg/database"
	"github.com/careloop/leadscout/pkg/kafka"
)

func main() {
	// Load .env if present; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr)
	if err != nil {
		slog.Error("❌ Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("✅ Connected to databases")

	if err := db.CreateTables(); err != nil {
		slog.Error("❌ Failed to create tables", "error", err)
		os.Exit(1)
	}

	// Kafka is optional: without a broker, notifications fall back to the
	// HTTP sink.
	var producer sarama.SyncProducer
	if cfg.Kafka.Broker != "" {
		producer, err = kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
		if err != nil {
			slog.Error("❌ Kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		slog.Info("✅ Connected to Kafka")
	}

	server := api.NewServer(cfg, db, producer)

	go func() {
		slog.Info("🚀 Server running", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			slog.Error("❌ Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("🛑 Server shutting down...")
	if err := server.Shutdown(); err != nil {
		slog.Error("❌ Shutdown error", "error", err)
	}
}
