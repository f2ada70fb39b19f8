package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/WilBtc/sentinel-triage/internal/config"
	"github.com/WilBtc/sentinel-triage/internal/health"
	"github.com/WilBtc/sentinel-triage/internal/orchestrator"
)

func main() {
	log.Printf("Sentinel Triage starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded")
	log.Printf("  NATS: %s", cfg.NatsURL)
	log.Printf("  Finding store: %s", cfg.FindingStoreURL)
	log.Printf("  Partitions: %d", cfg.Partitions)

	orch := orchestrator.NewOrchestrator(cfg)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	health.StartServer(cfg.HealthPort)

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	// Run the pipeline in background
	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Orchestrator error: %v", err)
		}
	}()

	// Block until shutdown signal
	<-sigChan
	log.Printf("Shutdown signal received...")

	cancel()

	if err := orch.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Printf("Sentinel Triage stopped successfully")
}
