package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/logging"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/stream"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML config file.")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log.Info("Starting flowtagger-stream...")

	// 2. Initialize the aggregator
	agg, err := stream.NewAggregator(cfg, log, metrics.NewMetrics())
	if err != nil {
		log.Fatalf("Failed to create stream aggregator: %v", err)
	}

	// 3. Start consuming
	if err := agg.Start(); err != nil {
		log.Fatalf("Failed to start stream aggregator: %v", err)
	}

	// 4. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutdown signal received, stopping aggregator...")
	report := agg.Stop()
	log.Infof("Shutdown complete. Final snapshot: %d processed, %d skipped.",
		report.Stats.Processed, report.Stats.Skipped)
}
