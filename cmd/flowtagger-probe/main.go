package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/logging"
	"FlowTagger/internal/probe"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	// --- Command-Line Flag Parsing ---
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to publish a flow log, 'sub' to subscribe and print.")
	file := flag.String("file", "", "Flow log file to publish (required for pub mode).")
	configPath := flag.String("config", "", "Path to a YAML config file. Defaults are used when empty.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		runPublisher(cfg.Stream, *file, log)
	case "sub":
		runSubscriber(cfg.Stream, log)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runPublisher publishes every line of a flow log to NATS in batches.
func runPublisher(cfg config.StreamConfig, path string, log *logrus.Logger) {
	if path == "" {
		log.Error("Error: -file flag is required for pub mode.")
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Error opening flow log %s: %v", path, err)
	}
	defer f.Close()

	pub, err := probe.NewPublisher(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	if _, err := pub.PublishReader(path, f, cfg.BatchSize); err != nil {
		log.Errorf("Publishing stopped: %v", err)
	}
}

// runSubscriber prints every batch received on the subject.
func runSubscriber(cfg config.StreamConfig, log *logrus.Logger) {
	log.Info("Starting flowtagger-probe in SUBSCRIBER mode...")

	sub, err := probe.NewSubscriber(cfg, log)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	handler := func(b *probe.Batch) {
		log.WithFields(logrus.Fields{
			"source":     b.Source,
			"first_line": b.FirstLine,
			"lines":      len(b.Lines),
		}).Info("Received batch")
		for _, line := range b.Lines {
			fmt.Println(line)
		}
	}
	if err := sub.Start(handler); err != nil {
		sub.Close()
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	// Set up a channel to handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received, cleaning up...")
}
