package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/manager"
	"FlowTagger/internal/logging"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/writer"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

type options struct {
	configPath  string
	lookup      string
	logs        string
	format      string
	source      string
	outDir      string
	workers     int
	interactive bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML config file. Defaults are used when empty.")
	flag.StringVar(&opts.lookup, "lookup", "", "Lookup table file (port,protocol,tag).")
	flag.StringVar(&opts.logs, "logs", "", "Flow log file, or a capture when -source=pcap.")
	flag.StringVar(&opts.format, "format", "", "Custom space-separated log format; must include dstport and protocol.")
	flag.StringVar(&opts.source, "source", "", "Source type: 'text' or 'pcap'.")
	flag.StringVar(&opts.outDir, "out", "", "Directory for tag_counts.txt and port_protocol_counts.txt.")
	flag.IntVar(&opts.workers, "workers", 0, "Number of classification workers.")
	flag.BoolVar(&opts.interactive, "i", false, "Ask for the log format and input files interactively.")
	flag.Parse()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if opts.interactive {
		if err := runInteractive(&cfg.Input); err != nil {
			fmt.Fprintf(os.Stderr, "Interactive mode aborted: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	mgr, err := manager.NewManager(cfg, log, metrics.NewMetrics())
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, mgr, log)
	stop()
	os.Exit(code)
}

type runner interface {
	Run(ctx context.Context) (*model.Report, error)
	Close()
}

// execute runs r and closes it before returning the process exit code.
func execute(ctx context.Context, r runner, log logrus.FieldLogger) int {
	defer r.Close()

	report, err := r.Run(ctx)
	if err != nil {
		if report == nil {
			log.Errorf("Error processing the log files: %v", err)
		} else {
			log.Errorf("Error writing to result files: %v", err)
		}
		return 1
	}

	log.Infof("Processed %d lines (%d skipped, %d untagged) into %d tags and %d port/protocol pairs",
		report.Stats.Processed, report.Stats.Skipped, report.Stats.Untagged,
		len(report.TagCounts), report.PortProtocolCounts.Pairs())
	log.Infof("Process completed successfully! The results are saved in %s and %s",
		writer.TagCountsFile, writer.PortProtocolCountsFile)
	return 0
}

// loadConfig reads the config file, if any, and applies the command-line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if opts.lookup != "" {
		cfg.Input.LookupTable = opts.lookup
	}
	if opts.logs != "" {
		cfg.Input.FlowLogs = opts.logs
	}
	if opts.format != "" {
		cfg.Input.LogFormat = opts.format
	}
	if opts.source != "" {
		cfg.Input.SourceType = opts.source
	}
	if opts.workers > 0 {
		cfg.Engine.NumWorkers = opts.workers
	}
	if opts.outDir != "" {
		setTextOutput(cfg, opts.outDir)
	}
	return cfg, cfg.Validate()
}

// setTextOutput points every text writer at dir, adding one if none is configured.
func setTextOutput(cfg *config.Config, dir string) {
	found := false
	for i := range cfg.Output.Writers {
		if cfg.Output.Writers[i].Type == "text" {
			cfg.Output.Writers[i].Enabled = true
			cfg.Output.Writers[i].Text.RootPath = dir
			found = true
		}
	}
	if !found {
		cfg.Output.Writers = append(cfg.Output.Writers, config.WriterDef{
			Type:    "text",
			Enabled: true,
			Text:    config.TextConfig{RootPath: dir},
		})
	}
}
