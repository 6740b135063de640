package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types accepted in InputConfig.SourceType.
const (
	SourceText = "text"
	SourcePcap = "pcap"
)

// InputConfig names the lookup table and the flow log to classify.
type InputConfig struct {
	LookupTable string `yaml:"lookup_table"`
	FlowLogs    string `yaml:"flow_logs"`
	SourceType  string `yaml:"source_type"`
	// LogFormat is a space-separated list of field names; empty selects the default layout.
	LogFormat string `yaml:"log_format"`
}

// EngineConfig controls how the pipeline drives the classification engine.
type EngineConfig struct {
	NumWorkers int `yaml:"num_workers"`
	ChunkSize  int `yaml:"chunk_size"`
	// NumShards is used by the pcap flow builder.
	NumShards uint32 `yaml:"num_shards"`
}

// TextConfig holds settings for the text writer.
type TextConfig struct {
	RootPath string `yaml:"root_path"`
}

// GobConfig holds settings for the gob writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the connection details for NATS.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Text       TextConfig       `yaml:"text"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
}

// OutputConfig lists the writers a report is sent to.
type OutputConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// StreamConfig configures the NATS streaming aggregator and probe.
type StreamConfig struct {
	NATSURL          string `yaml:"nats_url"`
	Subject          string `yaml:"subject"`
	SnapshotInterval string `yaml:"snapshot_interval"`
	// ResetOnSnapshot starts a new measurement period after every snapshot.
	ResetOnSnapshot bool `yaml:"reset_on_snapshot"`
	// BatchSize is the number of lines the probe packs into one message.
	BatchSize int `yaml:"batch_size"`
}

// APIConfig holds the listen addresses of the API process.
type APIConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Input  InputConfig  `yaml:"input"`
	Engine EngineConfig `yaml:"engine"`
	Output OutputConfig `yaml:"output"`
	Stream StreamConfig `yaml:"stream"`
	API    APIConfig    `yaml:"api"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when no config file is given: the
// classic file names in the working directory and a single text writer.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			LookupTable: "lookup_table.txt",
			FlowLogs:    "log_files.txt",
			SourceType:  SourceText,
		},
		Engine: EngineConfig{
			NumWorkers: 1,
			ChunkSize:  4096,
			NumShards:  64,
		},
		Output: OutputConfig{
			Writers: []WriterDef{
				{Type: "text", Enabled: true, Text: TextConfig{RootPath: "."}},
			},
		},
		Stream: StreamConfig{
			NATSURL:          "nats://127.0.0.1:4222",
			Subject:          "flowtagger.flowlogs",
			SnapshotInterval: "1m",
			BatchSize:        512,
		},
		API: APIConfig{
			HttpListenAddr: ":8080",
			GrpcListenAddr: ":9090",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Input.SourceType {
	case "", SourceText, SourcePcap:
	default:
		return fmt.Errorf("unknown source_type '%s'", c.Input.SourceType)
	}
	if c.Engine.NumWorkers < 0 {
		return fmt.Errorf("engine.num_workers must not be negative")
	}
	if c.Engine.ChunkSize < 0 {
		return fmt.Errorf("engine.chunk_size must not be negative")
	}
	if c.Stream.SnapshotInterval != "" {
		if _, err := time.ParseDuration(c.Stream.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid stream.snapshot_interval: %w", err)
		}
	}
	return nil
}
