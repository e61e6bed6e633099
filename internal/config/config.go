package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageConfig holds the connection settings for the record store.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	LeaseTTL    string `yaml:"lease_ttl"`
}

// ArtifactConfig holds the filesystem location of model artifacts.
type ArtifactConfig struct {
	RootPath string `yaml:"root_path"`
}

// TrainingConfig configures the training orchestrator. Contamination is the
// expected fraction of anomalous training data and must stay in [0.01, 0.5].
type TrainingConfig struct {
	MaxSamples       int     `yaml:"max_samples"`
	MinSamples       int     `yaml:"min_samples"`
	Contamination    float64 `yaml:"contamination"`
	Trees            int     `yaml:"trees"`
	SampleSize       int     `yaml:"sample_size"`
	Seed             int64   `yaml:"seed"`
	SyntheticSamples int     `yaml:"synthetic_samples"`
	Interval         string  `yaml:"interval"`
}

// PredictConfig configures the batch predictor.
type PredictConfig struct {
	BatchSize int     `yaml:"batch_size"`
	AlertRate float64 `yaml:"alert_rate"`
	Interval  string  `yaml:"interval"`
}

// EventsConfig configures the NATS event bus.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// SMTPConfig holds the settings for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// ClickHouseConfig holds the connection settings for the analytics store.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AnalyticsConfig configures the optional scoring-run analytics sink.
type AnalyticsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// APIConfig configures the ops HTTP API server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// IngestConfig configures the capture probe and flow aggregator.
type IngestConfig struct {
	FlushInterval string `yaml:"flush_interval"`
	FlowTimeout   string `yaml:"flow_timeout"`
	NumWorkers    int    `yaml:"num_workers"`
	ChannelSize   int    `yaml:"size_of_packet_channel"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Artifacts ArtifactConfig  `yaml:"artifacts"`
	Training  TrainingConfig  `yaml:"training"`
	Predict   PredictConfig   `yaml:"predict"`
	Events    EventsConfig    `yaml:"events"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	API       APIConfig       `yaml:"api"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// LoadConfig reads the configuration from a YAML file, applies defaults and
// validates it.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.LeaseTTL == "" {
		c.Storage.LeaseTTL = "5m"
	}
	if c.Artifacts.RootPath == "" {
		c.Artifacts.RootPath = "data/artifacts"
	}
	if c.Training.MaxSamples == 0 {
		c.Training.MaxSamples = 10000
	}
	if c.Training.MinSamples == 0 {
		c.Training.MinSamples = 100
	}
	if c.Training.Contamination == 0 {
		c.Training.Contamination = 0.1
	}
	if c.Training.Trees == 0 {
		c.Training.Trees = 100
	}
	if c.Training.SampleSize == 0 {
		c.Training.SampleSize = 256
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = 42
	}
	if c.Training.SyntheticSamples == 0 {
		c.Training.SyntheticSamples = 1000
	}
	if c.Training.Interval == "" {
		c.Training.Interval = "1h"
	}
	if c.Predict.BatchSize == 0 {
		c.Predict.BatchSize = 1000
	}
	if c.Predict.AlertRate == 0 {
		c.Predict.AlertRate = 0.2
	}
	if c.Predict.Interval == "" {
		c.Predict.Interval = "5m"
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "flowsentry.events"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Ingest.FlushInterval == "" {
		c.Ingest.FlushInterval = "10s"
	}
	if c.Ingest.FlowTimeout == "" {
		c.Ingest.FlowTimeout = "30s"
	}
	if c.Ingest.NumWorkers == 0 {
		c.Ingest.NumWorkers = 4
	}
	if c.Ingest.ChannelSize == 0 {
		c.Ingest.ChannelSize = 1000
	}
}

// Validate rejects configurations the scoring subsystem cannot run with.
func (c *Config) Validate() error {
	if c.Training.Contamination < 0.01 || c.Training.Contamination > 0.5 {
		return fmt.Errorf("training.contamination must be in [0.01, 0.5], got %g", c.Training.Contamination)
	}
	if c.Training.MinSamples <= 0 {
		return fmt.Errorf("training.min_samples must be positive, got %d", c.Training.MinSamples)
	}
	if c.Training.MaxSamples < c.Training.MinSamples {
		return fmt.Errorf("training.max_samples (%d) must be >= training.min_samples (%d)",
			c.Training.MaxSamples, c.Training.MinSamples)
	}
	if c.Predict.BatchSize <= 0 {
		return fmt.Errorf("predict.batch_size must be positive, got %d", c.Predict.BatchSize)
	}
	if c.Predict.AlertRate <= 0 || c.Predict.AlertRate > 1 {
		return fmt.Errorf("predict.alert_rate must be in (0, 1], got %g", c.Predict.AlertRate)
	}
	for name, value := range map[string]string{
		"storage.lease_ttl":     c.Storage.LeaseTTL,
		"training.interval":     c.Training.Interval,
		"predict.interval":      c.Predict.Interval,
		"ingest.flush_interval": c.Ingest.FlushInterval,
		"ingest.flow_timeout":   c.Ingest.FlowTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}
