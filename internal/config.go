package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
		// Domain is the externally visible base URL used in report links.
		Domain string `yaml:"domain"`
	} `yaml:"server"`
	// Providers is the ordered list of provider descriptors. Order encodes
	// resolution priority.
	Providers       []Descriptor `yaml:"providers"`
	DefaultProvider string       `yaml:"default_provider"`
	// Queue bounds the async dispatch queue.
	Queue QueueConfig `yaml:"queue"`
	// Review holds review-pipeline settings.
	Review ReviewConfig `yaml:"review"`
	// LLM configures the review engine backend.
	LLM LLMConfig `yaml:"llm"`
	// Storage configures the review log store.
	Storage StorageConfig `yaml:"storage"`
	// Notifier configures the IM notifier.
	Notifier NotifierConfig `yaml:"notifier"`
	// Reports configures HTML report output.
	Reports ReportsConfig `yaml:"reports"`
	// Forward configures the completion forwarding publisher.
	Forward ForwardConfig `yaml:"forward"`
	// SkipRules are evaluated against flattened payloads before review.
	SkipRules []SkipRule `yaml:"skip_rules"`
}

// QueueConfig bounds the dispatch worker pool.
type QueueConfig struct {
	Workers        int   `yaml:"workers"`
	Depth          int   `yaml:"depth"`
	TaskTimeoutMS  int64 `yaml:"task_timeout_ms"`
	DrainTimeoutMS int64 `yaml:"drain_timeout_ms"`
}

// ReviewConfig holds review-pipeline settings.
type ReviewConfig struct {
	// SupportedExtensions is a comma-separated allow-list of reviewable
	// file extensions.
	SupportedExtensions string `yaml:"supported_extensions"`
	PushReviewEnabled   bool   `yaml:"push_review_enabled"`
	// TimeoutMS bounds outbound diff and LLM calls inside one task.
	TimeoutMS int64 `yaml:"timeout_ms"`
}

// Extensions returns the parsed extension allow-list.
func (c ReviewConfig) Extensions() []string {
	parts := strings.Split(c.SupportedExtensions, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LLMConfig configures the review engine backend.
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible endpoint.
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMS int64  `yaml:"timeout_ms"`
}

// StorageConfig configures the review log store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// NotifierConfig configures the IM notifier.
type NotifierConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	TimeoutMS  int64  `yaml:"timeout_ms"`
	// Overrides maps a url_slug or project name to a dedicated webhook URL.
	Overrides map[string]string `yaml:"overrides"`
}

// ReportsConfig configures HTML report output.
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}

// ForwardConfig configures the completion forwarding publisher.
type ForwardConfig struct {
	Enabled      bool               `yaml:"enabled"`
	Drivers      []string           `yaml:"drivers"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming publisher.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP publisher.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL publisher.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the river job publisher.
type RiverQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// PublishRetryConfig bounds forwarding publish retries.
type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// LoadConfig loads configuration from a YAML file. Environment variables in
// the file are expanded before parsing and defaults are applied after.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Server.Domain == "" {
		cfg.Server.Domain = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "gitlab"
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.Depth == 0 {
		cfg.Queue.Depth = 64
	}
	if cfg.Queue.TaskTimeoutMS == 0 {
		cfg.Queue.TaskTimeoutMS = 300000
	}
	if cfg.Queue.DrainTimeoutMS == 0 {
		cfg.Queue.DrainTimeoutMS = 10000
	}
	if cfg.Review.SupportedExtensions == "" {
		cfg.Review.SupportedExtensions = ".java,.py,.php"
	}
	if cfg.Review.TimeoutMS == 0 {
		cfg.Review.TimeoutMS = 60000
	}
	if cfg.LLM.TimeoutMS == 0 {
		cfg.LLM.TimeoutMS = 120000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "data/reviewhooks.db"
	}
	if cfg.Notifier.TimeoutMS == 0 {
		cfg.Notifier.TimeoutMS = 10000
	}
	if cfg.Reports.Dir == "" {
		cfg.Reports.Dir = "data/reports"
	}
	if len(cfg.Forward.Drivers) == 0 {
		cfg.Forward.Drivers = []string{"gochannel"}
	}
	if cfg.Forward.GoChannel.OutputChannelBuffer == 0 {
		cfg.Forward.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Forward.HTTP.Mode == "" {
		cfg.Forward.HTTP.Mode = "topic_url"
	}
	if cfg.Forward.RiverQueue.Table == "" {
		cfg.Forward.RiverQueue.Table = "river_job"
	}
	if cfg.Forward.RiverQueue.Queue == "" {
		cfg.Forward.RiverQueue.Queue = "default"
	}
	if cfg.Forward.RiverQueue.Kind == "" {
		cfg.Forward.RiverQueue.Kind = "reviewhooks.review_completed"
	}
	if cfg.Forward.RiverQueue.MaxAttempts == 0 {
		cfg.Forward.RiverQueue.MaxAttempts = 25
	}
	if cfg.Forward.PublishRetry.Attempts == 0 {
		cfg.Forward.PublishRetry.Attempts = 3
	}
	if cfg.Forward.PublishRetry.DelayMS == 0 {
		cfg.Forward.PublishRetry.DelayMS = 500
	}
}

func validate(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one provider descriptor is required")
	}
	for _, desc := range cfg.Providers {
		if desc.Parser == "" {
			return fmt.Errorf("provider %q has no parser", desc.Name)
		}
		if _, ok := NormalizerFor(desc.Parser); !ok {
			return fmt.Errorf("provider %q references unknown parser %q", desc.Name, desc.Parser)
		}
	}
	return nil
}
