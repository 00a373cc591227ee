package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DBPath      string           `json:"db_path"`
	Port        int              `json:"port"`
	LogConfig   logger.LogConfig `json:"log_config"`
	CORSOrigins []string         `json:"cors_origins"`
	AI          AIConfig         `json:"ai"`
	Pipeline    PipelineConfig   `json:"pipeline"`
	Query       QueryConfig      `json:"query"`
	Jobs        JobsConfig       `json:"jobs"`
}

type AIConfig struct {
	EmbedProvider  string      `json:"embed_provider"`
	EmbedModel     string      `json:"embed_model"`
	EmbedDimension int         `json:"embed_dimension"`
	EmbedArgs      interface{} `json:"embed_args"`
	ChatProvider   string      `json:"chat_provider"`
	ChatModel      string      `json:"chat_model"`
	ChatArgs       interface{} `json:"chat_args"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	CacheSize      int         `json:"cache_size"`
	CacheTTLMins   int         `json:"cache_ttl_minutes"`
}

type PipelineConfig struct {
	BatchSize       int `json:"batch_size"`
	MaxAttempts     int `json:"max_attempts"`
	BackoffBaseMs   int `json:"backoff_base_ms"`
	QueueDepth      int `json:"queue_depth"`
	PollIntervalSec int `json:"poll_interval_seconds"`
}

type QueryConfig struct {
	DefaultK     int `json:"default_k"`
	MaxK         int `json:"max_k"`
	SnippetChars int `json:"snippet_chars"`
	// RateLimitMs throttles the model-backed query endpoints per
	// client. Zero disables throttling.
	RateLimitMs int `json:"rate_limit_ms"`
}

type JobsConfig struct {
	RequeueSpec      string `json:"requeue_spec"`
	CompactSpec      string `json:"compact_spec"`
	PruneSpec        string `json:"prune_spec"`
	NotificationKeep int    `json:"notification_keep"`
	RequeueBatch     int    `json:"requeue_batch"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.EmbedProvider == "" {
		return nil, fmt.Errorf("ai.embed_provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.EmbedDimension <= 0 {
		return nil, fmt.Errorf("ai.embed_dimension is required")
	}
	if cfg.AI.ChatProvider == "" {
		cfg.AI.ChatProvider = cfg.AI.EmbedProvider
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.AI.CacheSize <= 0 {
		cfg.AI.CacheSize = 4096
	}
	if cfg.AI.CacheTTLMins <= 0 {
		cfg.AI.CacheTTLMins = 120
	}
	if cfg.Pipeline.BatchSize <= 0 {
		cfg.Pipeline.BatchSize = 32
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.BackoffBaseMs <= 0 {
		cfg.Pipeline.BackoffBaseMs = 500
	}
	if cfg.Pipeline.QueueDepth <= 0 {
		cfg.Pipeline.QueueDepth = 256
	}
	if cfg.Pipeline.PollIntervalSec <= 0 {
		cfg.Pipeline.PollIntervalSec = 5
	}
	if cfg.Query.DefaultK <= 0 {
		cfg.Query.DefaultK = 5
	}
	if cfg.Query.MaxK <= 0 {
		cfg.Query.MaxK = 10
	}
	if cfg.Query.SnippetChars <= 0 {
		cfg.Query.SnippetChars = 1200
	}
	if cfg.Jobs.RequeueSpec == "" {
		cfg.Jobs.RequeueSpec = "*/30 * * * *"
	}
	if cfg.Jobs.CompactSpec == "" {
		cfg.Jobs.CompactSpec = "15 * * * *"
	}
	if cfg.Jobs.PruneSpec == "" {
		cfg.Jobs.PruneSpec = "45 3 * * *"
	}
	if cfg.Jobs.NotificationKeep <= 0 {
		cfg.Jobs.NotificationKeep = 1000
	}
	if cfg.Jobs.RequeueBatch <= 0 {
		cfg.Jobs.RequeueBatch = 100
	}
	return &cfg, nil
}
