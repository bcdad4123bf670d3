// mindloop/config.go

package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

// SchedulingConfig tunes the Dispatcher and MessageManager loops.
type SchedulingConfig struct {
	MaxConcurrent  int     `yaml:"max_concurrent"`
	CheckInterval  string  `yaml:"check_interval"`
	DistBase       string  `yaml:"dist_base"`
	DistMin        string  `yaml:"dist_min"`
	DistMax        string  `yaml:"dist_max"`
	JitterFactor   float64 `yaml:"jitter_factor"`
	MaxQueueSize   int     `yaml:"max_queue_size"`
	RetryBaseDelay string  `yaml:"retry_base_delay"`
	MaxRetries     int     `yaml:"max_retries"`
}

// InterruptionConfig tunes the MessageManager's interruption policy.
type InterruptionConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MaxLimit     int     `yaml:"max_limit"`
	ProbFactor   float64 `yaml:"prob_factor"`
	AFCReduction float64 `yaml:"afc_reduction"`
}

// ConcurrencyConfig tunes per-stream worker fan-out.
type ConcurrencyConfig struct {
	ConcurrentPerStream int  `yaml:"concurrent_per_stream"`
	ProcessByUserID     bool `yaml:"process_by_user_id"`
}

// InterestConfig tunes InterestScorer.
type InterestConfig struct {
	ReplyThreshold          float64 `yaml:"reply_threshold"`
	NonReplyActionThreshold float64 `yaml:"non_reply_action_threshold"`
	HighMatchThreshold      float64 `yaml:"high_match_threshold"`
	MentionThreshold        float64 `yaml:"mention_threshold"`
	WeightKeywordMatch      float64 `yaml:"w_match"`
	WeightMention           float64 `yaml:"w_mention"`
	WeightRelationship      float64 `yaml:"w_rel"`
	WeightRecency           float64 `yaml:"w_rec"`
	MaxNoReplyCount         int     `yaml:"max_no_reply_count"`
}

// MemoryConfig tunes the MemorySystem subsystem.
type MemoryConfig struct {
	MinBuildInterval     string  `yaml:"min_build_interval"`
	ValueThreshold       float64 `yaml:"value_threshold"`
	FusionThreshold      float64 `yaml:"fusion_threshold"`
	VectorSimThreshold   float64 `yaml:"vector_sim_threshold"`
	SemanticSimThreshold float64 `yaml:"semantic_sim_threshold"`

	MetadataFilterLimit int `yaml:"metadata_filter_limit"`
	VectorSearchLimit   int `yaml:"vector_search_limit"`
	SemanticRerankLimit int `yaml:"semantic_rerank_limit"`
	FinalResultLimit    int `yaml:"final_result_limit"`

	WeightVector     float64 `yaml:"w_vec"`
	WeightSemantic   float64 `yaml:"w_sem"`
	WeightContextual float64 `yaml:"w_ctx"`
	WeightRecency    float64 `yaml:"w_rec"`

	RetentionHours      int     `yaml:"retention_hours"`
	BaseRetentionDays   int     `yaml:"base_retention_days"`
	ImportanceBonusDays float64 `yaml:"importance_bonus_days"`
	ConfidenceBonusDays float64 `yaml:"confidence_bonus_days"`
	AccessBonusDays     float64 `yaml:"access_bonus_days"`
	AccessBonusCap      float64 `yaml:"access_bonus_cap"`
}

// VectorStoreConfig selects and configures the Store backend, and
// carries the embedding dimension D that must match EmbeddingProvider.
type VectorStoreConfig struct {
	Backend    string `yaml:"backend"` // "memory" | "qdrant" | "postgres"
	DSN        string `yaml:"dsn"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"` // "cosine" | "euclid" | "dot" | "manhattan"
}

// LLMConfig configures the Anthropic-backed LLMProvider.
type LLMConfig struct {
	BaseURL            string `yaml:"base_url"`
	DefaultModel       string `yaml:"default_model"`
	AntiInjectionModel string `yaml:"anti_injection_model"`
	CachePrompt        bool   `yaml:"cache_prompt"`
	CallTimeout        string `yaml:"call_timeout"`
}

// EmbeddingConfig configures the OpenAI-backed EmbeddingProvider.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type AuthConfig struct {
	SecretKey   string `yaml:"secret_key"`
	TokenExpiry int    `yaml:"token_expiry"` // Token expiry in hours
}

type Config struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	DataPath           string `yaml:"data_path"`
	SingleNodeInstance bool   `yaml:"single_node_instance,omitempty"`

	AnthropicKey string   `yaml:"anthropic_key,omitempty"`
	OpenAIAPIKey string   `yaml:"openai_api_key,omitempty"`
	RedisAddr    string   `yaml:"redis_addr,omitempty"`
	KafkaBrokers []string `yaml:"kafka_brokers,omitempty"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`

	Scheduling   SchedulingConfig   `yaml:"scheduling"`
	Interruption InterruptionConfig `yaml:"interruption"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency"`
	Interest     InterestConfig     `yaml:"interest"`
	Memory       MemoryConfig       `yaml:"memory"`
	VectorStore  VectorStoreConfig `yaml:"vector_store"`
	LLM          LLMConfig          `yaml:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
}

// LoadConfig reads the configuration from a YAML file, overlays any
// .env-provided secrets, and unmarshals it into a Config struct.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		pterm.Info.Println("No .env file found, continuing with process environment only.")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		pterm.Error.Printf("Error reading config file: %v\n", err)
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		pterm.Error.Printf("Error unmarshaling config: %v\n", err)
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyEnvOverlay(&config)
	applyDefaults(&config)

	pterm.Success.Println("Configuration loaded successfully.")
	return &config, nil
}

// applyEnvOverlay lets deployment secrets override the YAML file
// without committing them to disk.
func applyEnvOverlay(c *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AnthropicKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" && c.VectorStore.DSN == "" {
		c.VectorStore.DSN = "api_key=" + v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}

func applyDefaults(c *Config) {
	if c.Auth.SecretKey == "" {
		c.Auth.SecretKey = "your-secret-key" // Default fallback (should be changed in production)
		pterm.Warning.Println("No auth secret key provided in config, using default (insecure).")
	}
	if c.Auth.TokenExpiry <= 0 {
		c.Auth.TokenExpiry = 72
	}
	if c.Scheduling.MaxConcurrent <= 0 {
		c.Scheduling.MaxConcurrent = 3
	}
	if c.Scheduling.MaxRetries <= 0 {
		c.Scheduling.MaxRetries = 3
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "memory"
	}
	if c.VectorStore.Dimensions <= 0 {
		c.VectorStore.Dimensions = 1536
	}
	if c.VectorStore.Metric == "" {
		c.VectorStore.Metric = "cosine"
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = "claude-3-7-sonnet-latest"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Interest.MaxNoReplyCount <= 0 {
		c.Interest.MaxNoReplyCount = 5
	}
}
