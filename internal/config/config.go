package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Milvus    MilvusConfig    `yaml:"milvus" mapstructure:"milvus"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank" mapstructure:"rerank"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Guard     GuardConfig     `yaml:"guard" mapstructure:"guard"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the analysis-record database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OCRConfig configures the subprocess OCR boundary.
type OCRConfig struct {
	PythonPath  string `yaml:"python_path" mapstructure:"python_path"`
	ScriptPath  string `yaml:"script_path" mapstructure:"script_path"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	UseGPU      bool   `yaml:"use_gpu" mapstructure:"use_gpu"`
	GPUID       int    `yaml:"gpu_id" mapstructure:"gpu_id"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MilvusConfig holds vector store settings.
type MilvusConfig struct {
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	Token               string `yaml:"token" mapstructure:"token"`
	KnowledgeCollection string `yaml:"knowledge_collection" mapstructure:"knowledge_collection"`
	ProfileCollection   string `yaml:"profile_collection" mapstructure:"profile_collection"`
}

// EmbeddingConfig holds the embedding service settings.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	Dim     int    `yaml:"dim" mapstructure:"dim"`
}

// RerankConfig holds the reranking service settings.
type RerankConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// LLMConfig configures the generative model boundary. Provider selects the
// backend: "vllm" for the local fine-tuned model, "anthropic" for the hosted
// alternative.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ExtractConfig configures table extraction behavior.
type ExtractConfig struct {
	MaxConcurrent  int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// RetrievalConfig configures dual-path retrieval.
type RetrievalConfig struct {
	KnowledgeK      int     `yaml:"knowledge_k" mapstructure:"knowledge_k"`
	ProfileK        int     `yaml:"profile_k" mapstructure:"profile_k"`
	OverFetchFactor int     `yaml:"over_fetch_factor" mapstructure:"over_fetch_factor"`
	ScoreThreshold  float64 `yaml:"score_threshold" mapstructure:"score_threshold"`
}

// GuardConfig configures the risk guard rule sources. Empty paths keep the
// compiled-in defaults.
type GuardConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	UploadDir string `yaml:"upload_dir" mapstructure:"upload_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHECKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "checkupai.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.upload_dir", "data/raw_reports")
	v.SetDefault("ocr.python_path", "python3")
	v.SetDefault("ocr.output_dir", "data/ocr_output")
	v.SetDefault("ocr.timeout_secs", 300)
	v.SetDefault("milvus.base_url", "http://localhost:19530")
	v.SetDefault("milvus.knowledge_collection", "medical_knowledge")
	v.SetDefault("milvus.profile_collection", "user_profiles")
	v.SetDefault("embedding.base_url", "http://localhost:8081")
	v.SetDefault("embedding.model", "BAAI/bge-m3")
	v.SetDefault("embedding.dim", 1024)
	v.SetDefault("rerank.enabled", true)
	v.SetDefault("rerank.base_url", "http://localhost:8082")
	v.SetDefault("rerank.model", "BAAI/bge-reranker-v2-m3")
	v.SetDefault("llm.provider", "vllm")
	v.SetDefault("llm.base_url", "http://localhost:8001")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("extract.max_concurrent", 4)
	v.SetDefault("extract.requests_per_sec", 2.0)
	v.SetDefault("retrieval.knowledge_k", 5)
	v.SetDefault("retrieval.profile_k", 3)
	v.SetDefault("retrieval.over_fetch_factor", 3)
	v.SetDefault("retrieval.score_threshold", 0.5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
