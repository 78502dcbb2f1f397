package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbeddingCacheConfig configures the optional Redis cache in front of the embedder.
type EmbeddingCacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLSecs   int    `yaml:"ttl_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Cache  *EmbeddingCacheConfig `yaml:"cache,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// WeaviateConfig contains connection details for a Weaviate vector index.
type WeaviateConfig struct {
	Host        string `yaml:"host"`
	Scheme      string `yaml:"scheme"`
	APIKeyEnv   string `yaml:"api_key_env"`
	ClassName   string `yaml:"class_name"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorIndexConfig selects and configures the vector index implementation.
type VectorIndexConfig struct {
	Type         string          `yaml:"type"`
	SnapshotPath string          `yaml:"snapshot_path,omitempty"`
	Qdrant       *QdrantConfig   `yaml:"qdrant,omitempty"`
	Weaviate     *WeaviateConfig `yaml:"weaviate,omitempty"`
}

// RetrievalConfig tunes the multi-hop search orchestration.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	HopBudget           int     `yaml:"hop_budget"`
	HopEpsilon          float64 `yaml:"hop_epsilon"`
}

// RankingConfig tunes knowledge point selection and truncation.
type RankingConfig struct {
	MaxKnowledgePoints int `yaml:"max_knowledge_points"`
	MaxKnowledgeChars  int `yaml:"max_knowledge_chars"`
}

// SummarizerConfig tunes the extractive summarizer.
type SummarizerConfig struct {
	Damping            float64 `yaml:"damping"`
	ConvergenceEpsilon float64 `yaml:"convergence_epsilon"`
	MaxIterations      int     `yaml:"max_iterations"`
	MaxSummaryChars    int     `yaml:"max_summary_chars"`
}

// PipelineConfig tunes per-question execution and batch concurrency.
type PipelineConfig struct {
	CallTimeoutSecs int `yaml:"call_timeout_secs"`
	BatchWorkers    int `yaml:"batch_workers"`
}

// LoggingConfig controls log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/finqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/finqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "finqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorIndex: VectorIndexConfig{Type: "memory"},
		Retrieval: RetrievalConfig{
			TopK:                10,
			SimilarityThreshold: 0.5,
			HopBudget:           3,
			HopEpsilon:          0.02,
		},
		Ranking: RankingConfig{
			MaxKnowledgePoints: 3,
			MaxKnowledgeChars:  1500,
		},
		Summarizer: SummarizerConfig{
			Damping:            0.85,
			ConvergenceEpsilon: 0.0001,
			MaxIterations:      100,
			MaxSummaryChars:    300,
		},
		Pipeline: PipelineConfig{
			CallTimeoutSecs: 10,
			BatchWorkers:    4,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.5
	}
	if cfg.Retrieval.HopBudget == 0 {
		cfg.Retrieval.HopBudget = 3
	}
	if cfg.Retrieval.HopEpsilon == 0 {
		cfg.Retrieval.HopEpsilon = 0.02
	}
	if cfg.Ranking.MaxKnowledgePoints == 0 {
		cfg.Ranking.MaxKnowledgePoints = 3
	}
	if cfg.Ranking.MaxKnowledgeChars == 0 {
		cfg.Ranking.MaxKnowledgeChars = 1500
	}
	if cfg.Summarizer.Damping == 0 {
		cfg.Summarizer.Damping = 0.85
	}
	if cfg.Summarizer.ConvergenceEpsilon == 0 {
		cfg.Summarizer.ConvergenceEpsilon = 0.0001
	}
	if cfg.Summarizer.MaxIterations == 0 {
		cfg.Summarizer.MaxIterations = 100
	}
	if cfg.Summarizer.MaxSummaryChars == 0 {
		cfg.Summarizer.MaxSummaryChars = 300
	}
	if cfg.Pipeline.CallTimeoutSecs == 0 {
		cfg.Pipeline.CallTimeoutSecs = 10
	}
	if cfg.Pipeline.BatchWorkers == 0 {
		cfg.Pipeline.BatchWorkers = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 3
		}
	}
	if cfg.Embedder.Cache != nil {
		if cfg.Embedder.Cache.Addr == "" {
			cfg.Embedder.Cache.Addr = "localhost:6379"
		}
		if cfg.Embedder.Cache.KeyPrefix == "" {
			cfg.Embedder.Cache.KeyPrefix = "finqa:emb:"
		}
		if cfg.Embedder.Cache.TTLSecs == 0 {
			cfg.Embedder.Cache.TTLSecs = 86400
		}
	}
	if cfg.VectorIndex.Weaviate != nil {
		if cfg.VectorIndex.Weaviate.Scheme == "" {
			cfg.VectorIndex.Weaviate.Scheme = "http"
		}
		if cfg.VectorIndex.Weaviate.ClassName == "" {
			cfg.VectorIndex.Weaviate.ClassName = "FinancialChunk"
		}
		if cfg.VectorIndex.Weaviate.TimeoutSecs == 0 {
			cfg.VectorIndex.Weaviate.TimeoutSecs = 10
		}
	}
	if cfg.VectorIndex.Qdrant != nil && cfg.VectorIndex.Qdrant.TimeoutSecs == 0 {
		cfg.VectorIndex.Qdrant.TimeoutSecs = 10
	}
}
