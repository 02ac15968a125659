package ragengine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	defaults "github.com/pck00223-oss/ai-rag-engine/default"
)

// Config represents the engine configuration.
type Config struct {
	Version   int             `toml:"version"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Serve     ServeConfig     `toml:"serve"`
	Storage   StorageConfig   `toml:"storage"`
}

// LLMConfig holds settings for the generation backend and the streaming
// post-processor.
type LLMConfig struct {
	BaseURL             string   `toml:"base_url"`
	APIKey              string   `toml:"api_key"`
	Model               string   `toml:"model"`
	MaxTokens           int      `toml:"max_tokens"`
	Temperature         float64  `toml:"temperature"`
	TopK                int      `toml:"top_k"`
	TopP                float64  `toml:"top_p"`
	Seed                int      `toml:"seed"`
	Stop                []string `toml:"stop"`
	SentenceTerminators []string `toml:"sentence_terminators"`
	AnchorPhrase        string   `toml:"anchor_phrase"`
}

// EmbeddingConfig holds settings for the embedding API backing the vector
// index. An empty base URL disables vector search.
type EmbeddingConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// RetrievalConfig holds the BM25 retrieval and evidence-gating settings.
type RetrievalConfig struct {
	TopK        int      `toml:"topk"`
	MinBM25     float64  `toml:"min_bm25"`
	MinCoverage float64  `toml:"min_coverage"`
	HardTerms   []string `toml:"hard_terms"`
}

// ServeConfig holds the HTTP API settings.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// StorageConfig holds filesystem paths for persistent state.
type StorageConfig struct {
	DBPath          string `toml:"db_path"`
	VectorCachePath string `toml:"vector_cache_path"`
	ChunkSize       int    `toml:"chunk_size"`
	ChunkOverlap    int    `toml:"chunk_overlap"`
}

// ConfigDir returns the config directory path.
// Resolution order: $RAG_CONFIG_DIR > $XDG_CONFIG_HOME/rag-engine > ~/.config/rag-engine
func ConfigDir() string {
	if dir := os.Getenv("RAG_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "rag-engine")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "rag-engine-config")
	}
	return filepath.Join(home, ".config", "rag-engine")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PromptPath returns the custom prompt template path.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// DefaultConfig returns the default configuration from the embedded
// default config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("ragengine: invalid embedded config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from the given path, or from ConfigPath() when path
// is empty. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	def := DefaultConfig()
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = def.LLM.Temperature
	}
	if cfg.LLM.TopK == 0 {
		cfg.LLM.TopK = def.LLM.TopK
	}
	if cfg.LLM.TopP == 0 {
		cfg.LLM.TopP = def.LLM.TopP
	}
	if cfg.LLM.Seed == 0 {
		cfg.LLM.Seed = def.LLM.Seed
	}
	if cfg.LLM.Stop == nil {
		cfg.LLM.Stop = def.LLM.Stop
	}
	if cfg.LLM.SentenceTerminators == nil {
		cfg.LLM.SentenceTerminators = def.LLM.SentenceTerminators
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = def.Embedding.Dimensions
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.MinBM25 == 0 {
		cfg.Retrieval.MinBM25 = def.Retrieval.MinBM25
	}
	if cfg.Retrieval.MinCoverage == 0 {
		cfg.Retrieval.MinCoverage = def.Retrieval.MinCoverage
	}
	if cfg.Retrieval.HardTerms == nil {
		cfg.Retrieval.HardTerms = def.Retrieval.HardTerms
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = def.Serve.Addr
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = def.Storage.DBPath
	}
	if cfg.Storage.VectorCachePath == "" {
		cfg.Storage.VectorCachePath = def.Storage.VectorCachePath
	}
	if cfg.Storage.ChunkSize == 0 {
		cfg.Storage.ChunkSize = def.Storage.ChunkSize
	}
	if cfg.Storage.ChunkOverlap == 0 {
		cfg.Storage.ChunkOverlap = def.Storage.ChunkOverlap
	}

	return &cfg, nil
}

// ValidateConfig checks configuration invariants that must hold before any
// request is processed. It returns an error for hard violations and a list of
// warnings for suspicious but workable settings.
func ValidateConfig(cfg *Config) ([]string, error) {
	var warnings []string
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if cfg.LLM.MaxTokens <= 0 {
		return nil, fmt.Errorf("llm.max_tokens must be > 0, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Storage.ChunkOverlap >= cfg.Storage.ChunkSize {
		return nil, fmt.Errorf("storage.chunk_overlap (%d) must be smaller than storage.chunk_size (%d)",
			cfg.Storage.ChunkOverlap, cfg.Storage.ChunkSize)
	}
	if ResolveLLMBaseURL(cfg) == "" {
		warnings = append(warnings, "llm.base_url is empty; generation requests will fail")
	}
	allEmpty := true
	for _, s := range cfg.LLM.Stop {
		if s != "" {
			allEmpty = false
			break
		}
	}
	if len(cfg.LLM.Stop) > 0 && allEmpty {
		warnings = append(warnings, "llm.stop contains only empty literals; stop matching is disabled")
	}
	if !EmbeddingEnabled(cfg) && cfg.Storage.VectorCachePath != "" {
		warnings = append(warnings, "embedding API is not configured; vector index and its cache are disabled")
	}
	return warnings, nil
}

// ResolveLLMBaseURL returns the generation API base URL.
// Priority: $RAG_LLM_BASE_URL env > config value.
func ResolveLLMBaseURL(cfg *Config) string {
	if url := os.Getenv("RAG_LLM_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.LLM.BaseURL
	}
	return ""
}

// ResolveLLMAPIKey returns the generation API key.
// Priority: $RAG_LLM_API_KEY env > config value.
func ResolveLLMAPIKey(cfg *Config) string {
	if key := os.Getenv("RAG_LLM_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.LLM.APIKey
	}
	return ""
}

// ResolveLLMModel returns the generation model name.
// Priority: $RAG_LLM_MODEL env > config value.
func ResolveLLMModel(cfg *Config) string {
	if model := os.Getenv("RAG_LLM_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.LLM.Model
	}
	return ""
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $RAG_EMBEDDING_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("RAG_EMBEDDING_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $RAG_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("RAG_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $RAG_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	if model := os.Getenv("RAG_EMBEDDING_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Embedding.Model
	}
	return ""
}

// EmbeddingEnabled returns true when an embedding base URL is configured.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != ""
}
