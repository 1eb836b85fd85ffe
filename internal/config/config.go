// Package config loads the finsum YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug" toml:"debug"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker" toml:"reranker"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// StorageConfig holds the path of the filing section cache.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" toml:"database_path"`
}

// ChunkingConfig bounds chunk sizes in characters.
type ChunkingConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars" toml:"max_chunk_chars"`
	MinChunkChars int `yaml:"min_chunk_chars" toml:"min_chunk_chars"`
}

// RetrievalConfig holds vector store and search defaults.
type RetrievalConfig struct {
	VectorDim  int     `yaml:"vector_dim" toml:"vector_dim"`
	TopK       int     `yaml:"top_k" toml:"top_k"`
	MinScore   float64 `yaml:"min_score" toml:"min_score"`
	RerankTopK int     `yaml:"rerank_top_k" toml:"rerank_top_k"`
}

// Embedding providers.
const (
	EmbeddingMock   = "mock"
	EmbeddingOpenAI = "openai"
	EmbeddingONNX   = "onnx"
)

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" toml:"provider"`
	Model     string `yaml:"model" toml:"model"`
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	ModelPath string `yaml:"model_path" toml:"model_path"`
	MaxTokens int    `yaml:"max_tokens" toml:"max_tokens"`
	CacheSize int    `yaml:"cache_size" toml:"cache_size"`
	BatchSize int    `yaml:"batch_size" toml:"batch_size"`

	// RequestsPerSecond throttles remote embedding calls; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// Rerank providers.
const (
	RerankerNone        = "none"
	RerankerLexical     = "lexical"
	RerankerZeroEntropy = "zeroentropy"
)

// RerankerConfig selects and configures the rerank provider.
type RerankerConfig struct {
	Provider    string `yaml:"provider" toml:"provider"`
	Model       string `yaml:"model" toml:"model"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`

	// RequestsPerSecond throttles rerank API calls; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`

	// Lexical provider scoring.
	SectionBoost float64 `yaml:"section_boost" toml:"section_boost"`
	PhraseBoost  float64 `yaml:"phrase_boost" toml:"phrase_boost"`
	Fuzzy        bool    `yaml:"fuzzy" toml:"fuzzy"`
	Fuzziness    int     `yaml:"fuzziness" toml:"fuzziness"`
}

// LLMConfig configures the chat model used for summaries.
type LLMConfig struct {
	Model       string  `yaml:"model" toml:"model"`
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" toml:"api_key_env"`
	Temperature float32 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories" toml:"directories"`
	Extensions  []string `yaml:"extensions" toml:"extensions"`
	Recursive   *bool    `yaml:"recursive" toml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// APIKey returns the value of the environment variable named by envName, or "" when envName is empty.
func APIKey(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the default configuration.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}
	return cfg, err
}

// Validate rejects settings the chunker and retriever cannot work with.
func (c *Config) Validate() error {
	if c.Chunking.MinChunkChars < 0 || c.Chunking.MaxChunkChars <= 0 {
		return fmt.Errorf("invalid chunking sizes: min=%d max=%d", c.Chunking.MinChunkChars, c.Chunking.MaxChunkChars)
	}
	if c.Chunking.MinChunkChars > c.Chunking.MaxChunkChars {
		return fmt.Errorf("min_chunk_chars (%d) exceeds max_chunk_chars (%d)", c.Chunking.MinChunkChars, c.Chunking.MaxChunkChars)
	}
	if c.Retrieval.VectorDim <= 0 {
		return fmt.Errorf("vector_dim must be positive, got %d", c.Retrieval.VectorDim)
	}
	switch c.Embedding.Provider {
	case EmbeddingMock, EmbeddingOpenAI, EmbeddingONNX:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Reranker.Provider {
	case RerankerNone, RerankerLexical, RerankerZeroEntropy:
	default:
		return fmt.Errorf("unknown reranker provider %q", c.Reranker.Provider)
	}
	if c.Reranker.Fuzziness < 0 || c.Reranker.Fuzziness > 2 {
		return fmt.Errorf("reranker fuzziness must be 0, 1 or 2, got %d", c.Reranker.Fuzziness)
	}
	if c.Reranker.SectionBoost < 0 || c.Reranker.PhraseBoost < 0 {
		return fmt.Errorf("reranker boosts must not be negative")
	}
	return nil
}

// Save writes the config to path in the format its extension selects.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
