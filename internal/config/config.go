package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig configures the OpenAI-compatible chat completion backend.
type LLMConfig struct {
	APIKey        string  `yaml:"api_key,omitempty"`
	BaseURL       string  `yaml:"base_url,omitempty"`
	Model         string  `yaml:"model"`
	Temperature   float32 `yaml:"temperature"`
	MaxToolRounds int     `yaml:"max_tool_rounds"`
}

// EmbedderConfig selects and configures the text embedder implementation.
// APIKey and BaseURL fall back to the LLM settings when empty.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	Dimension   int    `yaml:"dimension"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"chunk_size"`
	Overlap int `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Path       string        `yaml:"path"`
	Collection string        `yaml:"collection"`
	MinScore   float64       `yaml:"min_score"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig controls the query path.
type RetrievalConfig struct {
	K               int `yaml:"k"`
	MaxContextChars int `yaml:"max_context_chars"`
	TimeoutSecs     int `yaml:"request_timeout_secs"`
}

// LoaderConfig lists the file extensions accepted by ingestion.
type LoaderConfig struct {
	Extensions []string `yaml:"extensions"`
}

// SummarizerConfig configures the ingestion summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Loader      LoaderConfig      `yaml:"loader"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
	Debug       bool              `yaml:"debug"`
	LogLevel    string            `yaml:"log_level"`
}

// RequestTimeout bounds each retrieval and generation call.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Retrieval.TimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
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

// Resolve builds the runtime configuration: .env, the YAML file (path or the
// default locations), environment overrides and validation.
func Resolve(path string) (*AppConfig, string, error) {
	_ = godotenv.Load()

	var (
		cfg *AppConfig
		err error
	)
	if path == "" {
		cfg, path, err = LoadDefault()
	} else {
		cfg, err = Load(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
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
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM:         LLMConfig{Model: "gpt-3.5-turbo", Temperature: 0.5, MaxToolRounds: 5},
		Embedder:    EmbedderConfig{Type: "openai", Model: "text-embedding-3-small", TimeoutSecs: 30, BatchSize: 32},
		Chunker:     ChunkerConfig{Size: 1000, Overlap: 200},
		VectorStore: VectorStoreConfig{Type: "sqlite", Path: "./data/vector_db", Collection: "documents"},
		Retrieval:   RetrievalConfig{K: 4, TimeoutSecs: 60},
		Loader:      LoaderConfig{Extensions: []string{"txt", "md", "pdf", "docx"}},
		Summarizer:  SummarizerConfig{MaxSentences: 5},
		Server:      ServerConfig{Addr: ":8080"},
		LogLevel:    "info",
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.MaxToolRounds == 0 {
		cfg.LLM.MaxToolRounds = def.LLM.MaxToolRounds
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 256
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "http://localhost:11434/api"
		}
		if cfg.Embedder.Model == "" || cfg.Embedder.Model == def.Embedder.Model {
			cfg.Embedder.Model = "nomic-embed-text"
		}
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = def.Embedder.Model
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = def.VectorStore.Path
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = def.VectorStore.Collection
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = def.Retrieval.K
	}
	if cfg.Retrieval.TimeoutSecs == 0 {
		cfg.Retrieval.TimeoutSecs = def.Retrieval.TimeoutSecs
	}
	if len(cfg.Loader.Extensions) == 0 {
		cfg.Loader.Extensions = def.Loader.Extensions
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 15
	}
}

// ApplyEnv overrides configuration values from environment variables. lookup
// is usually os.LookupEnv.
func ApplyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	str(&cfg.LLM.APIKey, "API_KEY", "OPENAI_API_KEY")
	str(&cfg.LLM.BaseURL, "BASE_URL", "OPENAI_BASE_URL")
	str(&cfg.LLM.Model, "MODEL_NAME", "OPENAI_MODEL")
	str(&cfg.Embedder.Model, "EMBEDDING_MODEL")
	str(&cfg.Embedder.Type, "EMBEDDER")
	str(&cfg.VectorStore.Type, "VECTOR_STORE")
	str(&cfg.VectorStore.Path, "VECTOR_DB_PATH")
	str(&cfg.LogLevel, "LOG_LEVEL")

	for key, dst := range map[string]*int{
		"CHUNK_SIZE":        &cfg.Chunker.Size,
		"CHUNK_OVERLAP":     &cfg.Chunker.Overlap,
		"RETRIEVAL_K":       &cfg.Retrieval.K,
		"MAX_CONTEXT_CHARS": &cfg.Retrieval.MaxContextChars,
		"REQUEST_TIMEOUT":   &cfg.Retrieval.TimeoutSecs,
	} {
		if err := num(dst, key); err != nil {
			return err
		}
	}
	if v, ok := lookup("TEMPERATURE"); ok && v != "" {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return fmt.Errorf("config: TEMPERATURE must be a number: %w", err)
		}
		cfg.LLM.Temperature = float32(t)
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		cfg.Debug = strings.EqualFold(strings.TrimSpace(v), "true") || v == "1"
	}
	applyConfigDefaults(cfg)
	return nil
}

// Validate checks the invariants the components rely on.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be > 0, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Chunker.Overlap))
	}
	if c.Retrieval.K < 1 {
		errs = append(errs, fmt.Errorf("retrieval k must be >= 1, got %d", c.Retrieval.K))
	}
	if c.Retrieval.MaxContextChars < 0 {
		errs = append(errs, fmt.Errorf("max_context_chars must be >= 0, got %d", c.Retrieval.MaxContextChars))
	}
	if c.Retrieval.TimeoutSecs <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be > 0, got %d", c.Retrieval.TimeoutSecs))
	}
	switch c.Embedder.Type {
	case "openai", "ollama", "hashing":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder: %s", c.Embedder.Type))
	}
	switch c.VectorStore.Type {
	case "sqlite", "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			errs = append(errs, errors.New("qdrant config missing"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector store: %s", c.VectorStore.Type))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
