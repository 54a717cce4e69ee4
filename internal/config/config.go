// Package config loads the application configuration from an optional YAML
// file and applies environment overrides on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig controls how document text is split into windows.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig controls similarity search behavior.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// HistoryConfig controls conversation memory.
// Retention bounds the number of retained turns; 0 keeps every turn.
type HistoryConfig struct {
	Window    int `yaml:"window"`
	Retention int `yaml:"retention"`
}

// QdrantConfig contains connection details for the Qdrant index backend.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Backend string       `yaml:"backend"` // "memory" or "qdrant"
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GenerationConfig configures the generation backend client.
type GenerationConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Config is the root application configuration.
type Config struct {
	Addr       string           `yaml:"addr"`
	DocsDir    string           `yaml:"docs_dir"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	History    HistoryConfig    `yaml:"history"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
}

// GenerateTimeout returns the generation timeout as a duration.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSecs) * time.Second
}

// Load reads the config from path. A missing file yields the defaults.
// Environment overrides are applied after the file is parsed.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Addr:      "0.0.0.0:8080",
		DocsDir:   "./documents",
		Chunking:  ChunkingConfig{Size: 500, Overlap: 50},
		Retrieval: RetrievalConfig{TopK: 6},
		History:   HistoryConfig{Window: 5, Retention: 50},
		Index: IndexConfig{
			Backend: "memory",
			Qdrant:  QdrantConfig{Host: "localhost", Port: 6334, Collection: "docs"},
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 500,
		},
		Generation: GenerationConfig{
			Host:        "http://ollama:11434",
			Model:       "llama3:8b-instruct-q4_0",
			TimeoutSecs: 120,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = def.DocsDir
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = def.Chunking.Size
		if cfg.Chunking.Overlap == 0 {
			cfg.Chunking.Overlap = def.Chunking.Overlap
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.History.Window == 0 {
		cfg.History.Window = def.History.Window
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = def.Index.Backend
	}
	if cfg.Index.Qdrant.Host == "" {
		cfg.Index.Qdrant.Host = def.Index.Qdrant.Host
	}
	if cfg.Index.Qdrant.Port == 0 {
		cfg.Index.Qdrant.Port = def.Index.Qdrant.Port
	}
	if cfg.Index.Qdrant.Collection == "" {
		cfg.Index.Qdrant.Collection = def.Index.Qdrant.Collection
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Generation.Host == "" {
		cfg.Generation.Host = def.Generation.Host
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = def.Generation.Model
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = def.Generation.TimeoutSecs
	}
}

// applyEnv overrides file values with environment variables where set.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Generation.Host = v
	}
	if v := os.Getenv("DOCQUERY_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DOCQUERY_DOCS_DIR"); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Index.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Index.Qdrant.Port = p
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunking overlap %d must be smaller than size %d",
			cfg.Chunking.Overlap, cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking overlap must not be negative")
	}
	switch cfg.Index.Backend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	return nil
}
