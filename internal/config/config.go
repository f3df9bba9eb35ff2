// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantel/ohlcvrag/internal/cache"
	"github.com/quantel/ohlcvrag/internal/chunker"
	"github.com/quantel/ohlcvrag/internal/embedding"
	"github.com/quantel/ohlcvrag/internal/ingest"
	"github.com/quantel/ohlcvrag/internal/llm"
	"github.com/quantel/ohlcvrag/internal/pipeline"
	"github.com/quantel/ohlcvrag/internal/retriever"
)

// Config holds all configuration for the application. Defaults come from
// struct tags; validation runs once at load time.
type Config struct {
	Debug     bool                  `yaml:"debug"`
	Server    ServerConfig          `yaml:"server"`
	Storage   StorageConfig         `yaml:"storage"`
	Embedding embedding.Config      `yaml:"embedding"`
	Chunker   chunker.Config        `yaml:"chunker"`
	Ingest    ingest.Config         `yaml:"ingest"`
	Retriever retriever.Config      `yaml:"retriever"`
	Pipeline  pipeline.Config       `yaml:"pipeline"`
	LLM       llm.Config            `yaml:"llm"`
	Cache     cache.Config          `yaml:"cache"`
	Refresh   ingest.RefresherConfig `yaml:"refresh"`
	Watch     WatchConfig           `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" default:"localhost"`
	Port int    `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
}

// StorageConfig holds paths for the chunk database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path" default:"./data/db/chunks.db"`
	BleveIndexPath  string `yaml:"bleve_index_path" default:"./data/indices/bleve"`
	VectorIndexPath string `yaml:"vector_index_path" default:"./data/indices/vectors"`
}

// WatchConfig holds drop-directory watch settings. Bar files copied into the
// directory are ingested automatically in server mode.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Directory  string   `yaml:"directory" default:"./data/incoming"`
	Extensions []string `yaml:"extensions" default:"[\".csv\",\".xlsx\"]"`
}

// Load reads and parses the config file at path, applies defaults, validates,
// and expands relative paths. A missing file yields the pure-default config.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Ingest.DataDir = expandPath(cfg.Ingest.DataDir, configDir)
	cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
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
