// Package embedding turns chunk summaries and queries into vectors.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Provider names for Config.Provider.
const (
	ProviderHash = "hash"
	ProviderONNX = "onnx"
)

// Config selects and sizes the embedder.
type Config struct {
	Provider   string `yaml:"provider" default:"hash" validate:"oneof=hash onnx"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions" default:"384" validate:"gt=0"`
	MaxTokens  int    `yaml:"max_tokens" default:"256" validate:"gt=0"`
	CacheSize  int    `yaml:"cache_size" default:"1000" validate:"gte=0"`
}

// New builds the configured embedder. The hash provider is fully local and
// deterministic; onnx needs a model file and a CGO build.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case ProviderONNX:
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
