// Package cache stores serialized query results with a TTL so repeated
// questions skip retrieval and generation.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// Config selects the cache backend.
type Config struct {
	Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis none"`
	TTL     time.Duration `yaml:"ttl" default:"1h"`
	Redis   RedisConfig   `yaml:"redis"`
}

// New builds the configured cache. Backend "none" returns nil; callers treat
// a nil cache as disabled.
func New(cfg Config) (BytesCache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewTTLCache(), nil
	case "redis":
		return NewRedisCache(cfg.Redis), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// QueryKey derives a stable cache key from the query text and its type. The
// query is lowercased and whitespace-collapsed first so trivially different
// phrasings of the same question share an entry.
func QueryKey(query, queryType string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := md5.Sum([]byte(queryType + ":" + normalized))
	return "query:" + hex.EncodeToString(sum[:])
}
