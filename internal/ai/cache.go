package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/seanblong/lexora/internal/metrics"
	"github.com/seanblong/lexora/internal/vecblob"
)

// EmbeddingCache stores vectors by key. Get returns a nil entry for a miss.
type EmbeddingCache interface {
	Get(ctx context.Context, keys []string) ([][]float32, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedEmbedder serves repeated texts from an EmbeddingCache. Cache
// failures are logged and treated as misses.
type CachedEmbedder struct {
	Client
	cache     EmbeddingCache
	namespace string
}

// NewCachedEmbedder wraps next. namespace separates vectors of different
// models or dimensions.
func NewCachedEmbedder(next Client, cache EmbeddingCache, namespace string) *CachedEmbedder {
	return &CachedEmbedder{Client: next, cache: cache, namespace: namespace}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out, err := c.cache.Get(ctx, keys)
	if err != nil || len(out) != len(texts) {
		if err != nil {
			log.Warn().Err(err).Msg("embedding cache lookup failed")
		}
		out = make([][]float32, len(texts))
	}

	var missIdx []int
	var missTexts []string
	for i, v := range out {
		if v == nil || len(v) != c.Dim() {
			out[i] = nil
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Add(float64(len(texts) - len(missIdx)))
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Add(float64(len(missIdx)))
	if len(missIdx) == 0 {
		return out, nil
	}

	vecs, err := c.Client.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.Set(ctx, keys[i], vecs[j]); err != nil {
			log.Warn().Err(err).Msg("embedding cache store failed")
		}
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "lexora:emb:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}

// RedisCache is an EmbeddingCache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db).
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 8 * time.Millisecond
	opts.MaxRetryBackoff = 512 * time.Millisecond
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("redis embedding cache connected")
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, keys []string) ([][]float32, error) {
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		vec, err := vecblob.Decode([]byte(s))
		if err != nil {
			continue
		}
		out[i] = vec
	}
	return out, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	return r.client.Set(ctx, key, vecblob.Encode(vec), r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
