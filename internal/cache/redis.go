package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

// ScanCache is a Redis-backed cache of scan verdicts for hot-path callers
// that gate on the same text repeatedly (cache writes, log lines). Keys are
// derived from a content hash, the tier, and the active library version, so
// a pattern reload naturally invalidates every stale verdict.
type ScanCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	stats  *cacheStats
}

// cacheStats tracks cache performance metrics. Counters are atomic since
// lookups run from concurrent request handlers.
type cacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// NewScanCache creates a new Redis-based scan verdict cache
func NewScanCache(config *Config, logger *zap.Logger) (*ScanCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	cache := &ScanCache{
		client: client,
		config: config,
		logger: logger,
		stats:  &cacheStats{},
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Scan cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// ping tests the Redis connection
func (sc *ScanCache) ping(ctx context.Context) error {
	_, err := sc.client.Ping(ctx).Result()
	return err
}

// Lookup returns the cached verdict for text under the given tier and
// library version. Any cache failure is reported as a miss: a broken cache
// degrades to rescanning, never to skipping detection.
func (sc *ScanCache) Lookup(ctx context.Context, text string, tier phi.Tier, libraryVersion string) (*LookupResult, error) {
	cacheKey := sc.scanKey(text, tier, libraryVersion)

	cachedData, err := sc.client.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		sc.stats.misses.Add(1)
		return &LookupResult{CacheHit: false}, nil
	} else if err != nil {
		sc.logger.Error("Cache lookup failed", zap.Error(err))
		return &LookupResult{CacheHit: false}, nil
	}

	var cached CachedScan
	if err := json.Unmarshal([]byte(cachedData), &cached); err != nil {
		sc.logger.Error("Failed to unmarshal cached scan", zap.Error(err))
		// Delete corrupted cache entry
		sc.client.Del(ctx, cacheKey)
		sc.stats.misses.Add(1)
		return &LookupResult{CacheHit: false}, nil
	}

	if cached.LibraryVersion != libraryVersion || cached.Tier != tier {
		sc.stats.misses.Add(1)
		return &LookupResult{CacheHit: false}, nil
	}

	sc.stats.hits.Add(1)
	sc.logger.Debug("Cache hit",
		zap.String("key", cacheKey),
		zap.Int("findings", len(cached.Result.Findings)))

	return &LookupResult{Scan: &cached, CacheHit: true}, nil
}

// Store caches a scan verdict with the configured TTL.
func (sc *ScanCache) Store(ctx context.Context, text string, tier phi.Tier, libraryVersion string, result phi.ScanResult) error {
	cacheKey := sc.scanKey(text, tier, libraryVersion)

	cached := CachedScan{
		Result:         result,
		Tier:           tier,
		LibraryVersion: libraryVersion,
		CachedAt:       time.Now(),
		TTL:            int64(sc.config.DefaultTTL.Seconds()),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal scan for caching: %w", err)
	}

	if err := sc.client.Set(ctx, cacheKey, data, sc.config.DefaultTTL).Err(); err != nil {
		sc.logger.Error("Failed to cache scan", zap.Error(err))
		return fmt.Errorf("failed to cache scan: %w", err)
	}

	sc.logger.Debug("Scan cached",
		zap.String("key", cacheKey),
		zap.Int("findings", len(result.Findings)))

	return nil
}

// GetStats returns cache performance statistics
func (sc *ScanCache) GetStats(ctx context.Context) (*CacheStats, error) {
	info, err := sc.client.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &CacheStats{
		Hits:   sc.stats.hits.Load(),
		Misses: sc.stats.misses.Load(),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "used_memory:") {
			if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != "" {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	keys, err := sc.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached verdicts under this cache's key prefix.
func (sc *ScanCache) Clear(ctx context.Context) error {
	pattern := sc.config.KeyPrefix + "*"

	iter := sc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := sc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			sc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	sc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (sc *ScanCache) Close() error {
	if sc.client != nil {
		return sc.client.Close()
	}
	return nil
}

// scanKey derives the cache key. Only a hash of the text is used; raw
// input never becomes part of a key.
func (sc *ScanCache) scanKey(text string, tier phi.Tier, libraryVersion string) string {
	hasher := sha256.New()
	hasher.Write([]byte(text))
	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:scan:%s:%s:%s", sc.config.KeyPrefix, libraryVersion, tier, hash[:32])
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
