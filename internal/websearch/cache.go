package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"discharge-assistant/pkg"
)

// Cached keeps successful search results in Redis so repeated questions do
// not spend provider quota.  Redis failures fall through to the provider.
type Cached struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps next with a Redis cache.
func NewCached(next Provider, client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, client: client, ttl: ttl, logger: logger}
}

// Search serves from cache when possible.  Empty result sets and errors are
// never cached.
func (c *Cached) Search(ctx context.Context, query string, maxResults int) ([]pkg.SearchResult, error) {
	key := cacheKey(query, maxResults)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var results []pkg.SearchResult
		if jerr := json.Unmarshal(raw, &results); jerr == nil {
			return results, nil
		}
		c.logger.Warn("discarding undecodable web search cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("web search cache read failed", zap.Error(err))
	}

	results, err := c.next.Search(ctx, query, maxResults)
	if err != nil || len(results) == 0 {
		return results, err
	}
	if data, merr := json.Marshal(results); merr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Warn("web search cache write failed", zap.Error(serr))
		}
	}
	return results, nil
}

func cacheKey(query string, maxResults int) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("websearch:%s:%d", hex.EncodeToString(sum[:12]), maxResults)
}
