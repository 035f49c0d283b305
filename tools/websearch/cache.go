package websearch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pooriaast/sleuth/tools/websearch/models"
)

// Cache wraps a Searcher with a redis result cache. Cache faults degrade
// to a direct provider call; they never fail the search.
type Cache struct {
	Inner  Searcher
	Rdb    *redis.Client
	TTL    time.Duration
	Logger *log.Logger
}

var _ Searcher = (*Cache)(nil)

// NewCache wraps inner with a redis cache.
func NewCache(inner Searcher, rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		Inner:  inner,
		Rdb:    rdb,
		TTL:    ttl,
		Logger: log.New(log.Writer(), "[WEBSEARCH] ", log.LstdFlags),
	}
}

func (c *Cache) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	key := cacheKey(q, k)

	if val, err := c.Rdb.Get(ctx, key).Result(); err == nil {
		var cached []models.Result
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		c.Logger.Printf("cache read failed: %v", err)
	}

	results, err := c.Inner.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := c.Rdb.Set(ctx, key, data, c.TTL).Err(); err != nil {
			c.Logger.Printf("cache write failed: %v", err)
		}
	}
	return results, nil
}

func cacheKey(q string, k int) string {
	sum := sha1.Sum([]byte(q))
	return fmt.Sprintf("websearch:%d:%s", k, hex.EncodeToString(sum[:]))
}
