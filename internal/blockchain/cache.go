package blockchain

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

const DefaultCacheEntries = 256

// TokenCache keeps token metadata for a limited time. Balances are cached
// alongside but callers refresh them with Invalidate after a transfer.
type TokenCache struct {
	mu      sync.Mutex
	entries *lru.Cache
	ttl     time.Duration
}

func NewTokenCache(ttl time.Duration, maxEntries int) *TokenCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &TokenCache{
		entries: lru.New(maxEntries),
		ttl:     ttl,
	}
}

func cacheKey(token string) string {
	return strings.ToLower(token)
}

func (c *TokenCache) Get(token string) (*TokenInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, exists := c.entries.Get(cacheKey(token))
	if !exists {
		return nil, false
	}

	info := value.(*TokenInfo)
	if time.Since(info.FetchedAt) > c.ttl {
		c.entries.Remove(cacheKey(token))
		return nil, false
	}

	return copyTokenInfo(info), true
}

func (c *TokenCache) Set(token string, info *TokenInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := copyTokenInfo(info)
	stored.FetchedAt = time.Now()
	c.entries.Add(cacheKey(token), stored)
}

func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Remove(cacheKey(token))
}

func (c *TokenCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}

func copyTokenInfo(info *TokenInfo) *TokenInfo {
	out := *info
	if info.Balance != nil {
		out.Balance = new(big.Int).Set(info.Balance)
	}
	return &out
}
