package rule

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "rule_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "rule_cache_miss_total"})
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Minute
)

// RuleSet is every rule of one tenant as of the last load.
type RuleSet struct {
	Actions map[string]*ActionRule
	Self    *SelfIncreasingRule
}

// RuleCache is a thread-safe expiring LRU with singleflight loading.
type RuleCache struct {
	lru   *expirable.LRU[string, *RuleSet]
	group singleflight.Group
}

func NewRuleCache(size int, ttl time.Duration) *RuleCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RuleCache{lru: expirable.NewLRU[string, *RuleSet](size, nil, ttl)}
}

// Get returns the cached set for tenantID or loads it once for concurrent callers.
func (c *RuleCache) Get(tenantID string, load func() (*RuleSet, error)) (*RuleSet, error) {
	if v, ok := c.lru.Get(tenantID); ok {
		cacheHits.Inc()
		return v, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(tenantID, func() (any, error) {
		set, err := load()
		if err != nil {
			return nil, err
		}
		c.lru.Add(tenantID, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RuleSet), nil
}

func (c *RuleCache) Invalidate(tenantID string) {
	c.lru.Remove(tenantID)
}
