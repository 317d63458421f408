package fusion

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/quantengine/internal/pkg/metrics"
)

// Cache 삽입 순서 기준으로 가장 오래된 항목을 내보내는 bounded cache
//
// 조회는 순서를 바꾸지 않는다 (LRU 가 아님). 같은 키에 대한 동시 계산은
// singleflight 로 합쳐져 한 번만 실행되고 한 번만 저장된다.
type Cache[V any] struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	clock clock.Clock

	order []string
	items map[string]cacheEntry[V]

	sf singleflight.Group
}

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// NewCache creates a cache bounded to max entries; ttl <= 0 disables expiry.
func NewCache[V any](max int, ttl time.Duration, clk clock.Clock) *Cache[V] {
	if max < 1 {
		max = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Cache[V]{
		max:   max,
		ttl:   ttl,
		clock: clk,
		items: make(map[string]cacheEntry[V], max),
	}
}

// Get 유효한 항목 조회 (만료된 항목은 제거)
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.clock.Since(e.storedAt) > c.ttl {
		c.removeLocked(key)
		return zero, false
	}
	return e.value, true
}

// Put 저장. 새 키로 상한을 넘으면 가장 먼저 삽입된 항목을 제거한다.
// 기존 키 갱신은 삽입 순서를 유지한다.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = cacheEntry[V]{value: value, storedAt: c.clock.Now()}

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

// Len 현재 항목 수
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys 삽입 순서대로 키 목록
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// GetOrCompute 캐시 적중 시 저장값, 아니면 compute 결과를 저장 후 반환
// cached 는 저장값을 돌려줬는지 여부. compute 오류는 저장하지 않는다.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (value V, cached bool, err error) {
	if v, ok := c.Get(key); ok {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return v, true, nil
	}

	v, err, shared := c.sf.Do(key, func() (interface{}, error) {
		// double-check: 앞선 flight 가 방금 저장했을 수 있음
		c.mu.Lock()
		if v, ok := c.getLocked(key); ok {
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		v, err := compute()
		if err != nil {
			return v, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		var zero V
		return zero, false, err
	}

	if shared {
		metrics.CacheRequests.WithLabelValues("shared").Inc()
	} else {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	}
	return v.(V), shared, nil
}

func (c *Cache[V]) removeLocked(key string) {
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
