package fusion

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_EvictsOldestInserted(t *testing.T) {
	c := NewCache[int](100, 0, clock.NewMock())

	for i := 0; i < 101; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 100, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok, "first inserted key must be evicted")
	v, ok := c.Get("k100")
	require.True(t, ok)
	assert.Equal(t, 100, v)
	assert.Equal(t, "k1", c.Keys()[0])
}

func TestCache_ReadDoesNotRefreshOrder(t *testing.T) {
	c := NewCache[string](2, 0, clock.NewMock())
	c.Put("a", "1")
	c.Put("b", "2")

	// 조회해도 순서 유지 (LRU 아님)
	_, _ = c.Get("a")
	c.Put("c", "3")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestCache_UpdateKeepsPosition(t *testing.T) {
	c := NewCache[string](2, 0, clock.NewMock())
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("a", "updated")

	assert.Equal(t, []string{"a", "b"}, c.Keys())
	v, _ := c.Get("a")
	assert.Equal(t, "updated", v)
}

func TestCache_TTL(t *testing.T) {
	mock := clock.NewMock()
	c := NewCache[int](10, 5*time.Minute, mock)
	c.Put("k", 1)

	mock.Add(4 * time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok)

	mock.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}

func TestCache_GetOrCompute(t *testing.T) {
	t.Run("second call is served from cache", func(t *testing.T) {
		c := NewCache[int](10, 0, clock.NewMock())
		calls := 0
		compute := func() (int, error) {
			calls++
			return 42, nil
		}

		v, cached, err := c.GetOrCompute("k", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.False(t, cached)

		v, cached, err = c.GetOrCompute("k", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.True(t, cached)
		assert.Equal(t, 1, calls)
	})

	t.Run("errors are not stored", func(t *testing.T) {
		c := NewCache[int](10, 0, clock.NewMock())
		boom := errors.New("boom")

		_, _, err := c.GetOrCompute("k", func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("concurrent callers share one computation", func(t *testing.T) {
		c := NewCache[int](10, 0, clock.NewMock())
		var calls atomic.Int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		results := make([]int, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, _, err := c.GetOrCompute("k", func() (int, error) {
					calls.Add(1)
					<-release
					return 7, nil
				})
				assert.NoError(t, err)
				results[i] = v
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 1, c.Len())
		for _, v := range results {
			assert.Equal(t, 7, v)
		}
	})
}
