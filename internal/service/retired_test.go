package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"e2e-infra/poolserver/pkg/pool"
)

func TestRetiredCache_RecordAndGet(t *testing.T) {
	cache, err := NewRetiredCache(8)
	assert.NoError(t, err)

	handler := cache.Observe()
	handler(pool.Event{
		Kind:       pool.EventConnectionDestroyed,
		ResourceID: "res-1",
		Attempt:    2,
		Age:        3 * time.Second,
		Time:       time.Now(),
	})

	rec, ok := cache.Get("res-1")
	assert.True(t, ok, "销毁记录应该可查")
	assert.Equal(t, 2, rec.Retries)
	assert.Equal(t, 3*time.Second, rec.Age)

	_, ok = cache.Get("no-such-id")
	assert.False(t, ok)
}

func TestRetiredCache_EvictsOldest(t *testing.T) {
	cache, err := NewRetiredCache(4)
	assert.NoError(t, err)

	handler := cache.Observe()
	for i := 0; i < 10; i++ {
		handler(pool.Event{
			Kind:       pool.EventConnectionDestroyed,
			ResourceID: fmt.Sprintf("res-%d", i),
			Time:       time.Now(),
		})
	}

	assert.Equal(t, 4, cache.Len(), "缓存应该封顶在容量上")
	_, ok := cache.Get("res-0")
	assert.False(t, ok, "最旧的记录应该被淘汰")
	_, ok = cache.Get("res-9")
	assert.True(t, ok, "最新的记录应该保留")

	records := cache.List()
	assert.Len(t, records, 4)
}
