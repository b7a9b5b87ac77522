package core

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"e2e-infra/poolserver/pkg/pool"
)

// RetiredRecord 已销毁资源的事后诊断记录
// 测试失败后常见的问题是"那个连接什么时候死的、重试了几次"，
// 注册表里已经查不到，所以销毁时在这里留底。
type RetiredRecord struct {
	ResourceID string        `json:"resource_id"`
	RetiredAt  time.Time     `json:"retired_at"`
	Age        time.Duration `json:"age"`
	Retries    int           `json:"retries"`
}

// RetiredCache 有界的销毁记录缓存，满了淘汰最旧的
type RetiredCache struct {
	cache *lru.Cache[string, RetiredRecord]
}

// NewRetiredCache 创建缓存；size <= 0 时使用默认容量 256
func NewRetiredCache(size int) (*RetiredCache, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, RetiredRecord](size)
	if err != nil {
		return nil, err
	}
	return &RetiredCache{cache: cache}, nil
}

// Observe 返回挂接到池 connectionDestroyed 事件的回调
func (r *RetiredCache) Observe() pool.Handler {
	return func(ev pool.Event) {
		record := RetiredRecord{
			ResourceID: ev.ResourceID,
			RetiredAt:  ev.Time,
			Age:        ev.Age,
			Retries:    ev.Attempt,
		}
		r.cache.Add(ev.ResourceID, record)
		log.Debug().
			Str("resource_id", ev.ResourceID).
			Dur("age", ev.Age).
			Int("retries", ev.Attempt).
			Msg("Resource retired")
	}
}

// Get 按资源 ID 查询销毁记录
func (r *RetiredCache) Get(id string) (RetiredRecord, bool) {
	return r.cache.Get(id)
}

// List 返回全部记录，从旧到新
func (r *RetiredCache) List() []RetiredRecord {
	keys := r.cache.Keys()
	records := make([]RetiredRecord, 0, len(keys))
	for _, k := range keys {
		if rec, ok := r.cache.Peek(k); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Len 当前记录数
func (r *RetiredCache) Len() int {
	return r.cache.Len()
}
