package pool

import (
	"sync"
	"time"
)

// EventKind 池生命周期事件类型
type EventKind string

const (
	EventConnectionCreated   EventKind = "connectionCreated"
	EventConnectionReleased  EventKind = "connectionReleased"
	EventConnectionRetry     EventKind = "connectionRetry"
	EventConnectionDestroyed EventKind = "connectionDestroyed"
	EventEPIPEError          EventKind = "epipeError"
	EventIdleCleanup         EventKind = "idleCleanup"
	EventShutdown            EventKind = "shutdown"
)

// Event carries the payload delivered to subscribers. Fields are filled per
// kind: ResourceID for per-resource events, Reclaimed for idle cleanups,
// Attempt/Delay for retries.
type Event struct {
	Kind       EventKind     `json:"kind"`
	ResourceID string        `json:"resource_id,omitempty"`
	Active     int           `json:"active"`
	Attempt    int           `json:"attempt,omitempty"`
	Delay      time.Duration `json:"delay,omitempty"`
	Reclaimed  int           `json:"reclaimed,omitempty"`
	Age        time.Duration `json:"age,omitempty"`
	Err        string        `json:"error,omitempty"`
	Time       time.Time     `json:"time"`
}

// Handler 事件回调；在池锁之外被同步调用，不要在回调里做慢操作
type Handler func(Event)

// subscribers 观察者注册表
// 独立于池锁，emit 时拷贝一份快照再调用，避免回调重入池方法时死锁
type subscribers struct {
	mu     sync.RWMutex
	nextID int
	subs   map[EventKind]map[int]Handler
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[EventKind]map[int]Handler)}
}

// Subscribe 注册事件回调，返回用于退订的 token
func (s *subscribers) Subscribe(kind EventKind, h Handler) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.subs[kind] == nil {
		s.subs[kind] = make(map[int]Handler)
	}
	s.subs[kind][s.nextID] = h
	return s.nextID
}

// Unsubscribe 退订；token 未知时为 no-op
func (s *subscribers) Unsubscribe(kind EventKind, token int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[kind], token)
}

func (s *subscribers) emit(ev Event) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.subs[ev.Kind]))
	for _, h := range s.subs[ev.Kind] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
