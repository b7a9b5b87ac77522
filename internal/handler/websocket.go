package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/pool"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，生产环境应该限制
	},
}

// WebSocketHandler WebSocket 处理器
type WebSocketHandler struct {
	pool        PoolAdmin
	systemStats *core.SystemStatsCollector
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(pool PoolAdmin, systemStats *core.SystemStatsCollector) *WebSocketHandler {
	return &WebSocketHandler{pool: pool, systemStats: systemStats}
}

// allEventKinds 推送给客户端的全部事件类型
var allEventKinds = []pool.EventKind{
	pool.EventConnectionCreated,
	pool.EventConnectionReleased,
	pool.EventConnectionRetry,
	pool.EventConnectionDestroyed,
	pool.EventEPIPEError,
	pool.EventIdleCleanup,
	pool.EventShutdown,
}

// wsEvent 下发给客户端的事件格式
type wsEvent struct {
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id,omitempty"`
	Active     int    `json:"active"`
	Attempt    int    `json:"attempt,omitempty"`
	DelayMs    int64  `json:"delay_ms,omitempty"`
	Reclaimed  int    `json:"reclaimed,omitempty"`
	AgeMs      int64  `json:"age_ms,omitempty"`
	Error      string `json:"error,omitempty"`
	Time       string `json:"time"`
}

func toWSEvent(e pool.Event) wsEvent {
	return wsEvent{
		Kind:       string(e.Kind),
		ResourceID: e.ResourceID,
		Active:     e.Active,
		Attempt:    e.Attempt,
		DelayMs:    e.Delay.Milliseconds(),
		Reclaimed:  e.Reclaimed,
		AgeMs:      e.Age.Milliseconds(),
		Error:      e.Err,
		Time:       e.Time.Format(time.RFC3339Nano),
	}
}

// PoolEvents 池事件实时推送
// 直接订阅池内事件总线，断开时取消订阅
// GET /ws/pool-events
func (h *WebSocketHandler) PoolEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 事件回调在池的临界路径外执行，但仍然不能阻塞
	// 队列满时丢弃事件，客户端看到的是采样流
	events := make(chan pool.Event, 256)
	tokens := make(map[pool.EventKind]int, len(allEventKinds))
	for _, kind := range allEventKinds {
		k := kind
		tokens[k] = h.pool.Subscribe(k, func(e pool.Event) {
			select {
			case events <- e:
			default:
			}
		})
	}
	defer func() {
		for kind, token := range tokens {
			h.pool.Unsubscribe(kind, token)
		}
	}()

	// 监听客户端断开
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case e := <-events:
			data, err := json.Marshal(toWSEvent(e))
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if e.Kind == pool.EventShutdown {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// PoolStatus 池状态实时推送
// 每秒推送一次状态快照
// GET /ws/pool-status
func (h *WebSocketHandler) PoolStatus(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听客户端断开
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	// 立即发送一次初始状态
	h.sendPoolStatus(conn)

	for {
		select {
		case <-ticker.C:
			if err := h.sendPoolStatus(conn); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// sendPoolStatus 发送池状态消息
func (h *WebSocketHandler) sendPoolStatus(conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"type":      "pool_status",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"status":    h.pool.Status(),
		"metrics":   h.pool.Metrics(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SystemStats 系统资源实时推送
// GET /ws/system-stats
func (h *WebSocketHandler) SystemStats(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听客户端断开
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	h.sendSystemStats(conn)

	for {
		select {
		case <-ticker.C:
			if err := h.sendSystemStats(conn); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// sendSystemStats 发送系统统计消息
func (h *WebSocketHandler) sendSystemStats(conn *websocket.Conn) error {
	if h.systemStats == nil {
		return nil
	}

	stats, err := h.systemStats.Collect()
	if err != nil {
		return err
	}

	msg := map[string]interface{}{
		"type":      "system_stats",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"cpu":       stats.CPU,
		"memory":    stats.Memory,
		"load":      stats.Load,
		"network":   stats.Network,
		"disks":     stats.Disks,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
