package pool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Factory 创建底层资源的函数；池把它当作一个快速、不可取消的操作
// 如果创建本身可能挂起，由调用方在 Factory 内部自行包裹超时
type Factory[T any] func() (T, error)

// Config 池配置
type Config[T any] struct {
	// 最大并发活跃资源数
	MaxConcurrent int `json:"max_concurrent"`
	// 单个资源的瞬时错误重试预算
	MaxRetries int `json:"max_retries"`
	// 指数退避的基准延迟
	RetryDelay time.Duration `json:"retry_delay"`
	// 排队等待的最长时间，超时返回 ErrAcquireTimeout
	ConnectTimeout time.Duration `json:"connect_timeout"`
	// 空闲资源的最大存活时间，超过后被定期回收
	IdleTimeout time.Duration `json:"idle_timeout"`
	// 是否记录 acquire 延迟（关闭可减少锁内工作量）
	EnableMetrics bool `json:"enable_metrics"`
	// 销毁资源的回调，可以为 nil
	Close func(T) error `json:"-"`
}

func (c *Config[T]) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Resource 注册表条目
// 所有权始终属于池；调用方持有的只是借出的引用（ID），用完必须 Release
type Resource[T any] struct {
	ID         string    `json:"id"`
	Value      T         `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsed   time.Time `json:"last_used"`
	Active     bool      `json:"active"`
	RetryCount int       `json:"retry_count"`
}

type waitResult[T any] struct {
	res *Resource[T]
	err error
}

// waiter 等待队列成员；结果通道带一个缓冲，保证服务方永不阻塞
type waiter[T any] struct {
	priority int
	seq      uint64
	ch       chan waitResult[T]
}

// Pool 有界资源池
// 注册表、等待队列和计数器只在池方法内部被修改（单写者约束），
// 由一把互斥锁保护；排队等待和退避睡眠都发生在锁外。
type Pool[T any] struct {
	mu        sync.Mutex
	cfg       Config[T]
	factory   Factory[T]
	resources map[string]*Resource[T]
	active    int
	waiters   []*waiter[T] // 按优先级降序，同级按入队顺序
	nextSeq   uint64
	closed    bool
	ctr       counters

	done    chan struct{}
	sweepWG sync.WaitGroup

	events *subscribers
}

// New 创建并启动资源池；空闲回收按 IdleTimeout/2 的周期在后台运行
func New[T any](cfg Config[T], factory Factory[T]) *Pool[T] {
	cfg.applyDefaults()
	p := &Pool[T]{
		cfg:       cfg,
		factory:   factory,
		resources: make(map[string]*Resource[T]),
		done:      make(chan struct{}),
		events:    newSubscribers(),
	}

	p.sweepWG.Add(1)
	go p.sweepLoop(cfg.IdleTimeout / 2)

	log.Debug().
		Int("max_concurrent", cfg.MaxConcurrent).
		Dur("idle_timeout", cfg.IdleTimeout).
		Msg("Resource pool started")

	return p
}

// Subscribe 注册事件回调，返回退订 token
func (p *Pool[T]) Subscribe(kind EventKind, h Handler) int {
	return p.events.Subscribe(kind, h)
}

// Unsubscribe 退订
func (p *Pool[T]) Unsubscribe(kind EventKind, token int) {
	p.events.Unsubscribe(kind, token)
}

// Acquire returns an exclusive resource. Under capacity a fresh resource is
// created synchronously; otherwise the call queues (higher priority served
// first, FIFO within a priority) until a slot frees up, ConnectTimeout
// expires, ctx is cancelled, or the pool shuts down.
func (p *Pool[T]) Acquire(ctx context.Context, priority int) (*Resource[T], error) {
	start := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if p.active < p.cfg.MaxConcurrent {
		res, err := p.createLocked()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		if p.cfg.EnableMetrics {
			p.ctr.recordLatency(time.Since(start))
		}
		activeNow := p.active
		p.mu.Unlock()

		p.emit(Event{Kind: EventConnectionCreated, ResourceID: res.ID, Active: activeNow})
		return res, nil
	}

	w := &waiter[T]{priority: priority, seq: p.nextSeq, ch: make(chan waitResult[T], 1)}
	p.nextSeq++
	p.insertWaiterLocked(w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		if r.err != nil {
			return nil, r.err
		}
		p.recordAcquire(start)
		return r.res, nil

	case <-timer.C:
		if p.cancelWaiter(w) {
			return nil, ErrAcquireTimeout
		}
		// 摘除失败说明刚好被并发服务：收下资源立即归还，仍按超时处理
		r := <-w.ch
		if r.res != nil {
			p.Release(r.res.ID)
		}
		return nil, ErrAcquireTimeout

	case <-ctx.Done():
		if p.cancelWaiter(w) {
			return nil, ctx.Err()
		}
		r := <-w.ch
		if r.res != nil {
			p.Release(r.res.ID)
		}
		return nil, ctx.Err()
	}
}

// Release returns a resource to the pool. Unknown ids are a no-op (the
// resource may already have been destroyed). If the waiting queue is
// non-empty, the same resource is handed directly to the next waiter instead
// of going idle.
func (p *Pool[T]) Release(id string) {
	p.mu.Lock()
	res, ok := p.resources[id]
	if !ok || !res.Active {
		p.mu.Unlock()
		return
	}

	res.Active = false
	res.LastUsed = time.Now()
	p.active--

	var served *waiter[T]
	if w := p.popWaiterLocked(); w != nil {
		// 复用同一个资源直接交接，不走创建路径
		res.Active = true
		p.active++
		served = w
	}
	activeNow := p.active
	p.mu.Unlock()

	if served != nil {
		served.ch <- waitResult[T]{res: res}
	}
	p.emit(Event{Kind: EventConnectionReleased, ResourceID: id, Active: activeNow})
}

// Retry handles a failure observed while using a resource. Non-transient
// errors propagate unchanged without consuming retry budget. Transient errors
// bump the resource's retry count; past MaxRetries the resource is destroyed
// and ErrRetryExhausted returned, otherwise the call sleeps the exponential
// backoff delay and hands the same resource back for another attempt.
func (p *Pool[T]) Retry(id string, cause error) (*Resource[T], error) {
	p.mu.Lock()
	res, ok := p.resources[id]
	if !ok {
		p.mu.Unlock()
		return nil, ErrUnknownResource
	}

	if !IsTransient(cause) {
		p.mu.Unlock()
		return nil, cause
	}

	p.ctr.epipeErrors++
	res.RetryCount++
	attempt := res.RetryCount
	exhausted := attempt > p.cfg.MaxRetries
	if exhausted {
		p.ctr.failed++
	} else {
		p.ctr.retried++
	}
	baseDelay := p.cfg.RetryDelay
	activeNow := p.active
	p.mu.Unlock()

	p.emit(Event{Kind: EventEPIPEError, ResourceID: id, Active: activeNow, Attempt: attempt, Err: cause.Error()})

	if exhausted {
		log.Warn().
			Str("resource_id", id).
			Int("attempts", attempt).
			Err(cause).
			Msg("Retry budget exhausted, destroying resource")
		p.Destroy(id)
		return nil, ErrRetryExhausted
	}

	delay := BackoffDelay(attempt, baseDelay)
	select {
	case <-time.After(delay):
	case <-p.done:
		return nil, ErrPoolClosed
	}

	p.emit(Event{Kind: EventConnectionRetry, ResourceID: id, Attempt: attempt, Delay: delay, Active: activeNow})

	// 退避期间资源可能被关停或清扫掉
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	if _, ok := p.resources[id]; !ok {
		return nil, ErrUnknownResource
	}
	return res, nil
}

// Destroy removes a resource from the registry and runs the Close callback.
// Idempotent on unknown ids. If waiters are queued and capacity allows, a
// brand-new resource is created for the next waiter — destruction never
// recycles the destroyed object.
func (p *Pool[T]) Destroy(id string) {
	p.mu.Lock()
	res, ok := p.resources[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.resources, id)
	if res.Active {
		p.active--
	}

	var served *waiter[T]
	var fresh *Resource[T]
	var createErr error
	if len(p.waiters) > 0 && p.active < p.cfg.MaxConcurrent && !p.closed {
		served = p.popWaiterLocked()
		fresh, createErr = p.createLocked()
	}
	activeNow := p.active
	age := time.Since(res.CreatedAt)
	closeFn := p.cfg.Close
	p.mu.Unlock()

	if closeFn != nil {
		if err := closeFn(res.Value); err != nil {
			// 清理路径的失败只记录，不上抛，避免掩盖调用方原本的错误
			log.Warn().Err(err).Str("resource_id", id).Msg("Resource close failed")
		}
	}

	if served != nil {
		if createErr != nil {
			served.ch <- waitResult[T]{err: createErr}
		} else {
			served.ch <- waitResult[T]{res: fresh}
			p.emit(Event{Kind: EventConnectionCreated, ResourceID: fresh.ID, Active: activeNow})
		}
	}

	p.emit(Event{
		Kind:       EventConnectionDestroyed,
		ResourceID: id,
		Active:     activeNow,
		Attempt:    res.RetryCount,
		Age:        age,
	})
}

// SweepIdle destroys every idle resource older than IdleTimeout and returns
// the number reclaimed. The background sweeper calls this on a ticker; the
// diagnostics API exposes it for manual runs. Active resources are never
// touched.
func (p *Pool[T]) SweepIdle() int {
	p.mu.Lock()
	cutoff := time.Now().Add(-p.cfg.IdleTimeout)
	var expired []string
	for id, r := range p.resources {
		if !r.Active && r.LastUsed.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	p.mu.Unlock()

	for _, id := range expired {
		p.Destroy(id)
	}

	if len(expired) > 0 {
		p.emit(Event{Kind: EventIdleCleanup, Reclaimed: len(expired)})
		log.Debug().Int("reclaimed", len(expired)).Msg("Idle resources reclaimed")
	}
	return len(expired)
}

// Shutdown drains the pool: waiters are rejected with ErrPoolClosed, all
// resources (active or idle) are destroyed, the sweeper stops. Idempotent.
// Metrics remain readable afterwards for post-mortem reporting, and any later
// Acquire fails fast with ErrPoolClosed.
func (p *Pool[T]) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)

	waiters := p.waiters
	p.waiters = nil
	ids := make([]string, 0, len(p.resources))
	for id := range p.resources {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, w := range waiters {
		w.ch <- waitResult[T]{err: ErrPoolClosed}
	}
	for _, id := range ids {
		p.Destroy(id)
	}
	p.sweepWG.Wait()

	p.emit(Event{Kind: EventShutdown})
	log.Info().
		Int("rejected_waiters", len(waiters)).
		Int("destroyed", len(ids)).
		Msg("Resource pool shut down")
}

// Metrics 返回指标快照（拷贝）
func (p *Pool[T]) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Metrics{
		ActiveConnections: p.active,
		TotalCreated:      p.ctr.totalCreated,
		Failed:            p.ctr.failed,
		Retried:           p.ctr.retried,
		EPIPEErrors:       p.ctr.epipeErrors,
		AvgAcquireLatency: p.ctr.avgLatency(),
	}
}

// Status 返回即时状态和健康分；Total 为累计创建数
func (p *Pool[T]) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Active:        p.active,
		Total:         int(p.ctr.totalCreated),
		Waiting:       len(p.waiters),
		MaxConcurrent: p.cfg.MaxConcurrent,
		HealthScore: HealthScore(
			p.ctr.failed, p.ctr.epipeErrors, p.ctr.totalCreated,
			len(p.waiters), p.cfg.MaxConcurrent,
		),
	}
}

// Lookup 按 ID 查询注册表，返回条目拷贝
func (p *Pool[T]) Lookup(id string) (Resource[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.resources[id]
	if !ok {
		return Resource[T]{}, false
	}
	return *res, true
}

// Size 当前注册表大小（活跃 + 空闲）
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// Config 返回当前配置的拷贝
func (p *Pool[T]) Config() Config[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Resize adjusts the concurrency limit at runtime. Raising the limit serves
// queued waiters immediately with fresh resources while capacity allows.
func (p *Pool[T]) Resize(maxConcurrent int) {
	if maxConcurrent < 1 {
		return
	}

	type handoff struct {
		w   *waiter[T]
		res *Resource[T]
		err error
	}

	p.mu.Lock()
	p.cfg.MaxConcurrent = maxConcurrent
	var served []handoff
	for !p.closed && len(p.waiters) > 0 && p.active < p.cfg.MaxConcurrent {
		w := p.popWaiterLocked()
		res, err := p.createLocked()
		served = append(served, handoff{w: w, res: res, err: err})
		if err != nil {
			break
		}
	}
	activeNow := p.active
	p.mu.Unlock()

	for _, h := range served {
		if h.err != nil {
			h.w.ch <- waitResult[T]{err: h.err}
			continue
		}
		h.w.ch <- waitResult[T]{res: h.res}
		p.emit(Event{Kind: EventConnectionCreated, ResourceID: h.res.ID, Active: activeNow})
	}

	log.Info().Int("max_concurrent", maxConcurrent).Int("served", len(served)).Msg("Pool resized")
}

// SetRetryPolicy 运行时调整重试参数（热更新入口）
func (p *Pool[T]) SetRetryPolicy(maxRetries int, retryDelay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if maxRetries > 0 {
		p.cfg.MaxRetries = maxRetries
	}
	if retryDelay > 0 {
		p.cfg.RetryDelay = retryDelay
	}
}

// ---- 内部方法，调用前必须持有 p.mu ----

// createLocked 创建并登记一个新资源，标记为活跃
func (p *Pool[T]) createLocked() (*Resource[T], error) {
	value, err := p.factory()
	if err != nil {
		p.ctr.failed++
		return nil, err
	}

	now := time.Now()
	res := &Resource[T]{
		ID:        newResourceID(),
		Value:     value,
		CreatedAt: now,
		LastUsed:  now,
		Active:    true,
	}
	p.resources[res.ID] = res
	p.active++
	p.ctr.totalCreated++
	return res, nil
}

// insertWaiterLocked 按（优先级降序，入队顺序）插入
// seq 单调递增，所以插到同优先级段的末尾即保持 FIFO
func (p *Pool[T]) insertWaiterLocked(w *waiter[T]) {
	idx := len(p.waiters)
	for i, existing := range p.waiters {
		if existing.priority < w.priority {
			idx = i
			break
		}
	}
	p.waiters = append(p.waiters, nil)
	copy(p.waiters[idx+1:], p.waiters[idx:])
	p.waiters[idx] = w
}

func (p *Pool[T]) popWaiterLocked() *waiter[T] {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

// cancelWaiter 尝试把等待者摘出队列；返回 false 表示它已被服务
func (p *Pool[T]) cancelWaiter(w *waiter[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.waiters {
		if existing == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pool[T]) recordAcquire(start time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg.EnableMetrics {
		p.ctr.recordLatency(time.Since(start))
	}
}

func (p *Pool[T]) sweepLoop(interval time.Duration) {
	defer p.sweepWG.Done()

	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.SweepIdle()
		case <-p.done:
			return
		}
	}
}

func (p *Pool[T]) emit(ev Event) {
	ev.Time = time.Now()
	p.events.emit(ev)
}

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// newResourceID 生成时间戳 + 随机后缀的资源 ID；唯一性是它唯一的契约
func newResourceID() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = idCharset[rand.Intn(len(idCharset))]
	}
	return time.Now().Format("20060102150405.000") + "-" + string(b)
}
