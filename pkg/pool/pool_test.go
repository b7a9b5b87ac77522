package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config[int] {
	return Config[int]{
		MaxConcurrent:  2,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
		IdleTimeout:    time.Hour,
		EnableMetrics:  true,
	}
}

func countingFactory() (Factory[int], *int64) {
	var n int64
	return func() (int, error) {
		return int(atomic.AddInt64(&n, 1)), nil
	}, &n
}

// 1. TestPool_CapacityInvariant - 容量不变量
// - 并发 acquire 超过上限，活跃数始终 <= MaxConcurrent
func TestPool_CapacityInvariant(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.ConnectTimeout = time.Second
	p := New(cfg, factory)
	defer p.Shutdown()

	var wg sync.WaitGroup
	var peak int64
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Acquire(context.Background(), 0)
			if err != nil {
				t.Errorf("acquire 不应该失败: %v", err)
				return
			}
			active := int64(p.Status().Active)
			for {
				old := atomic.LoadInt64(&peak)
				if active <= old || atomic.CompareAndSwapInt64(&peak, old, active) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			p.Release(res.ID)
		}()
	}
	wg.Wait()

	if peak > int64(cfg.MaxConcurrent) {
		t.Errorf("活跃资源数超过上限: peak = %d, max = %d", peak, cfg.MaxConcurrent)
	}
}

// 2. TestPool_PriorityOrder - 优先级调度
// - 入队优先级 [2,1,2,1]，服务顺序应为 [0,2,1,3]（高优先级先，同级 FIFO）
func TestPool_PriorityOrder(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.ConnectTimeout = 2 * time.Second
	p := New(cfg, factory)
	defer p.Shutdown()

	holder, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("占位 acquire 失败: %v", err)
	}

	priorities := []int{2, 1, 2, 1}
	var mu sync.Mutex
	var servedOrder []int
	var wg sync.WaitGroup

	for i, prio := range priorities {
		wg.Add(1)
		go func(idx, prio int) {
			defer wg.Done()
			res, err := p.Acquire(context.Background(), prio)
			if err != nil {
				t.Errorf("等待者 %d acquire 失败: %v", idx, err)
				return
			}
			mu.Lock()
			servedOrder = append(servedOrder, idx)
			mu.Unlock()
			p.Release(res.ID)
		}(i, prio)
		// 保证入队顺序确定
		for {
			if p.Status().Waiting == i+1 {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	p.Release(holder.ID)
	wg.Wait()

	want := []int{0, 2, 1, 3}
	for i := range want {
		if servedOrder[i] != want[i] {
			t.Fatalf("服务顺序错误: got %v, want %v", servedOrder, want)
		}
	}
}

// 3. TestPool_ReleaseHandsOffSameResource - 归还交接
// - 有等待者时 release 直接移交同一个资源，不新建
func TestPool_ReleaseHandsOffSameResource(t *testing.T) {
	factory, created := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	p := New(cfg, factory)
	defer p.Shutdown()

	first, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire 失败: %v", err)
	}

	got := make(chan *Resource[int], 1)
	go func() {
		res, err := p.Acquire(context.Background(), 0)
		if err != nil {
			t.Errorf("等待者 acquire 失败: %v", err)
		}
		got <- res
	}()

	for p.Status().Waiting != 1 {
		time.Sleep(time.Millisecond)
	}
	p.Release(first.ID)

	handed := <-got
	if handed.ID != first.ID {
		t.Errorf("应该移交同一个资源: got %s, want %s", handed.ID, first.ID)
	}
	if atomic.LoadInt64(created) != 1 {
		t.Errorf("交接路径不应该新建资源: created = %d", *created)
	}
	p.Release(handed.ID)
}

// 4. TestPool_DestroyCreatesFreshResource - 销毁补位
// - destroy 之后下一个等待者拿到的是全新资源
func TestPool_DestroyCreatesFreshResource(t *testing.T) {
	factory, created := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	p := New(cfg, factory)
	defer p.Shutdown()

	first, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire 失败: %v", err)
	}

	got := make(chan *Resource[int], 1)
	go func() {
		res, err := p.Acquire(context.Background(), 0)
		if err != nil {
			t.Errorf("等待者 acquire 失败: %v", err)
		}
		got <- res
	}()

	for p.Status().Waiting != 1 {
		time.Sleep(time.Millisecond)
	}
	p.Destroy(first.ID)

	fresh := <-got
	if fresh.ID == first.ID {
		t.Error("销毁路径不应该复用刚销毁的资源")
	}
	if atomic.LoadInt64(created) != 2 {
		t.Errorf("应该创建第二个资源: created = %d", *created)
	}
	if _, ok := p.Lookup(first.ID); ok {
		t.Error("被销毁的资源不应该还在注册表里")
	}
	p.Release(fresh.ID)
}

// 5. TestPool_AcquireTimeout - 等待超时
// - 队列得不到服务时按 ConnectTimeout 返回 ErrAcquireTimeout
// - 各等待者的超时相互独立，先入队的先超时
func TestPool_AcquireTimeout(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.ConnectTimeout = 50 * time.Millisecond
	p := New(cfg, factory)
	defer p.Shutdown()

	holder, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("占位 acquire 失败: %v", err)
	}

	start := time.Now()
	_, err = p.Acquire(context.Background(), 0)
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("应该返回 ErrAcquireTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < cfg.ConnectTimeout {
		t.Errorf("超时过早: %v < %v", elapsed, cfg.ConnectTimeout)
	}

	// 超时的等待者必须从队列中移除
	if waiting := p.Status().Waiting; waiting != 0 {
		t.Errorf("超时后队列应该为空, waiting = %d", waiting)
	}
	p.Release(holder.ID)
}

// 6. TestPool_AcquireContextCancel - 上下文取消
func TestPool_AcquireContextCancel(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	p := New(cfg, factory)
	defer p.Shutdown()

	holder, _ := p.Acquire(context.Background(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, 0)
		errCh <- err
	}()

	for p.Status().Waiting != 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("应该返回 context.Canceled, got %v", err)
	}
	p.Release(holder.ID)
}

// 7. TestPool_RetryTransientThenRecover - 瞬时错误重试
// - 未超预算时 Retry 退避后返回同一资源，计数器累加
func TestPool_RetryTransientThenRecover(t *testing.T) {
	factory, _ := countingFactory()
	p := New(testConfig(), factory)
	defer p.Shutdown()

	res, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire 失败: %v", err)
	}

	again, err := p.Retry(res.ID, errors.New("write EPIPE"))
	if err != nil {
		t.Fatalf("预算内的重试不应该失败: %v", err)
	}
	if again.ID != res.ID {
		t.Errorf("重试应该返回同一资源: got %s, want %s", again.ID, res.ID)
	}

	m := p.Metrics()
	if m.Retried != 1 {
		t.Errorf("retried 计数错误: got %d, want 1", m.Retried)
	}
	if m.EPIPEErrors != 1 {
		t.Errorf("epipe 计数错误: got %d, want 1", m.EPIPEErrors)
	}
	p.Release(res.ID)
}

// 8. TestPool_RetryExhausted - 重试耗尽
// - 超过 MaxRetries 后返回 ErrRetryExhausted，资源被销毁
func TestPool_RetryExhausted(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.MaxRetries = 2
	p := New(cfg, factory)
	defer p.Shutdown()

	res, _ := p.Acquire(context.Background(), 0)
	cause := errors.New("read ECONNRESET")

	var err error
	for i := 0; i < cfg.MaxRetries+1; i++ {
		_, err = p.Retry(res.ID, cause)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("应该返回 ErrRetryExhausted, got %v", err)
	}
	if _, ok := p.Lookup(res.ID); ok {
		t.Error("重试耗尽后资源应该被销毁")
	}
	if p.Status().Active != 0 {
		t.Errorf("销毁后活跃数应该归零, got %d", p.Status().Active)
	}
	if p.Metrics().Failed != 1 {
		t.Errorf("failed 计数错误: got %d, want 1", p.Metrics().Failed)
	}
}

// 9. TestPool_RetryNonTransient - 非瞬时错误直接透传
// - 不消耗重试预算，原样返回
func TestPool_RetryNonTransient(t *testing.T) {
	factory, _ := countingFactory()
	p := New(testConfig(), factory)
	defer p.Shutdown()

	res, _ := p.Acquire(context.Background(), 0)
	cause := errors.New("assertion failed: expected 200 got 500")

	_, err := p.Retry(res.ID, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("非瞬时错误应该原样返回, got %v", err)
	}
	if m := p.Metrics(); m.Retried != 0 || m.EPIPEErrors != 0 {
		t.Errorf("非瞬时错误不应该计入重试: retried=%d epipe=%d", m.Retried, m.EPIPEErrors)
	}

	if _, err := p.Retry("no-such-id", errors.New("epipe")); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("未知 ID 应该返回 ErrUnknownResource, got %v", err)
	}
}

// 10. TestPool_IdleSweep - 空闲回收
// - 超过 IdleTimeout 的空闲资源被回收并移出注册表，活跃资源不受影响
func TestPool_IdleSweep(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.IdleTimeout = 20 * time.Millisecond
	p := New(cfg, factory)
	defer p.Shutdown()

	idle, _ := p.Acquire(context.Background(), 0)
	busy, _ := p.Acquire(context.Background(), 0)
	p.Release(idle.ID)

	var reclaimed atomic.Int64
	p.Subscribe(EventIdleCleanup, func(ev Event) {
		reclaimed.Add(int64(ev.Reclaimed))
	})

	time.Sleep(2 * cfg.IdleTimeout)
	p.SweepIdle()

	if _, ok := p.Lookup(idle.ID); ok {
		t.Error("过期空闲资源应该被回收")
	}
	if _, ok := p.Lookup(busy.ID); !ok {
		t.Error("活跃资源不应该被回收")
	}
	if reclaimed.Load() < 1 {
		t.Errorf("应该收到 idleCleanup 事件, reclaimed = %d", reclaimed.Load())
	}
	p.Release(busy.ID)
}

// 11. TestPool_ShutdownIdempotent - 幂等关闭
// - 重复 Shutdown 安全；关闭后 acquire 快速失败；指标仍可读
func TestPool_ShutdownIdempotent(t *testing.T) {
	factory, _ := countingFactory()
	p := New(testConfig(), factory)

	res, _ := p.Acquire(context.Background(), 0)
	_ = res

	p.Shutdown()
	p.Shutdown()

	if _, err := p.Acquire(context.Background(), 0); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("关闭后 acquire 应该返回 ErrPoolClosed, got %v", err)
	}

	m := p.Metrics()
	if m.TotalCreated != 1 {
		t.Errorf("关闭后指标应该仍可读: total_created = %d", m.TotalCreated)
	}
	if p.Size() != 0 {
		t.Errorf("关闭后注册表应该清空, size = %d", p.Size())
	}
}

// 12. TestPool_ShutdownRejectsWaiters - 关闭时拒绝等待者
func TestPool_ShutdownRejectsWaiters(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.ConnectTimeout = 5 * time.Second
	p := New(cfg, factory)

	_, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire 失败: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), 0)
		errCh <- err
	}()
	for p.Status().Waiting != 1 {
		time.Sleep(time.Millisecond)
	}

	p.Shutdown()
	if err := <-errCh; !errors.Is(err, ErrPoolClosed) {
		t.Errorf("关闭时等待者应该收到 ErrPoolClosed, got %v", err)
	}
}

// 13. TestPool_CloseCallback - 销毁回调
func TestPool_CloseCallback(t *testing.T) {
	var closed atomic.Int64
	cfg := testConfig()
	cfg.Close = func(int) error {
		closed.Add(1)
		return nil
	}
	factory, _ := countingFactory()
	p := New(cfg, factory)

	res, _ := p.Acquire(context.Background(), 0)
	p.Destroy(res.ID)
	if closed.Load() != 1 {
		t.Errorf("destroy 应该触发 Close 回调: got %d", closed.Load())
	}
	// 重复销毁是 no-op
	p.Destroy(res.ID)
	if closed.Load() != 1 {
		t.Errorf("重复销毁不应该再次触发回调: got %d", closed.Load())
	}
	p.Shutdown()
}

// 14. TestPool_Events - 事件订阅与退订
func TestPool_Events(t *testing.T) {
	factory, _ := countingFactory()
	p := New(testConfig(), factory)
	defer p.Shutdown()

	var createdEvents atomic.Int64
	token := p.Subscribe(EventConnectionCreated, func(ev Event) {
		if ev.ResourceID == "" {
			t.Error("created 事件应该携带资源 ID")
		}
		createdEvents.Add(1)
	})

	res, _ := p.Acquire(context.Background(), 0)
	if createdEvents.Load() != 1 {
		t.Errorf("应该收到 1 次 created 事件, got %d", createdEvents.Load())
	}

	p.Unsubscribe(EventConnectionCreated, token)
	p.Release(res.ID)
	res2, _ := p.Acquire(context.Background(), 0)
	if createdEvents.Load() != 1 {
		t.Errorf("退订后不应该再收到事件, got %d", createdEvents.Load())
	}
	p.Release(res2.ID)
}

// 15. TestPool_Resize - 运行时扩容
// - 扩容后排队中的等待者立即获得新资源
func TestPool_Resize(t *testing.T) {
	factory, _ := countingFactory()
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.ConnectTimeout = 5 * time.Second
	p := New(cfg, factory)
	defer p.Shutdown()

	holder, _ := p.Acquire(context.Background(), 0)

	got := make(chan *Resource[int], 1)
	go func() {
		res, err := p.Acquire(context.Background(), 0)
		if err != nil {
			t.Errorf("扩容后的等待者不应该失败: %v", err)
		}
		got <- res
	}()
	for p.Status().Waiting != 1 {
		time.Sleep(time.Millisecond)
	}

	p.Resize(2)
	fresh := <-got
	if fresh == nil || fresh.ID == holder.ID {
		t.Error("扩容应该为等待者创建全新资源")
	}
	if p.Status().MaxConcurrent != 2 {
		t.Errorf("上限应该更新为 2, got %d", p.Status().MaxConcurrent)
	}
}

// 16. TestPool_FactoryError - 工厂失败
func TestPool_FactoryError(t *testing.T) {
	boom := errors.New("browser launch failed")
	p := New(testConfig(), func() (int, error) { return 0, boom })
	defer p.Shutdown()

	if _, err := p.Acquire(context.Background(), 0); !errors.Is(err, boom) {
		t.Errorf("工厂错误应该透传: got %v", err)
	}
	if p.Metrics().Failed != 1 {
		t.Errorf("工厂失败应该计入 failed: got %d", p.Metrics().Failed)
	}
}

// 17. TestHealthScore - 健康分公式
func TestHealthScore(t *testing.T) {
	tests := []struct {
		name                 string
		failed, epipe, total int64
		waiting, max         int
		want                 int
	}{
		{"全新池满分", 0, 0, 0, 0, 5, 100},
		{"零失败零等待", 0, 0, 10, 0, 5, 100},
		{"排队压力封底 80", 0, 0, 10, 5, 5, 80},
		{"半数失败", 5, 0, 10, 0, 5, 75},
		{"全部失败加满队列", 10, 10, 10, 5, 5, 0},
		{"下限钳制", 100, 100, 10, 50, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthScore(tt.failed, tt.epipe, tt.total, tt.waiting, tt.max)
			if got != tt.want {
				t.Errorf("HealthScore = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("健康分越界: %d", got)
			}
		})
	}
}
