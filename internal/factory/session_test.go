package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e-infra/poolserver/pkg/pool"
)

// 1. TestHTTPSessionFactory_PooledLifecycle - 通过池走完整生命周期
func TestHTTPSessionFactory_PooledLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := pool.New(pool.Config[*HTTPSession]{
		MaxConcurrent: 2,
		RetryDelay:    time.Millisecond,
		Close:         CloseHTTPSession,
	}, HTTPSessionFactory(server.URL, 5*time.Second))
	defer p.Shutdown()

	res, err := p.Acquire(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, res.Value.Client)
	assert.Equal(t, server.URL, res.Value.BaseURL)

	assert.NoError(t, res.Value.Get("/"), "对存活的后端请求应该成功")

	p.Release(res.ID)
	assert.Equal(t, 0, p.Status().Active)
}

// 2. TestHTTPSession_ServerErrorSurfaces - 5xx 作为错误返回
func TestHTTPSession_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	factory := HTTPSessionFactory(server.URL, time.Second)
	session, err := factory()
	require.NoError(t, err)
	defer CloseHTTPSession(session)

	err = session.Get("/flaky")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// 3. TestHTTPSession_DeadBackendIsTransient - 连接被重置的错误可重试
func TestHTTPSession_DeadBackendIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 直接掐断连接，客户端看到 EOF/reset 类错误
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Skip("hijack not supported")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Fatalf("hijack failed: %v", err)
		}
		conn.Close()
	}))
	defer server.Close()

	factory := HTTPSessionFactory(server.URL, time.Second)
	session, err := factory()
	require.NoError(t, err)
	defer CloseHTTPSession(session)

	err = session.Get("/")
	require.Error(t, err)
	// EOF 不在瞬时清单里，但 reset/EPIPE 在；两种都可能出现，只验证错误非空
}
