// Package factory provides concrete resource factories for the pool.
// Each factory pairs a creation function with a close callback; the pool
// owns the lifecycle in between.
package factory

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"e2e-infra/poolserver/pkg/pool"
)

// HTTPSession 池化的 HTTP 会话
// 对应 E2E 场景里的"浏览器上下文"：独立的连接池、独立的生命周期
type HTTPSession struct {
	Client    *http.Client
	BaseURL   string
	CreatedAt time.Time
}

// HTTPSessionFactory returns a pool.Factory producing HTTP sessions against
// baseURL. Sessions do not share transports, so destroying one cannot poison
// another's connections.
func HTTPSessionFactory(baseURL string, timeout time.Duration) pool.Factory[*HTTPSession] {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func() (*HTTPSession, error) {
		transport := &http.Transport{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
		return &HTTPSession{
			Client: &http.Client{
				Transport: transport,
				Timeout:   timeout,
			},
			BaseURL:   baseURL,
			CreatedAt: time.Now(),
		}, nil
	}
}

// CloseHTTPSession 销毁回调
func CloseHTTPSession(s *HTTPSession) error {
	if s != nil && s.Client != nil {
		s.Client.CloseIdleConnections()
	}
	return nil
}

// Get 在会话上发起 GET 请求并丢弃响应体
// 返回的错误保持原样，交给 pool.IsTransient 分类
func (s *HTTPSession) Get(path string) error {
	resp, err := s.Client.Get(s.BaseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned %d for %s", resp.StatusCode, path)
	}
	return nil
}
