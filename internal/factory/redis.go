package factory

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"e2e-infra/poolserver/pkg/pool"
)

// RedisSession returns a pool.Factory producing dedicated Redis clients.
// Each resource gets its own client so a broken connection retires alone.
// 创建时 Ping 一次，挂掉的后端在 acquire 阶段就暴露出来
func RedisSession(opts *redis.Options, timeout time.Duration) pool.Factory[*redis.Client] {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func() (*redis.Client, error) {
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	}
}

// CloseRedisSession 销毁回调
func CloseRedisSession(c *redis.Client) error {
	if c == nil {
		return nil
	}
	return c.Close()
}
