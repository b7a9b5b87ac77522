package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/config"
)

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			core.AbortWithMessage(c, core.ErrUnauthorized, "缺少认证信息")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			core.AbortWithMessage(c, core.ErrUnauthorized, "认证格式错误")
			return
		}

		claims, err := core.VerifyToken(parts[1], secret)
		if err != nil {
			if err == core.ErrTokenExpired {
				core.AbortWithMessage(c, core.ErrAuthTokenExpired, "Token 已过期")
			} else {
				core.AbortWithMessage(c, core.ErrAuthTokenInvalid, "无效的 Token")
			}
			return
		}

		c.Set("claims", claims)
		c.Set("username", claims["sub"])

		c.Next()
	}
}

// DependencyInjectionMiddleware 将共享依赖注入请求上下文
// Redis 可以为 nil，Handler 自行判断降级
func DependencyInjectionMiddleware(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb != nil {
			c.Set("redis", rdb)
		}
		c.Set("config", cfg)
		c.Next()
	}
}
