package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	core "e2e-infra/poolserver/internal/service"
	"e2e-infra/poolserver/pkg/config"
)

// AuthHandler 认证相关 handler
// 运维端只有一个管理员账号，凭证来自配置（bcrypt 哈希），不落数据库
type AuthHandler struct {
	cfg *config.AuthConfig
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(cfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应数据
type LoginResponse struct {
	Token   string `json:"token,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Login 管理员登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.FailWithMessage(c, core.ErrInvalidParam, "请求参数错误")
		return
	}

	if h.cfg.AdminPasswordHash == "" {
		core.FailWithMessage(c, core.ErrInternalServer, "管理员账号未配置")
		return
	}

	if req.Username != h.cfg.AdminUser || !core.VerifyPassword(req.Password, h.cfg.AdminPasswordHash) {
		log.Debug().Str("username", req.Username).Msg("Login rejected")
		core.Success(c, LoginResponse{Success: false, Message: "用户名或密码错误"})
		return
	}

	token, err := core.CreateAccessToken(map[string]interface{}{
		"sub":  req.Username,
		"role": "admin",
	}, h.cfg.JWTSecret, time.Duration(h.cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create token")
		core.FailWithMessage(c, core.ErrInternalServer, "Token 生成失败")
		return
	}

	core.Success(c, LoginResponse{Success: true, Token: token, Message: "登录成功"})
}

// Logout 退出登录
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	core.Success(c, gin.H{"success": true})
}

// Profile 获取当前用户信息
// GET /api/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	claims, exists := c.Get("claims")
	if !exists {
		core.FailWithCode(c, core.ErrUnauthorized)
		return
	}

	claimsMap := claims.(map[string]interface{})
	core.Success(c, gin.H{
		"username": claimsMap["sub"],
		"role":     claimsMap["role"],
	})
}
