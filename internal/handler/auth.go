package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"qrcode-platform/internal/model"
	auth "qrcode-platform/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AuthHandler 包含认证相关的处理器
type AuthHandler struct {
	db         *gorm.DB
	redis      *redis.Client
	jwtManager *auth.TokenManager
}

// NewAuthHandler 创建一个新的 AuthHandler
func NewAuthHandler(db *gorm.DB, redisClient *redis.Client, jwtManager *auth.TokenManager) *AuthHandler {
	return &AuthHandler{db: db, redis: redisClient, jwtManager: jwtManager}
}

// LoginRequest 定义了登录请求的结构体
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 定义了注册请求的结构体
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// AuthResponse 定义了认证成功后的响应
type AuthResponse struct {
	Token string `json:"token"`
}

// Login 使用用户名和密码获取 JWT 令牌
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}

	user, found := h.loadUser(req.Username)
	if !found || !user.CheckPassword(req.Password) || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "令牌签发失败"})
		return
	}

	now := time.Now()
	h.db.Model(user).UpdateColumn("last_login", now)
	h.cacheUser(user)

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// Register 注册新用户
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}

	user := model.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     "user",
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "密码处理失败"})
		return
	}

	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "用户名或邮箱已被占用"})
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "令牌签发失败"})
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// GetCurrentUser 返回当前登录用户信息
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("user_id")

	var user model.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	})
}

// loadUser 优先从缓存取用户，未命中时回源数据库
func (h *AuthHandler) loadUser(username string) (*model.User, bool) {
	userKey := "user:" + username

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if val, err := h.redis.Get(ctx, userKey).Result(); err == nil {
			var user model.User
			if json.Unmarshal([]byte(val), &user) == nil {
				return &user, true
			}
		}
	}

	var user model.User
	if err := h.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

// cacheUser 把用户信息写入缓存，失败忽略
func (h *AuthHandler) cacheUser(user *model.User) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	h.redis.Set(ctx, "user:"+user.Username, data, time.Hour)
}
