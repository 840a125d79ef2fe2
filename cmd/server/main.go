package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"qrcode-platform/internal/analytics"
	"qrcode-platform/internal/config"
	"qrcode-platform/internal/handler"
	"qrcode-platform/internal/middleware"
	"qrcode-platform/internal/shortcode"
	"qrcode-platform/pkg/database"
	auth "qrcode-platform/pkg/jwt"
	"qrcode-platform/pkg/logger"
	"qrcode-platform/pkg/redis"

	"github.com/gin-gonic/gin"
	redisClient "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer func() {
		if err := logger.Logger.Sync(); err != nil {
			fmt.Println("日志同步失败:", err)
		}
	}()
	sugaredLogger := zap.S()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		sugaredLogger.Fatalf("配置加载失败: %v", err)
	}

	db, err := database.InitMySQL(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
	if err != nil {
		sugaredLogger.Fatalf("数据库初始化失败: %v", err)
	}
	sugaredLogger.Info("✅ 数据库连接成功")

	var rdb *redisClient.Client
	if cfg.Cache.Host != "" {
		rdb, err = redis.NewRedisClient(&redis.Options{
			Host: cfg.Cache.Host, Port: cfg.Cache.Port, Password: cfg.Cache.Password, DB: cfg.Cache.DB,
		})
		if err != nil {
			sugaredLogger.Warnf("缓存连接失败: %v", err)
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					sugaredLogger.Errorf("关闭 Redis 连接失败: %v", err)
				}
			}()
			sugaredLogger.Info("✅ 缓存连接成功")
		}
	}

	// 初始化并启动短码生成器
	shortcodeGenerator := shortcode.NewGenerator(db, sugaredLogger)
	shortcodeGenerator.Start()
	defer shortcodeGenerator.Stop()
	sugaredLogger.Info("✅ 短码生成器已启动")

	// 扫描追踪器，在跳转响应之后异步落库
	tracker := analytics.NewTracker(db, sugaredLogger)

	tokenManager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)
	sugaredLogger.Info("✅ 认证管理器初始化成功")

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapRecovery(logger.Logger, true))
	router.Use(middleware.GinZapLogger(logger.Logger))
	router.Use(middleware.RateLimit(&cfg.RateLimit))

	authMiddleware := middleware.AuthMiddleware(tokenManager)

	qrHandler := handler.NewQRCodeHandler(db, rdb, shortcodeGenerator, cfg)
	redirectHandler := handler.NewRedirectHandler(db, rdb, tracker, cfg.QR.NotFoundURL)
	statsHandler := handler.NewStatsHandler(db)
	authHandler := handler.NewAuthHandler(db, rdb, tokenManager)

	registerRoutes(router, qrHandler, redirectHandler, statsHandler, authHandler, authMiddleware)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sugaredLogger.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugaredLogger.Fatalf("服务启动失败: %v", err)
	}
}

func registerRoutes(
	router *gin.Engine,
	qrHandler *handler.QRCodeHandler,
	redirectHandler *handler.RedirectHandler,
	statsHandler *handler.StatsHandler,
	authHandler *handler.AuthHandler,
	authMiddleware gin.HandlerFunc,
) {
	router.GET("/", qrHandler.Index)
	router.GET("/health", qrHandler.HealthCheck)

	// 短码跳转是延迟敏感路径，不挂认证
	router.GET("/q/:code", redirectHandler.Resolve)

	// 匿名预览
	router.POST("/preview", qrHandler.Preview)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("/api")
	api.Use(authMiddleware)
	{
		api.GET("/me", authHandler.GetCurrentUser)

		api.POST("/qrcodes", qrHandler.Create)
		api.GET("/qrcodes", qrHandler.List)
		api.GET("/qrcodes/:id", qrHandler.Get)
		api.GET("/qrcodes/:id/image", qrHandler.Image)
		api.PUT("/qrcodes/:id", qrHandler.Update)
		api.DELETE("/qrcodes/:id", qrHandler.Delete)

		api.GET("/qrcodes/:id/stats", statsHandler.Overview)
		api.GET("/qrcodes/:id/stats/daily", statsHandler.Daily)
		api.GET("/qrcodes/:id/stats/devices", statsHandler.Devices)
		api.GET("/qrcodes/:id/scans", statsHandler.Scans)
	}
}
