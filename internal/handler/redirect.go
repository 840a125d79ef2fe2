package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qrcode-platform/internal/analytics"
	"qrcode-platform/internal/model"
	"qrcode-platform/internal/shortcode"
	cache "qrcode-platform/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RedirectHandler 短码跳转，延迟敏感的热路径。
// 任何情况下都回 302：查不到、已删除、非动态、目标为空或查询出错，
// 一律跳到兜底页，绝不向扫码方暴露错误页面。
type RedirectHandler struct {
	db          *gorm.DB
	redis       *redis.Client
	tracker     *analytics.Tracker
	notFoundURL string
}

// NewRedirectHandler 创建处理器实例
func NewRedirectHandler(db *gorm.DB, redisClient *redis.Client, tracker *analytics.Tracker, notFoundURL string) *RedirectHandler {
	return &RedirectHandler{
		db:          db,
		redis:       redisClient,
		tracker:     tracker,
		notFoundURL: notFoundURL,
	}
}

// Resolve 处理 GET /q/:code
func (h *RedirectHandler) Resolve(c *gin.Context) {
	code := c.Param("code")
	if !shortcode.IsValid(code) {
		c.Redirect(http.StatusFound, h.notFoundURL)
		return
	}

	// 统计数据在响应前从请求头取好，异步任务不再碰请求对象
	tracking := extractTrackingData(c)

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if dest, err := cache.LookupDestination(ctx, h.redis, code); err == nil && dest != nil {
			tracking.QRCodeID = dest.QRCodeID
			h.tracker.TrackAsync(tracking)
			c.Redirect(http.StatusFound, dest.URL)
			return
		}
	}

	// 只有未删除的动态记录能被解析；软删除由 gorm 的 DeletedAt 过滤
	var record model.QRCode
	err := h.db.Select("id, destination_url, short_code").
		Where("short_code = ? AND is_dynamic = ?", code, true).
		First(&record).Error
	if err != nil || record.DestinationURL == nil || *record.DestinationURL == "" {
		c.Redirect(http.StatusFound, h.notFoundURL)
		return
	}

	tracking.QRCodeID = record.ID
	h.tracker.TrackAsync(tracking)

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		_ = cache.CacheDestination(ctx, h.redis, code, cache.Destination{
			QRCodeID: record.ID,
			URL:      *record.DestinationURL,
		})
	}

	c.Redirect(http.StatusFound, *record.DestinationURL)
}

// extractTrackingData 从请求头收集 IP、UA、来源和边缘地理信息
func extractTrackingData(c *gin.Context) analytics.TrackingData {
	ip := c.GetHeader("x-forwarded-for")
	if ip == "" {
		ip = c.GetHeader("x-real-ip")
	}
	if ip == "" {
		ip = c.ClientIP()
	}
	// x-forwarded-for 可能带代理链，取最靠近客户端的一跳
	if idx := strings.Index(ip, ","); idx >= 0 {
		ip = strings.TrimSpace(ip[:idx])
	}

	return analytics.TrackingData{
		IP:        ip,
		UserAgent: c.GetHeader("user-agent"),
		Referrer:  c.GetHeader("referer"),
		Language:  c.GetHeader("accept-language"),
		Country:   c.GetHeader("x-geo-country"),
		Region:    c.GetHeader("x-geo-region"),
		City:      c.GetHeader("x-geo-city"),
		Latitude:  parseCoordinate(c.GetHeader("x-geo-latitude")),
		Longitude: parseCoordinate(c.GetHeader("x-geo-longitude")),
	}
}

func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
