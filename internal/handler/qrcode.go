package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"qrcode-platform/internal/config"
	"qrcode-platform/internal/model"
	"qrcode-platform/internal/qr"
	"qrcode-platform/internal/shortcode"
	cache "qrcode-platform/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// QRCodeHandler 二维码记录的创建、查询、编辑与软删除
type QRCodeHandler struct {
	db            *gorm.DB
	redis         *redis.Client
	codeGenerator *shortcode.Generator
	cfg           *config.Config
}

// NewQRCodeHandler 创建处理器实例
func NewQRCodeHandler(db *gorm.DB, redisClient *redis.Client, codeGenerator *shortcode.Generator, cfg *config.Config) *QRCodeHandler {
	return &QRCodeHandler{
		db:            db,
		redis:         redisClient,
		codeGenerator: codeGenerator,
		cfg:           cfg,
	}
}

// Index 服务信息
func (h *QRCodeHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

// HealthCheck 健康检查
func (h *QRCodeHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

// PreviewRequest 匿名预览请求：内容 + 渲染选项
type PreviewRequest struct {
	Type            qr.Kind         `json:"type" binding:"required"`
	Data            json.RawMessage `json:"data" binding:"required"`
	Size            int             `json:"size"`
	ForegroundColor string          `json:"foreground_color"`
	BackgroundColor string          `json:"background_color"`
	ErrorCorrection string          `json:"error_correction"`
	Margin          *int            `json:"margin"`
}

// PreviewResponse 编码结果和两种图像输出
type PreviewResponse struct {
	Content string `json:"content"`
	PNG     string `json:"png"`
	SVG     string `json:"svg"`
}

// Preview 把表单内容编码并渲染成二维码，不做持久化
func (h *QRCodeHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}

	payload, err := qr.DecodePayload(req.Type, req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := payload.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := payload.Encode()
	img, err := h.render(content, req.Size, req.ForegroundColor, req.BackgroundColor, req.ErrorCorrection, req.Margin)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{Content: content, PNG: img.PNG, SVG: img.SVG})
}

// CreateQRCodeRequest 保存二维码的请求
type CreateQRCodeRequest struct {
	Name            *string         `json:"name"`
	Type            qr.Kind         `json:"type" binding:"required"`
	Data            json.RawMessage `json:"data" binding:"required"`
	IsDynamic       bool            `json:"is_dynamic"`
	DestinationURL  *string         `json:"destination_url"`
	Size            int             `json:"size"`
	ForegroundColor string          `json:"foreground_color"`
	BackgroundColor string          `json:"background_color"`
	ErrorCorrection string          `json:"error_correction"`
}

// CreateQRCodeResponse 保存结果，动态码附带完整短链接
type CreateQRCodeResponse struct {
	QRCode   model.QRCode `json:"qr_code"`
	ShortURL string       `json:"short_url,omitempty"`
}

// Create 编码并持久化一条二维码记录。
// 动态码会分配唯一短码，码面内容是短码跳转地址而不是最终目标。
func (h *QRCodeHandler) Create(c *gin.Context) {
	var req CreateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	if req.Name != nil && len(*req.Name) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "名称过长"})
		return
	}

	payload, err := qr.DecodePayload(req.Type, req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := payload.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	content := payload.Encode()

	record := model.QRCode{
		UserID:          &userID,
		Name:            req.Name,
		Type:            string(req.Type),
		Content:         content,
		IsDynamic:       req.IsDynamic,
		ForegroundColor: defaultString(req.ForegroundColor, "#000000"),
		BackgroundColor: defaultString(req.BackgroundColor, "#FFFFFF"),
		Size:            defaultInt(req.Size, h.cfg.QR.DefaultSize),
		ErrorCorrection: defaultString(req.ErrorCorrection, "M"),
	}

	var shortURL string
	if req.IsDynamic {
		destination := ""
		if req.DestinationURL != nil {
			destination = *req.DestinationURL
		} else if req.Type == qr.KindURL {
			// URL 类型的动态码默认跳回编码出的地址
			destination = content
		}
		if destination == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "动态码必须提供跳转目标地址"})
			return
		}

		// 从预生成通道获取短码，这是一个高性能操作
		code := h.codeGenerator.GetCode()
		shortURL = h.cfg.App.BaseURL + "/q/" + code
		record.ShortCode = &code
		record.DestinationURL = &destination
		// 动态码的码面内容是短码跳转地址，目标可改而无需重印
		record.Content = shortURL
	}

	if err := h.db.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存失败，可能是数据库错误或短码冲突"})
		return
	}

	if h.redis != nil && record.ShortCode != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = cache.CacheDestination(ctx, h.redis, *record.ShortCode, cache.Destination{
			QRCodeID: record.ID,
			URL:      *record.DestinationURL,
		})
	}

	c.JSON(http.StatusCreated, CreateQRCodeResponse{QRCode: record, ShortURL: shortURL})
}

// List 返回当前用户的全部记录，最新的在前
func (h *QRCodeHandler) List(c *gin.Context) {
	userID := c.GetString("user_id")

	var records []model.QRCode
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取记录失败"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// Get 按 id 返回单条记录
func (h *QRCodeHandler) Get(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, record)
}

// Image 渲染已保存记录的二维码图像
func (h *QRCodeHandler) Image(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	img, err := h.render(record.Content, record.Size, record.ForegroundColor, record.BackgroundColor, record.ErrorCorrection, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "渲染失败"})
		return
	}
	c.JSON(http.StatusOK, PreviewResponse{Content: record.Content, PNG: img.PNG, SVG: img.SVG})
}

// UpdateQRCodeRequest 可编辑字段；未提供的字段保持原值
type UpdateQRCodeRequest struct {
	Name           *string `json:"name"`
	DestinationURL *string `json:"destination_url"`
}

// Update 编辑名称或跳转目标。并发编辑按后写覆盖处理。
func (h *QRCodeHandler) Update(c *gin.Context) {
	var req UpdateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}
	if req.Name != nil && len(*req.Name) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "名称过长"})
		return
	}

	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.DestinationURL != nil {
		if !record.IsDynamic {
			c.JSON(http.StatusBadRequest, gin.H{"error": "静态码不支持修改跳转目标"})
			return
		}
		updates["destination_url"] = *req.DestinationURL
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, record)
		return
	}

	if err := h.db.Model(record).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新失败"})
		return
	}
	if req.Name != nil {
		record.Name = req.Name
	}
	if req.DestinationURL != nil {
		record.DestinationURL = req.DestinationURL
	}

	// 跳转目标变了，旧缓存必须失效
	if req.DestinationURL != nil && h.redis != nil && record.ShortCode != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = cache.InvalidateDestination(ctx, h.redis, *record.ShortCode)
	}

	c.JSON(http.StatusOK, record)
}

// Delete 软删除记录；短码从此不可解析
func (h *QRCodeHandler) Delete(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	if h.redis != nil && record.ShortCode != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = cache.InvalidateDestination(ctx, h.redis, *record.ShortCode)
	}

	if err := h.db.Delete(record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// findOwned 按 id 和当前用户查找记录，找不到时直接写出 404
func (h *QRCodeHandler) findOwned(c *gin.Context) (*model.QRCode, bool) {
	userID := c.GetString("user_id")

	var record model.QRCode
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&record).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
		return nil, false
	}
	return &record, true
}

func (h *QRCodeHandler) render(content string, size int, fg, bg, level string, margin *int) (*qr.Image, error) {
	m := h.cfg.QR.DefaultMargin
	if margin != nil {
		m = *margin
	}
	return qr.Render(qr.RenderOptions{
		Content:         content,
		Size:            defaultInt(size, h.cfg.QR.DefaultSize),
		ForegroundColor: fg,
		BackgroundColor: bg,
		ErrorCorrection: level,
		Margin:          m,
	})
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
