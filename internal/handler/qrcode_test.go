package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qrcode-platform/internal/config"
	"qrcode-platform/internal/model"
	"qrcode-platform/internal/shortcode"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testUserID = "11111111-1111-1111-1111-111111111111"

// setupQRTest 初始化内存数据库、短码生成器和带伪认证的路由
func setupQRTest(t *testing.T) (*gin.Engine, *gorm.DB, func()) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "无法连接到内存数据库")
	require.NoError(t, db.AutoMigrate(&model.QRCode{}, &model.Scan{}, &model.User{}))

	logger, _ := zap.NewDevelopment()
	generator := shortcode.NewGenerator(db, logger.Sugar())
	generator.Start()

	cfg := &config.Config{}
	cfg.App.BaseURL = "http://localhost:8080"
	cfg.QR.DefaultSize = 256
	cfg.QR.DefaultMargin = 2
	cfg.QR.NotFoundURL = "/not-found"

	// 测试不依赖 Redis，传入 nil
	qrHandler := NewQRCodeHandler(db, nil, generator, cfg)
	statsHandler := NewStatsHandler(db)

	router := gin.New()
	router.POST("/preview", qrHandler.Preview)

	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set("user_id", testUserID)
		c.Next()
	})
	api.POST("/qrcodes", qrHandler.Create)
	api.GET("/qrcodes", qrHandler.List)
	api.GET("/qrcodes/:id", qrHandler.Get)
	api.GET("/qrcodes/:id/image", qrHandler.Image)
	api.PUT("/qrcodes/:id", qrHandler.Update)
	api.DELETE("/qrcodes/:id", qrHandler.Delete)
	api.GET("/qrcodes/:id/stats", statsHandler.Overview)

	cleanup := func() {
		generator.Stop()
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}
	return router, db, cleanup
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestPreviewWiFi 预览端到端：表单内容 → 码面文本 → 图像
func TestPreviewWiFi(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/preview", gin.H{
		"type": "wifi",
		"data": gin.H{"ssid": "Home Net", "password": "p@ss;1", "encryption": "WPA", "hidden": true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, `WIFI:T:WPA;S:Home Net;P:p@ss\;1;H:true;;`, resp.Content)
	assert.True(t, strings.HasPrefix(resp.PNG, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(resp.SVG, "<svg"))
}

// TestPreviewRejectsUnknownType 未知类型是请求错误
func TestPreviewRejectsUnknownType(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/preview", gin.H{
		"type": "barcode",
		"data": gin.H{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestCreateAndFetchStaticCode 保存静态码后按 id 取回同样的内容
func TestCreateAndFetchStaticCode(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"name": "我的 WiFi",
		"type": "wifi",
		"data": gin.H{"ssid": "Home Net", "password": "p@ss;1", "encryption": "WPA", "hidden": true},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, `WIFI:T:WPA;S:Home Net;P:p@ss\;1;H:true;;`, created.QRCode.Content)
	assert.False(t, created.QRCode.IsDynamic)
	assert.Nil(t, created.QRCode.ShortCode)
	assert.Empty(t, created.ShortURL)

	// 取回的内容与保存时一致
	w = doJSON(router, http.MethodGet, "/api/qrcodes/"+created.QRCode.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched model.QRCode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created.QRCode.Content, fetched.Content)
}

// TestCreateDynamicCode 动态码分配短码，码面内容是短链接
func TestCreateDynamicCode(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type":            "url",
		"data":            gin.H{"url": "example.com/landing"},
		"is_dynamic":      true,
		"destination_url": "https://example.com/landing",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.QRCode.ShortCode)
	assert.True(t, shortcode.IsValid(*created.QRCode.ShortCode))
	assert.Equal(t, "http://localhost:8080/q/"+*created.QRCode.ShortCode, created.QRCode.Content)
	assert.Equal(t, created.QRCode.Content, created.ShortURL)
	require.NotNil(t, created.QRCode.DestinationURL)
	assert.Equal(t, "https://example.com/landing", *created.QRCode.DestinationURL)
}

// TestCreateDynamicRequiresDestination 非 URL 类型的动态码必须显式给目标
func TestCreateDynamicRequiresDestination(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type":       "text",
		"data":       gin.H{"text": "hello"},
		"is_dynamic": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestUpdateIdempotent 同样的部分更新重复执行，最终状态一致
func TestUpdateIdempotent(t *testing.T) {
	router, db, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type":            "url",
		"data":            gin.H{"url": "example.com"},
		"is_dynamic":      true,
		"destination_url": "https://example.com/old",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	update := gin.H{"name": "改名后", "destination_url": "https://example.com/new"}
	w = doJSON(router, http.MethodPut, "/api/qrcodes/"+created.QRCode.ID, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(router, http.MethodPut, "/api/qrcodes/"+created.QRCode.ID, update)
	require.Equal(t, http.StatusOK, w.Code)

	var record model.QRCode
	require.NoError(t, db.First(&record, "id = ?", created.QRCode.ID).Error)
	require.NotNil(t, record.Name)
	assert.Equal(t, "改名后", *record.Name)
	require.NotNil(t, record.DestinationURL)
	assert.Equal(t, "https://example.com/new", *record.DestinationURL)
}

// TestUpdateStaticDestinationRejected 静态码不能改跳转目标
func TestUpdateStaticDestinationRejected(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type": "text",
		"data": gin.H{"text": "hello"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodPut, "/api/qrcodes/"+created.QRCode.ID, gin.H{
		"destination_url": "https://example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestDeleteSoftDeletes 删除后列表不可见，数据库里保留软删标记
func TestDeleteSoftDeletes(t *testing.T) {
	router, db, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type": "text",
		"data": gin.H{"text": "hello"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodDelete, "/api/qrcodes/"+created.QRCode.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/qrcodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []model.QRCode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Empty(t, records)

	// 物理行仍在，只是带上了删除标记
	var count int64
	db.Unscoped().Model(&model.QRCode{}).Where("id = ?", created.QRCode.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

// TestStatsOverviewEmpty 无扫描的记录总览全为零
func TestStatsOverviewEmpty(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type": "text",
		"data": gin.H{"text": "hello"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodGet, "/api/qrcodes/"+created.QRCode.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview OverviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Zero(t, overview.TotalScans)
	assert.Zero(t, overview.UniqueScans)
	assert.Nil(t, overview.LastScannedAt)
}

// TestImageRendersStoredRecord 已保存的记录能渲染出图像
func TestImageRendersStoredRecord(t *testing.T) {
	router, _, cleanup := setupQRTest(t)
	defer cleanup()

	w := doJSON(router, http.MethodPost, "/api/qrcodes", gin.H{
		"type": "url",
		"data": gin.H{"url": "example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateQRCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodGet, "/api/qrcodes/"+created.QRCode.ID+"/image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://example.com", resp.Content)
	assert.True(t, strings.HasPrefix(resp.PNG, "data:image/png;base64,"))
}
