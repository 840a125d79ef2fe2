package analytics

import (
	"strings"
	"time"

	"qrcode-platform/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrackingData 重定向请求里与统计相关的全部输入。
// 在响应返回前从请求头取值填充，之后不再持有任何请求作用域的引用。
type TrackingData struct {
	QRCodeID  string
	IP        string
	UserAgent string
	Referrer  string
	Language  string
	Country   string
	Region    string
	City      string
	Latitude  *float64
	Longitude *float64
}

// Tracker 记录扫描明细并维护二维码上的聚合计数。
// 统计永远不能拖慢或影响已经发出的跳转响应。
type Tracker struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewTracker 创建扫描追踪器
func NewTracker(db *gorm.DB, logger *zap.SugaredLogger) *Tracker {
	return &Tracker{
		db:     db,
		logger: logger.Named("scan_tracker"),
	}
}

// TrackAsync 异步记录一次扫描，调用方不等待结果。
// 内部任何失败只记日志，不向外传播。
func (t *Tracker) TrackAsync(data TrackingData) {
	go func() {
		if err := t.Track(data); err != nil {
			t.logger.Errorf("扫描记录失败: %v", err)
		}
	}()
}

// Track 同步执行一次扫描记录，供测试和异步入口复用
func (t *Tracker) Track(data TrackingData) error {
	device := Classify(data.UserAgent)
	visitorID := VisitorID(data.IP, data.UserAgent)

	// 按 (二维码, 访客) 查历史判断首次扫描。
	// 查询和插入之间没有加锁：同一访客并发首扫可能都被记为 unique，
	// 统计场景下可以接受这种近似。
	var priorCount int64
	if err := t.db.Model(&model.Scan{}).
		Where("qr_code_id = ? AND visitor_id = ?", data.QRCodeID, visitorID).
		Count(&priorCount).Error; err != nil {
		return err
	}
	isUnique := priorCount == 0

	scan := model.Scan{
		QRCodeID:       data.QRCodeID,
		ScannedAt:      time.Now(),
		IPAddress:      nullable(data.IP),
		VisitorID:      &visitorID,
		IsUnique:       isUnique,
		Country:        nullable(data.Country),
		Region:         nullable(data.Region),
		City:           nullable(data.City),
		Latitude:       data.Latitude,
		Longitude:      data.Longitude,
		UserAgent:      nullable(data.UserAgent),
		DeviceType:     device.Type,
		Browser:        nullable(device.Browser),
		BrowserVersion: nullable(device.BrowserVersion),
		OS:             nullable(device.OS),
		OSVersion:      nullable(device.OSVersion),
		Referrer:       nullable(data.Referrer),
		Language:       nullable(primaryLanguage(data.Language)),
	}

	if err := t.db.Create(&scan).Error; err != nil {
		return err
	}

	return t.bumpAggregates(data.QRCodeID, isUnique, scan.ScannedAt)
}

// bumpAggregates 更新二维码上的扫描聚合计数
func (t *Tracker) bumpAggregates(qrCodeID string, isUnique bool, scannedAt time.Time) error {
	updates := map[string]interface{}{
		"total_scans":     gorm.Expr("total_scans + 1"),
		"last_scanned_at": scannedAt,
	}
	if isUnique {
		updates["unique_scans"] = gorm.Expr("unique_scans + 1")
	}

	return t.db.Model(&model.QRCode{}).
		Where("id = ?", qrCodeID).
		UpdateColumns(updates).Error
}

// primaryLanguage 从 Accept-Language 中取第一个语言标签
func primaryLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	first := strings.SplitN(acceptLanguage, ",", 2)[0]
	return strings.TrimSpace(first)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
