package analytics

import (
	"fmt"
	"testing"
	"time"

	"qrcode-platform/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTrackerTest 初始化内存数据库和追踪器
func setupTrackerTest(t *testing.T) (*gorm.DB, *Tracker) {
	// 每个测试用独立的共享内存库，连接池内可见同一份数据
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "无法连接到内存数据库")

	require.NoError(t, db.AutoMigrate(&model.QRCode{}, &model.Scan{}))

	logger, _ := zap.NewDevelopment()
	return db, NewTracker(db, logger.Sugar())
}

func createDynamicCode(t *testing.T, db *gorm.DB, code string) *model.QRCode {
	dest := "https://example.com"
	record := model.QRCode{
		Type:           model.TypeURL,
		Content:        "http://localhost:8080/q/" + code,
		IsDynamic:      true,
		ShortCode:      &code,
		DestinationURL: &dest,
	}
	require.NoError(t, db.Create(&record).Error)
	return &record
}

// TestTrackUniqueness 首扫 unique，同指纹复扫不再 unique
func TestTrackUniqueness(t *testing.T) {
	db, tracker := setupTrackerTest(t)
	record := createDynamicCode(t, db, "code_one")

	data := TrackingData{
		QRCodeID:  record.ID,
		IP:        "1.2.3.4",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0",
	}

	require.NoError(t, tracker.Track(data))
	require.NoError(t, tracker.Track(data))

	var scans []model.Scan
	require.NoError(t, db.Where("qr_code_id = ?", record.ID).Order("scanned_at ASC").Find(&scans).Error)
	require.Len(t, scans, 2)
	assert.True(t, scans[0].IsUnique, "第一次扫描应为 unique")
	assert.False(t, scans[1].IsUnique, "同指纹的第二次扫描不应为 unique")
	assert.Equal(t, *scans[0].VisitorID, *scans[1].VisitorID)
}

// TestTrackUniquenessScopedPerCode 去重按二维码隔离
func TestTrackUniquenessScopedPerCode(t *testing.T) {
	db, tracker := setupTrackerTest(t)
	first := createDynamicCode(t, db, "code_one")
	second := createDynamicCode(t, db, "code_two")

	data := TrackingData{IP: "1.2.3.4", UserAgent: "Mozilla/5.0"}

	data.QRCodeID = first.ID
	require.NoError(t, tracker.Track(data))
	data.QRCodeID = second.ID
	require.NoError(t, tracker.Track(data))

	var scan model.Scan
	require.NoError(t, db.Where("qr_code_id = ?", second.ID).First(&scan).Error)
	assert.True(t, scan.IsUnique, "同一指纹在另一个码上是独立的首扫")
}

// TestTrackAggregates 聚合计数和最后扫描时间跟随扫描更新
func TestTrackAggregates(t *testing.T) {
	db, tracker := setupTrackerTest(t)
	record := createDynamicCode(t, db, "code_one")

	data := TrackingData{QRCodeID: record.ID, IP: "1.2.3.4", UserAgent: "Mozilla/5.0"}
	require.NoError(t, tracker.Track(data))
	require.NoError(t, tracker.Track(data))

	other := TrackingData{QRCodeID: record.ID, IP: "5.6.7.8", UserAgent: "Mozilla/5.0"}
	require.NoError(t, tracker.Track(other))

	var updated model.QRCode
	require.NoError(t, db.First(&updated, "id = ?", record.ID).Error)
	assert.Equal(t, int64(3), updated.TotalScans)
	assert.Equal(t, int64(2), updated.UniqueScans)
	require.NotNil(t, updated.LastScannedAt)
	assert.WithinDuration(t, time.Now(), *updated.LastScannedAt, 5*time.Second)
}

// TestTrackDerivedFields 设备、指纹和主语言被正确写入
func TestTrackDerivedFields(t *testing.T) {
	db, tracker := setupTrackerTest(t)
	record := createDynamicCode(t, db, "code_one")

	require.NoError(t, tracker.Track(TrackingData{
		QRCodeID:  record.ID,
		IP:        "1.2.3.4",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		Referrer:  "https://news.example.com",
		Language:  "zh-CN,zh;q=0.9,en;q=0.8",
	}))

	var scan model.Scan
	require.NoError(t, db.Where("qr_code_id = ?", record.ID).First(&scan).Error)
	assert.Equal(t, DeviceMobile, scan.DeviceType)
	require.NotNil(t, scan.VisitorID)
	assert.NotEmpty(t, *scan.VisitorID)
	require.NotNil(t, scan.Language)
	assert.Equal(t, "zh-CN", *scan.Language, "只取第一个语言标签")
	require.NotNil(t, scan.Referrer)
	assert.Equal(t, "https://news.example.com", *scan.Referrer)
}

// TestTrackAsyncSwallowsErrors 异步入口对失败只记日志，不影响调用方
func TestTrackAsyncSwallowsErrors(t *testing.T) {
	db, tracker := setupTrackerTest(t)
	_ = db

	assert.NotPanics(t, func() {
		// 指向不存在的记录，内部写入失败但不能外泄
		tracker.TrackAsync(TrackingData{QRCodeID: "missing", IP: "1.2.3.4"})
		time.Sleep(100 * time.Millisecond)
	})
}
