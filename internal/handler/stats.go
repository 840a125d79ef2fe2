package handler

import (
	"net/http"
	"strconv"
	"time"

	"qrcode-platform/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatsHandler 单个二维码的扫描分析查询
type StatsHandler struct {
	db *gorm.DB
}

// NewStatsHandler 创建处理器实例
func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// OverviewResponse 扫描总览
type OverviewResponse struct {
	TotalScans     int64      `json:"total_scans"`
	UniqueScans    int64      `json:"unique_scans"`
	ScansToday     int64      `json:"scans_today"`
	ScansThisWeek  int64      `json:"scans_this_week"`
	ScansThisMonth int64      `json:"scans_this_month"`
	LastScannedAt  *time.Time `json:"last_scanned_at"`
}

// Overview 返回记录上的聚合计数和近期窗口统计
func (h *StatsHandler) Overview(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	resp := OverviewResponse{
		TotalScans:    record.TotalScans,
		UniqueScans:   record.UniqueScans,
		LastScannedAt: record.LastScannedAt,
	}
	h.countSince(record.ID, today, &resp.ScansToday)
	h.countSince(record.ID, now.AddDate(0, 0, -7), &resp.ScansThisWeek)
	h.countSince(record.ID, now.AddDate(0, -1, 0), &resp.ScansThisMonth)

	c.JSON(http.StatusOK, resp)
}

// DailyStat 按天聚合的扫描量
type DailyStat struct {
	Date        string `json:"date"`
	TotalScans  int64  `json:"total_scans"`
	UniqueScans int64  `json:"unique_scans"`
}

// Daily 返回最近 N 天（默认 30）的逐日扫描量
func (h *StatsHandler) Daily(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var stats []DailyStat
	err = h.db.Model(&model.Scan{}).
		Select("DATE(scanned_at) AS date, COUNT(*) AS total_scans, SUM(is_unique) AS unique_scans").
		Where("qr_code_id = ? AND scanned_at >= ?", record.ID, since).
		Group("DATE(scanned_at)").
		Order("date ASC").
		Scan(&stats).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "统计查询失败"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// BreakdownEntry 按维度分组的扫描占比
type BreakdownEntry struct {
	Name       string  `json:"name"`
	ScanCount  int64   `json:"scan_count"`
	Percentage float64 `json:"percentage"`
}

// DevicesResponse 设备与浏览器分布
type DevicesResponse struct {
	Devices  []BreakdownEntry `json:"devices"`
	Browsers []BreakdownEntry `json:"browsers"`
}

// Devices 返回设备类型和浏览器的扫描分布
func (h *StatsHandler) Devices(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	devices, err := h.breakdown(record.ID, "device_type")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "统计查询失败"})
		return
	}
	browsers, err := h.breakdown(record.ID, "browser")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "统计查询失败"})
		return
	}

	c.JSON(http.StatusOK, DevicesResponse{Devices: devices, Browsers: browsers})
}

// Scans 返回最近的扫描明细，默认 50 条
func (h *StatsHandler) Scans(c *gin.Context) {
	record, ok := h.findOwned(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}

	var scans []model.Scan
	if err := h.db.Where("qr_code_id = ?", record.ID).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&scans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取扫描记录失败"})
		return
	}
	c.JSON(http.StatusOK, scans)
}

func (h *StatsHandler) countSince(qrCodeID string, since time.Time, out *int64) {
	h.db.Model(&model.Scan{}).
		Where("qr_code_id = ? AND scanned_at >= ?", qrCodeID, since).
		Count(out)
}

func (h *StatsHandler) breakdown(qrCodeID, column string) ([]BreakdownEntry, error) {
	var entries []BreakdownEntry
	err := h.db.Model(&model.Scan{}).
		Select(column + " AS name, COUNT(*) AS scan_count").
		Where("qr_code_id = ?", qrCodeID).
		Where(column + " IS NOT NULL").
		Group(column).
		Order("scan_count DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}

	var total int64
	for _, e := range entries {
		total += e.ScanCount
	}
	if total > 0 {
		for i := range entries {
			entries[i].Percentage = float64(entries[i].ScanCount) / float64(total) * 100
		}
	}
	return entries, nil
}

func (h *StatsHandler) findOwned(c *gin.Context) (*model.QRCode, bool) {
	userID := c.GetString("user_id")

	var record model.QRCode
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&record).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
		return nil, false
	}
	return &record, true
}
