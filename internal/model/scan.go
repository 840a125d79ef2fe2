package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scan 扫描记录模型，一次短码跳转写入一行，写入后不再修改
type Scan struct {
	ID             string    `gorm:"type:varchar(36);primarykey" json:"id"`
	QRCodeID       string    `gorm:"type:varchar(36);not null;index" json:"qr_code_id"`
	ScannedAt      time.Time `gorm:"not null;index" json:"scanned_at"`
	IPAddress      *string   `gorm:"size:45" json:"ip_address"`
	VisitorID      *string   `gorm:"size:16;index" json:"visitor_id"`
	IsUnique       bool      `gorm:"default:false" json:"is_unique"`
	Country        *string   `gorm:"size:100" json:"country"`
	Region         *string   `gorm:"size:100" json:"region"`
	City           *string   `gorm:"size:100" json:"city"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	UserAgent      *string   `gorm:"type:text" json:"user_agent"`
	DeviceType     string    `gorm:"size:10;default:'unknown'" json:"device_type"`
	Browser        *string   `gorm:"size:50" json:"browser"`
	BrowserVersion *string   `gorm:"size:50" json:"browser_version"`
	OS             *string   `gorm:"size:50" json:"os"`
	OSVersion      *string   `gorm:"size:50" json:"os_version"`
	Referrer       *string   `gorm:"type:text" json:"referrer"`
	Language       *string   `gorm:"size:35" json:"language"`
}

// TableName 指定表名
func (Scan) TableName() string {
	return "scans"
}

// BeforeCreate 生成 UUID 主键并补全扫描时间
func (s *Scan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ScannedAt.IsZero() {
		s.ScannedAt = time.Now()
	}
	return nil
}
