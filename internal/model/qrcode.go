package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 支持的二维码内容类型
const (
	TypeURL   = "url"
	TypeText  = "text"
	TypeWiFi  = "wifi"
	TypeVCard = "vcard"
	TypeEmail = "email"
	TypePhone = "phone"
	TypeSMS   = "sms"
)

// QRCode 二维码记录模型
// 动态码（IsDynamic=true）必须持有唯一短码；扫描聚合计数只由追踪器更新。
type QRCode struct {
	ID              string         `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID          *string        `gorm:"type:varchar(36);index" json:"user_id"`
	Name            *string        `gorm:"size:100" json:"name"`
	Type            string         `gorm:"size:10;not null" json:"type"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	DestinationURL  *string        `gorm:"type:text" json:"destination_url"`
	IsDynamic       bool           `gorm:"default:false" json:"is_dynamic"`
	ShortCode       *string        `gorm:"size:12;uniqueIndex" json:"short_code"`
	ForegroundColor string         `gorm:"size:7;default:'#000000'" json:"foreground_color"`
	BackgroundColor string         `gorm:"size:7;default:'#FFFFFF'" json:"background_color"`
	Size            int            `gorm:"default:256" json:"size"`
	ErrorCorrection string         `gorm:"size:1;default:'M'" json:"error_correction"`
	TotalScans      int64          `gorm:"default:0" json:"total_scans"`
	UniqueScans     int64          `gorm:"default:0" json:"unique_scans"`
	LastScannedAt   *time.Time     `json:"last_scanned_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (QRCode) TableName() string {
	return "qr_codes"
}

// BeforeCreate 生成 UUID 主键
func (q *QRCode) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
