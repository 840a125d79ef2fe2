package analytics

import (
	"strings"

	"github.com/mileusna/useragent"
)

// 设备分类
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// Device UA 解析结果，字段为空表示无法识别
type Device struct {
	Type           string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
}

// Classify 解析 User-Agent。输入为空返回全未知，任何输入都不会失败。
func Classify(rawUA string) Device {
	if strings.TrimSpace(rawUA) == "" {
		return Device{Type: DeviceUnknown}
	}

	ua := useragent.Parse(rawUA)

	// 桌面浏览器通常不带设备类型标记，没有移动端信号时按桌面处理
	deviceType := DeviceUnknown
	switch {
	case ua.Mobile:
		deviceType = DeviceMobile
	case ua.Tablet:
		deviceType = DeviceTablet
	case ua.Bot:
		deviceType = DeviceUnknown
	default:
		deviceType = DeviceDesktop
	}

	return Device{
		Type:           deviceType,
		Browser:        ua.Name,
		BrowserVersion: ua.Version,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
	}
}
