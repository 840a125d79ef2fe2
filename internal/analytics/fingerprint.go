package analytics

import (
	"strconv"
)

// VisitorID 从 IP 和 User-Agent 推导稳定的访客标识，用于近似去重统计。
// 同样的输入在任何进程里都产生同样的结果（无盐、无随机），
// 这不是安全级标识：哈希碰撞和共享出口 IP 导致的误判是接受的代价。
func VisitorID(ip, userAgent string) string {
	if ip == "" {
		ip = "unknown"
	}
	if userAgent == "" {
		userAgent = "unknown"
	}

	// 32 位滚动哈希: hash = hash*31 + 字符码，按 32 位回绕
	var hash int32
	for _, r := range ip + "-" + userAgent {
		hash = hash*31 + int32(r)
	}

	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 36)
}
