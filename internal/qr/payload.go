package qr

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind 二维码内容类型
type Kind string

const (
	KindURL   Kind = "url"
	KindText  Kind = "text"
	KindWiFi  Kind = "wifi"
	KindVCard Kind = "vcard"
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
	KindSMS   Kind = "sms"
)

// Payload 是七种二维码内容的封闭集合。
// Encode 产生写入二维码的最终文本，格式需与扫码软件约定保持一致。
type Payload interface {
	Kind() Kind
	Encode() string
	Validate() error
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// URLPayload 网址
type URLPayload struct {
	URL string `json:"url"`
}

func (URLPayload) Kind() Kind { return KindURL }

func (p URLPayload) Encode() string {
	u := strings.TrimSpace(p.URL)
	// 缺少协议时补全 https
	if !schemePattern.MatchString(u) {
		u = "https://" + u
	}
	return u
}

func (p URLPayload) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("URL 不能为空")
	}
	return nil
}

// TextPayload 纯文本，原样写入
type TextPayload struct {
	Text string `json:"text"`
}

func (TextPayload) Kind() Kind { return KindText }

func (p TextPayload) Encode() string { return p.Text }

func (p TextPayload) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("文本不能为空")
	}
	if len(p.Text) > 4000 {
		return fmt.Errorf("文本过长")
	}
	return nil
}

// WiFiPayload 无线网络配置
// 编码格式: WIFI:T:WPA;S:networkname;P:password;H:true;;
type WiFiPayload struct {
	SSID       string `json:"ssid"`
	Password   string `json:"password"`
	Encryption string `json:"encryption"` // WPA / WEP / nopass
	Hidden     bool   `json:"hidden"`
}

func (WiFiPayload) Kind() Kind { return KindWiFi }

func (p WiFiPayload) Encode() string {
	parts := []string{
		"WIFI:T:" + p.Encryption,
		"S:" + escapeWiFiString(p.SSID),
	}

	if p.Password != "" && p.Encryption != "nopass" {
		parts = append(parts, "P:"+escapeWiFiString(p.Password))
	}

	if p.Hidden {
		parts = append(parts, "H:true")
	}

	return strings.Join(parts, ";") + ";;"
}

func (p WiFiPayload) Validate() error {
	if p.SSID == "" {
		return fmt.Errorf("网络名称不能为空")
	}
	if len(p.SSID) > 32 {
		return fmt.Errorf("网络名称过长")
	}
	if len(p.Password) > 63 {
		return fmt.Errorf("密码过长")
	}
	switch p.Encryption {
	case "WPA", "WEP", "nopass":
		return nil
	default:
		return fmt.Errorf("不支持的加密方式: %s", p.Encryption)
	}
}

// VCardPayload 名片，输出 vCard 3.0 文本
type VCardPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Title     string `json:"title"`
	Website   string `json:"website"`
	Address   string `json:"address"`
}

func (VCardPayload) Kind() Kind { return KindVCard }

func (p VCardPayload) Encode() string {
	fullName := strings.TrimSpace(p.FirstName + " " + p.LastName)

	lines := []string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:" + fullName,
		"N:" + p.LastName + ";" + p.FirstName + ";;;",
	}

	if p.Phone != "" {
		lines = append(lines, "TEL:"+p.Phone)
	}
	if p.Email != "" {
		lines = append(lines, "EMAIL:"+p.Email)
	}
	if p.Company != "" {
		lines = append(lines, "ORG:"+p.Company)
	}
	if p.Title != "" {
		lines = append(lines, "TITLE:"+p.Title)
	}
	if p.Website != "" {
		lines = append(lines, "URL:"+p.Website)
	}
	if p.Address != "" {
		lines = append(lines, "ADR:;;"+p.Address+";;;;")
	}

	lines = append(lines, "END:VCARD")
	return strings.Join(lines, "\n")
}

func (p VCardPayload) Validate() error {
	if p.FirstName == "" {
		return fmt.Errorf("名字不能为空")
	}
	return nil
}

// EmailPayload 邮件
// 编码格式: mailto:email@example.com?subject=...&body=...
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (EmailPayload) Kind() Kind { return KindEmail }

func (p EmailPayload) Encode() string {
	var params []string
	if p.Subject != "" {
		params = append(params, "subject="+url.QueryEscape(p.Subject))
	}
	if p.Body != "" {
		params = append(params, "body="+url.QueryEscape(p.Body))
	}

	if len(params) == 0 {
		return "mailto:" + p.To
	}
	return "mailto:" + p.To + "?" + strings.Join(params, "&")
}

func (p EmailPayload) Validate() error {
	if p.To == "" || !strings.Contains(p.To, "@") {
		return fmt.Errorf("收件人邮箱无效")
	}
	if len(p.Subject) > 200 {
		return fmt.Errorf("主题过长")
	}
	if len(p.Body) > 2000 {
		return fmt.Errorf("正文过长")
	}
	return nil
}

// PhonePayload 电话
type PhonePayload struct {
	Phone string `json:"phone"`
}

func (PhonePayload) Kind() Kind { return KindPhone }

func (p PhonePayload) Encode() string {
	return "tel:" + cleanPhoneNumber(p.Phone)
}

func (p PhonePayload) Validate() error {
	return validatePhone(p.Phone)
}

// SMSPayload 短信
// 编码格式: sms:+1234567890?body=...
type SMSPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (SMSPayload) Kind() Kind { return KindSMS }

func (p SMSPayload) Encode() string {
	cleaned := cleanPhoneNumber(p.Phone)
	if p.Message != "" {
		return "sms:" + cleaned + "?body=" + url.QueryEscape(p.Message)
	}
	return "sms:" + cleaned
}

func (p SMSPayload) Validate() error {
	if err := validatePhone(p.Phone); err != nil {
		return err
	}
	if len(p.Message) > 160 {
		return fmt.Errorf("短信内容过长")
	}
	return nil
}

// DecodePayload 按类型解析原始 JSON 为具体内容。
// 类型来自封闭枚举，未知类型属于调用方编程错误。
func DecodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	var p Payload

	switch kind {
	case KindURL:
		p = &URLPayload{}
	case KindText:
		p = &TextPayload{}
	case KindWiFi:
		p = &WiFiPayload{}
	case KindVCard:
		p = &VCardPayload{}
	case KindEmail:
		p = &EmailPayload{}
	case KindPhone:
		p = &PhonePayload{}
	case KindSMS:
		p = &SMSPayload{}
	default:
		return nil, fmt.Errorf("未知的二维码类型: %s", kind)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("解析 %s 内容失败: %w", kind, err)
	}
	return p, nil
}

var phonePattern = regexp.MustCompile(`^[+]?[\d\s()-]{7,20}$`)

func validatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("电话号码无效")
	}
	return nil
}

// cleanPhoneNumber 去掉数字以外的字符，只保留开头的 +
func cleanPhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && b.Len() == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeWiFiString 对 WIFI 字段中的特殊字符加反斜杠转义
func escapeWiFiString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', ';', ',', ':', '"', '\'':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
