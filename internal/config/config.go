package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// 主配置结构
type Config struct {
	App       App    `yaml:"app"`
	Server    Server `yaml:"server"`
	Database  DB     `yaml:"database"`
	Cache     Cache  `yaml:"cache"`
	Auth      Auth   `yaml:"auth"`
	RateLimit Limit  `yaml:"rate_limit"`
	QR        QR     `yaml:"qr"`
}

// 应用配置
type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
	BaseURL string `yaml:"base_url"`
}

// 服务器配置
type Server struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// 数据库配置
type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// 缓存配置（Redis）
type Cache struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// 认证配置
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// 二维码配置
type QR struct {
	DefaultSize    int    `yaml:"default_size"`     // 预览默认像素宽度
	DefaultMargin  int    `yaml:"default_margin"`   // 静区模块数
	NotFoundURL    string `yaml:"not_found_url"`    // 短码无法解析时的兜底跳转地址
	LocalStorePath string `yaml:"local_store_path"` // 匿名本地存储文件路径
}

// 加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 补全未配置的二维码默认值
func (c *Config) applyDefaults() {
	if c.QR.DefaultSize == 0 {
		c.QR.DefaultSize = 256
	}
	if c.QR.DefaultMargin == 0 {
		c.QR.DefaultMargin = 2
	}
	if c.QR.NotFoundURL == "" {
		c.QR.NotFoundURL = "/not-found"
	}
	if c.QR.LocalStorePath == "" {
		c.QR.LocalStorePath = "./data/qr_codes.json"
	}
}
