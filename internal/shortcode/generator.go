package shortcode

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// Charset 短码使用的 URL 安全字符集
	Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"
	// CodeLength 是生成的短码的长度
	CodeLength = 8
	// ChannelBufferSize 是短码通道的缓冲区大小
	ChannelBufferSize = 1000
	// MinFillThreshold 是触发补充的最小阈值
	MinFillThreshold = 100
)

// 对外接受的短码格式：字母数字加 _ 和 -，长度 6 到 12
var validPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,12}$`)

// IsValid 校验短码格式
func IsValid(code string) bool {
	return validPattern.MatchString(code)
}

// Generator 负责生成和提供唯一的短码
type Generator struct {
	db        *gorm.DB
	codeChan  chan string
	mu        sync.Mutex
	isFilling bool
	stopChan  chan struct{}
	logger    *zap.SugaredLogger
}

// NewGenerator 创建一个新的短码生成器实例
func NewGenerator(db *gorm.DB, logger *zap.SugaredLogger) *Generator {
	return &Generator{
		db:       db,
		codeChan: make(chan string, ChannelBufferSize),
		stopChan: make(chan struct{}),
		logger:   logger.Named("shortcode_generator"),
	}
}

// Start 启动后台短码生成和补充任务
func (g *Generator) Start() {
	g.logger.Info("启动短码生成器...")
	go g.fillChannel() // 初始填充
	go g.monitorAndRefill()
}

// Stop 停止短码生成器
func (g *Generator) Stop() {
	close(g.stopChan)
}

// GetCode 从通道中获取一个唯一的短码
func (g *Generator) GetCode() string {
	return <-g.codeChan
}

// monitorAndRefill 监视通道的填充水平并根据需要进行补充
func (g *Generator) monitorAndRefill() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if len(g.codeChan) < MinFillThreshold {
				g.fillChannel()
			}
		case <-g.stopChan:
			return
		}
	}
}

// fillChannel 后台生成短码并填充通道
func (g *Generator) fillChannel() {
	g.mu.Lock()
	if g.isFilling {
		g.mu.Unlock()
		return
	}
	g.isFilling = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.isFilling = false
		g.mu.Unlock()
	}()

	for len(g.codeChan) < ChannelBufferSize {
		select {
		case <-g.stopChan:
			return
		default:
			code, err := g.generateUniqueCode()
			if err != nil {
				g.logger.Errorf("生成唯一短码时出错: %v", err)
				time.Sleep(100 * time.Millisecond) // 避免在错误情况下快速循环
				continue
			}
			if code != "" {
				select {
				case g.codeChan <- code:
				case <-g.stopChan:
					return
				}
			}
		}
	}
}

// generateUniqueCode 生成一个在数据库中唯一的短码
func (g *Generator) generateUniqueCode() (string, error) {
	for i := 0; i < 10; i++ {
		code, err := randomCode(CodeLength)
		if err != nil {
			return "", err
		}
		if !g.isCodeExist(code) {
			return code, nil
		}
	}
	g.logger.Warn("已尝试10次生成短码，但均存在冲突。")
	return "", nil
}

// randomCode 使用加密安全的随机数生成给定长度的短码
func randomCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(Charset))))
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}

// isCodeExist 检查给定的短码是否已被占用。
// Unscoped 把软删除的记录也算在内，被删除的码不会被复用。
func (g *Generator) isCodeExist(code string) bool {
	var count int64
	if err := g.db.Unscoped().Table("qr_codes").Where("short_code = ?", code).Count(&count).Error; err != nil {
		g.logger.Errorf("查询数据库时出错: %v", err)
		// 在不确定的情况下，保守地认为它存在以避免冲突
		return true
	}
	return count > 0
}
