package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalQRCode 匿名本地存储的二维码记录（单设备，无账号归属）
type LocalQRCode struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Content         string    `json:"content"`
	ForegroundColor string    `json:"foreground_color"`
	BackgroundColor string    `json:"background_color"`
	Size            int       `json:"size"`
	ErrorCorrection string    `json:"error_correction"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LocalUpdates 部分更新，nil 字段保持原值
type LocalUpdates struct {
	Name            *string `json:"name"`
	Content         *string `json:"content"`
	ForegroundColor *string `json:"foreground_color"`
	BackgroundColor *string `json:"background_color"`
	Size            *int    `json:"size"`
	ErrorCorrection *string `json:"error_correction"`
}

// LocalStore 把记录列表保存在单个 JSON 文件里。
// 所有失败都被捕获并以 nil/false 返回，绝不向调用方抛出。
type LocalStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.SugaredLogger
}

// NewLocalStore 创建本地存储
func NewLocalStore(path string, logger *zap.SugaredLogger) *LocalStore {
	return &LocalStore{
		path:   path,
		logger: logger.Named("local_store"),
	}
}

// List 返回全部记录，最新的在前；读取失败返回空列表
func (s *LocalStore) List() []LocalQRCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get 按 id 查找记录，找不到返回 nil
func (s *LocalStore) Get(id string) *LocalQRCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.load() {
		if rec.ID == id {
			r := rec
			return &r
		}
	}
	return nil
}

// Insert 写入新记录，生成 id 和时间戳；失败返回 nil
func (s *LocalStore) Insert(rec LocalQRCode) *LocalQRCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	records := append([]LocalQRCode{rec}, s.load()...)
	if !s.save(records) {
		return nil
	}
	return &rec
}

// Update 部分更新记录并推进 updated_at；记录不存在或写入失败返回 nil。
// 同样的更新重复应用，结果状态一致（updated_at 除外）。
func (s *LocalStore) Update(id string, updates LocalUpdates) *LocalQRCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	for i := range records {
		if records[i].ID != id {
			continue
		}

		if updates.Name != nil {
			records[i].Name = *updates.Name
		}
		if updates.Content != nil {
			records[i].Content = *updates.Content
		}
		if updates.ForegroundColor != nil {
			records[i].ForegroundColor = *updates.ForegroundColor
		}
		if updates.BackgroundColor != nil {
			records[i].BackgroundColor = *updates.BackgroundColor
		}
		if updates.Size != nil {
			records[i].Size = *updates.Size
		}
		if updates.ErrorCorrection != nil {
			records[i].ErrorCorrection = *updates.ErrorCorrection
		}
		records[i].UpdatedAt = time.Now()

		if !s.save(records) {
			return nil
		}
		r := records[i]
		return &r
	}
	return nil
}

// Remove 按 id 物理删除记录（本地侧没有软删除）
func (s *LocalStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	filtered := records[:0:0]
	for _, rec := range records {
		if rec.ID != id {
			filtered = append(filtered, rec)
		}
	}
	if len(filtered) == len(records) {
		return false
	}
	return s.save(filtered)
}

func (s *LocalStore) load() []LocalQRCode {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf("读取本地存储失败: %v", err)
		}
		return nil
	}

	var records []LocalQRCode
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warnf("本地存储内容损坏: %v", err)
		return nil
	}
	return records
}

func (s *LocalStore) save(records []LocalQRCode) bool {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Errorf("创建存储目录失败: %v", err)
		return false
	}

	data, err := json.Marshal(records)
	if err != nil {
		s.logger.Errorf("序列化本地存储失败: %v", err)
		return false
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Errorf("写入本地存储失败: %v", err)
		return false
	}
	return true
}
