package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 短码缓存的键前缀与有效期
const (
	destKeyPrefix = "qrdest:"
	destTTL       = 24 * time.Hour
)

type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Destination 是重定向热路径上缓存的最小记录
type Destination struct {
	QRCodeID string `json:"qr_code_id"`
	URL      string `json:"url"`
}

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(opts *Options) (*redis.Client, error) {
	if opts.Host == "" {
		return nil, nil
	}

	address := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: 20,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %v", err)
	}

	return client, nil
}

// CacheDestination 缓存短码对应的跳转目标
func CacheDestination(ctx context.Context, client *redis.Client, shortCode string, dest Destination) error {
	data, err := json.Marshal(dest)
	if err != nil {
		return err
	}
	return client.Set(ctx, destKeyPrefix+shortCode, data, destTTL).Err()
}

// LookupDestination 从缓存读取跳转目标，未命中返回 (nil, nil)
func LookupDestination(ctx context.Context, client *redis.Client, shortCode string) (*Destination, error) {
	raw, err := client.Get(ctx, destKeyPrefix+shortCode).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dest Destination
	if err := json.Unmarshal([]byte(raw), &dest); err != nil {
		return nil, err
	}
	return &dest, nil
}

// InvalidateDestination 在记录被编辑或删除后清除缓存
func InvalidateDestination(ctx context.Context, client *redis.Client, shortCode string) error {
	return client.Del(ctx, destKeyPrefix+shortCode).Err()
}
