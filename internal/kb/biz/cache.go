package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

// AnswerCacheConfig 答案缓存配置。
type AnswerCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// AnswerCache 非流式回答缓存。键按租户分区，租户内容变更时整体失效。
type AnswerCache struct {
	redis  goredis.Cmdable
	config *AnswerCacheConfig
}

// NewAnswerCache 创建答案缓存。redis 为 nil 时缓存不生效。
func NewAnswerCache(redis goredis.Cmdable, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       10 * time.Minute,
			KeyPrefix: "kb:answer:",
		}
	}
	return &AnswerCache{redis: redis, config: config}
}

func (c *AnswerCache) active() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

func (c *AnswerCache) tenantPrefix(tenantID string) string {
	return c.config.KeyPrefix + Fingerprint(tenantID) + ":"
}

// Key 生成缓存键 (问题规范化后做 SHA256)。
func (c *AnswerCache) Key(tenantID, kind, query string, topK int, structured bool) string {
	if c == nil {
		return ""
	}
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%t", tenantID, kind, norm, topK, structured)))
	return c.tenantPrefix(tenantID) + hex.EncodeToString(hash[:])
}

// Get 读取缓存，未命中或出错时返回 false。
func (c *AnswerCache) Get(ctx context.Context, key string) (*model.ChatResponse, bool) {
	if !c.active() {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from cache", "error", err.Error(), "key", key)
		}
		return nil, false
	}

	var resp model.ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	logger.Debugw("cache hit", "key", key)
	return &resp, true
}

// Set 写入缓存。
func (c *AnswerCache) Set(ctx context.Context, key string, resp *model.ChatResponse) {
	if !c.active() {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", key)
	}
}

// InvalidateTenant 删除租户的全部缓存答案，返回删除数量。
func (c *AnswerCache) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	if !c.active() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.tenantPrefix(tenantID)+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan: %w", err)
	}
	return deleted, nil
}
