package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"MintRelay/pkg/logger"
)

const defaultCacheTTL = 10 * time.Minute

// CacheConfig 描述了评分缓存所使用的 Redis 连接信息。
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedScorer 在内层评分器之上叠加一层 Redis 读穿缓存。
// 缓存访问失败时直接回退到内层评分器，不影响评分结果。
type CachedScorer struct {
	inner Scorer
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedScorer 创建带 Redis 缓存的评分器。
func NewCachedScorer(inner Scorer, cfg CacheConfig) (*CachedScorer, error) {
	if inner == nil {
		return nil, errors.New("内层评分器不能为空")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("未配置 Redis 地址")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &CachedScorer{inner: inner, rdb: rdb, ttl: ttl}, nil
}

func cacheKey(address string) string {
	return "reputation:" + strings.ToLower(address)
}

// Score 优先从缓存读取评分，未命中时调用内层评分器并回填缓存。
func (c *CachedScorer) Score(ctx context.Context, address string) (*Score, error) {
	key := cacheKey(address)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var cached Score
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &cached, nil
		}
		// 缓存内容损坏时删除后重新拉取
		if delErr := c.rdb.Del(ctx, key).Err(); delErr != nil {
			logger.L().Warn("清理损坏的评分缓存失败", "key", key, "error", delErr)
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.L().Warn("读取评分缓存失败, 改为直接查询评分服务", "key", key, "error", err)
	}

	score, err := c.inner.Score(ctx, address)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(score)
	if err != nil {
		return score, nil
	}
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		logger.L().Warn("写入评分缓存失败", "key", key, "error", err)
	}
	return score, nil
}

// Close 关闭底层 Redis 连接。
func (c *CachedScorer) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("关闭 Redis 连接失败: %w", err)
	}
	return nil
}

var _ Scorer = (*CachedScorer)(nil)
