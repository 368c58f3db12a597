package aegmiddleware

import (
	"UpdateAegis/internal/core/domain"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WindowStore 是滑动窗口计数的存储。Hit 记录一次请求并返回是否仍在预算内。
// 同一 key 的并发调用必须原子，不同 key 之间无序。
type WindowStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (domain.RateLimitDecision, error)
}

// ============================================================================
//  进程内实现
// ============================================================================

type windowEntry struct {
	hits     []time.Time // 升序
	window   time.Duration
	lastSeen time.Time
}

// MemoryWindowStore 以 map 保存每个 key 的请求时间戳，后台定期清理过期条目
type MemoryWindowStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryWindowStore 创建内存存储。cleanupInterval <= 0 时不启动清理协程。
func NewMemoryWindowStore(cleanupInterval time.Duration) *MemoryWindowStore {
	s := &MemoryWindowStore{
		entries: make(map[string]*windowEntry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanupDaemon(cleanupInterval)
	}
	return s
}

func (s *MemoryWindowStore) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &windowEntry{}
		s.entries[key] = entry
	}
	entry.window = window
	entry.lastSeen = now
	entry.hits = prune(entry.hits, now.Add(-window))

	if len(entry.hits) >= limit {
		return domain.RateLimitDecision{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   entry.hits[0].Add(window),
		}, nil
	}
	entry.hits = append(entry.hits, now)
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(entry.hits),
		ResetAt:   entry.hits[0].Add(window),
	}, nil
}

// prune 丢弃不晚于 cutoff 的时间戳
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}

// Sweep 删除窗口内已无请求的条目，返回删除数量
func (s *MemoryWindowStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if now.Sub(entry.lastSeen) > entry.window {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len 返回当前跟踪的 key 数量
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryWindowStore) cleanupDaemon(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				slog.Debug("限流器清理过期条目", "removed", n)
			}
		}
	}
}

// Close 停止清理协程
func (s *MemoryWindowStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// ============================================================================
//  Redis 实现 (多实例共享)
// ============================================================================

// 有序集合保存窗口内每次请求，score 为毫秒时间戳
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, window)
local reset = now + window
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisWindowStore 把窗口保存在 Redis 中，过期由 PEXPIRE 负责
type RedisWindowStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisWindowStore 用已有客户端构造存储
func NewRedisWindowStore(client redis.UniversalClient, keyPrefix string) *RedisWindowStore {
	if keyPrefix == "" {
		keyPrefix = "updateaegis:rl:"
	}
	return &RedisWindowStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisWindowStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1000
	}
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, s.client, []string{s.keyPrefix + key}, nowMs, windowMs, limit, member).Result()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis 限流脚本执行失败: %w", err)
	}
	values, ok := res.([]any)
	if !ok || len(values) < 3 {
		return domain.RateLimitDecision{}, errors.New("redis 限流脚本返回格式异常")
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	resetMs, _ := values[2].(int64)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(resetMs),
	}, nil
}
