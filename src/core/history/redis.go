package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client     *redis.Client
	prefix     string
	maxEntries int
	ttl        time.Duration
}

// NewRedis 创建redis历史存储，多实例部署时各实例共享回放数据
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("缺少redis配置")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "copilot:transcript:"
	}
	ttl := cfg.TTL.Std()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &redisStore{
		client:     client,
		prefix:     prefix,
		maxEntries: cfg.MaxEntries,
		ttl:        ttl,
	}, nil
}

func (s *redisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *redisStore) Append(ctx context.Context, entry Entry) error {
	data, err := sonic.Marshal(entry)
	if err != nil {
		return err
	}

	key := s.key(entry.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.maxEntries), -1)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}

	raw, err := s.client.LRange(ctx, s.key(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := sonic.UnmarshalString(item, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *redisStore) Sessions(ctx context.Context) ([]string, error) {
	var cursor uint64
	ids := make([]string, 0)
	pattern := s.prefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return ids, nil
}

func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
