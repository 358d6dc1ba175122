package history

import (
	"context"

	"zhibo-copilot-go/src/core/utils"
)

// Entry 一条定稿转写记录
type Entry struct {
	SessionID    string  `json:"session_id"`
	Text         string  `json:"text"`
	Speaker      string  `json:"speaker"`
	Confidence   float64 `json:"confidence"`
	Threshold    float64 `json:"threshold"`
	Emotion      string  `json:"emotion,omitempty"`
	MultiSpeaker bool    `json:"multi_speaker"`
	Timestamp    int64   `json:"timestamp"` // 毫秒
}

// Store 转写历史存储接口，回放接口和断线重连补发都走这里
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Recent 返回会话最近的记录，时间升序，limit<=0时使用存储默认上限
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Sessions(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, sessionID string) error
	Close(ctx context.Context) error
}

// RedisConfig redis连接参数
type RedisConfig struct {
	Addr     string `yaml:"addr"     json:"addr"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db"       json:"db"`
	Prefix   string `yaml:"prefix"   json:"prefix"`
}

// Config 历史存储配置
type Config struct {
	Driver     string         `yaml:"driver"      json:"driver"`      // memory / redis
	MaxEntries int            `yaml:"max_entries" json:"max_entries"` // 每会话保留条数
	TTL        utils.Duration `yaml:"ttl"         json:"ttl"`         // 会话历史过期时间
	Redis      *RedisConfig   `yaml:"redis"       json:"redis"`
}
