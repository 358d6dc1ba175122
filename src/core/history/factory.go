package history

import (
	"fmt"
)

// 支持的存储驱动
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

const defaultMaxEntries = 500

// New 按配置创建转写历史存储
func New(cfg Config) (Store, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("不支持的历史存储驱动: %s", driver)
	}
}
