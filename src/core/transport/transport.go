package transport

import (
	"context"

	"zhibo-copilot-go/src/core/pipeline"
)

// SessionFactory 按会话ID创建决策流水线，由引导层注入
type SessionFactory func(sessionID string) (*pipeline.Session, error)

// Transport 音频接入传输层接口
type Transport interface {
	Start(ctx context.Context) error
	Stop() error
	GetType() string
	SetSessionFactory(factory SessionFactory)
}
