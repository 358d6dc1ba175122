package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zhibo-copilot-go/src/core/providers/asr"
	"zhibo-copilot-go/src/core/utils"
)

/*
* ASR提供者资源池
* 识别请求按段到达，提供者实例在会话间复用，避免每段重建客户端
 */

// Factory ASR提供者工厂函数，资源池按需调用
type Factory func() (asr.Provider, error)

// Config 资源池配置
type Config struct {
	Size           int            `yaml:"size"            json:"size"`            // 池内实例数
	AcquireTimeout utils.Duration `yaml:"acquire_timeout" json:"acquire_timeout"` // 获取超时
}

// DefaultConfig 返回资源池默认配置
func DefaultConfig() Config {
	return Config{
		Size:           4,
		AcquireTimeout: utils.Duration(10 * time.Second),
	}
}

// ASRPool ASR提供者资源池
type ASRPool struct {
	name      string
	factory   Factory
	resources chan asr.Provider
	config    Config
	logger    *utils.Logger

	mu       sync.Mutex
	closed   bool
	acquired int
}

// NewASRPool 创建资源池并预建全部实例，任一实例初始化失败则整体失败
func NewASRPool(name string, factory Factory, config Config, logger *utils.Logger) (*ASRPool, error) {
	if config.Size <= 0 {
		config.Size = DefaultConfig().Size
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultConfig().AcquireTimeout
	}

	p := &ASRPool{
		name:      name,
		factory:   factory,
		resources: make(chan asr.Provider, config.Size),
		config:    config,
		logger:    logger,
	}

	for i := 0; i < config.Size; i++ {
		provider, err := factory()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("预建资源池 %s 失败: %w", name, err)
		}
		if err := provider.Initialize(); err != nil {
			p.Close()
			return nil, fmt.Errorf("初始化资源池 %s 实例失败: %w", name, err)
		}
		p.resources <- provider
	}

	if logger != nil {
		logger.Info(fmt.Sprintf("资源池 %s 就绪，实例数 %d", name, config.Size))
	}
	return p, nil
}

// Acquire 获取一个提供者实例，池空时最多等待配置的超时
func (p *ASRPool) Acquire(ctx context.Context) (asr.Provider, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("资源池 %s 已关闭", p.name)
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.config.AcquireTimeout.Std())
	defer timer.Stop()

	select {
	case provider := <-p.resources:
		p.mu.Lock()
		p.acquired++
		p.mu.Unlock()
		return provider, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("获取资源池 %s 实例超时", p.name)
	}
}

// Release 归还实例。池已关闭时直接清理。
func (p *ASRPool) Release(provider asr.Provider) {
	if provider == nil {
		return
	}

	p.mu.Lock()
	closed := p.closed
	if p.acquired > 0 {
		p.acquired--
	}
	p.mu.Unlock()

	if closed {
		_ = provider.Cleanup()
		return
	}

	select {
	case p.resources <- provider:
	default:
		// 池满说明有重复归还，直接清理
		_ = provider.Cleanup()
	}
}

// Stats 返回池状态
func (p *ASRPool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"name":     p.name,
		"size":     p.config.Size,
		"idle":     len(p.resources),
		"acquired": p.acquired,
		"closed":   p.closed,
	}
}

// Close 关闭资源池并清理池内全部实例
func (p *ASRPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case provider := <-p.resources:
			_ = provider.Cleanup()
		default:
			return
		}
	}
}
