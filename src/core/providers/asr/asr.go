package asr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"zhibo-copilot-go/src/core/providers"
	"zhibo-copilot-go/src/core/utils"
)

// Config ASR配置结构
type Config struct {
	Name string `yaml:"name"` // ASR提供者名称
	Type string
	Data map[string]interface{}
}

// Provider ASR提供者接口
type Provider interface {
	providers.ASRProvider
}

// BaseProvider ASR基础实现
type BaseProvider struct {
	config    *Config
	sessionID string
}

// NewBaseProvider 创建ASR基础提供者
func NewBaseProvider(config *Config) *BaseProvider {
	return &BaseProvider{config: config}
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// SetSessionID 设置会话ID
func (p *BaseProvider) SetSessionID(sessionID string) {
	p.sessionID = sessionID
}

// GetSessionID 获取会话ID
func (p *BaseProvider) GetSessionID() string {
	return p.sessionID
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	return nil
}

// Factory ASR工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (Provider, error)

var factories = make(map[string]Factory)

// Register 注册ASR提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 创建ASR提供者实例
func Create(name string, config *Config, logger *utils.Logger) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("未知的ASR提供者: %s", name)
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建ASR提供者失败: %v", err)
	}

	return provider, nil
}

// EncodeWAV 将PCM16字节流包装成单声道WAV，识别接口要求完整文件格式
func EncodeWAV(pcmData []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(pcmData))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // 单声道
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // 字节率
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // 块对齐
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // 位深

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcmData)

	return buf.Bytes()
}
