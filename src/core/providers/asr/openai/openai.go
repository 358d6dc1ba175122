package openai

import (
	"bytes"
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"zhibo-copilot-go/src/core/providers"
	"zhibo-copilot-go/src/core/providers/asr"
	"zhibo-copilot-go/src/core/utils"
)

// Provider OpenAI兼容的转写提供者，走audio/transcriptions接口，
// 任何暴露该接口的网关（含本地whisper服务）都可以用这个提供者接入
type Provider struct {
	*asr.BaseProvider
	client     *openai.Client
	model      string
	language   string
	sampleRate int
	logger     *utils.Logger
}

// 注册提供者
func init() {
	asr.Register("openai", NewProvider)
}

// NewProvider 创建OpenAI转写提供者
func NewProvider(config *asr.Config, logger *utils.Logger) (asr.Provider, error) {
	provider := &Provider{
		BaseProvider: asr.NewBaseProvider(config),
		model:        "whisper-1",
		language:     "zh",
		sampleRate:   16000,
		logger:       logger,
	}

	if v, ok := config.Data["model"].(string); ok && v != "" {
		provider.model = v
	}
	if v, ok := config.Data["language"].(string); ok && v != "" {
		provider.language = v
	}
	if v, ok := config.Data["sample_rate"].(int); ok && v > 0 {
		provider.sampleRate = v
	}

	return provider, nil
}

// Initialize 初始化客户端
func (p *Provider) Initialize() error {
	apiKey, _ := p.Config().Data["api_key"].(string)
	if apiKey == "" {
		return fmt.Errorf("ASR提供者缺少api_key配置")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL, ok := p.Config().Data["base_url"].(string); ok && baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Transcribe 识别一段PCM16音频
func (p *Provider) Transcribe(ctx context.Context, pcmData []byte) (*providers.ASRResult, error) {
	if p.client == nil {
		return nil, fmt.Errorf("ASR提供者未初始化")
	}
	if len(pcmData) == 0 {
		return &providers.ASRResult{}, nil
	}

	wav := asr.EncodeWAV(pcmData, p.sampleRate)
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: "segment.wav",
		Reader:   bytes.NewReader(wav),
		Language: p.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("转写请求失败: %v", err)
	}

	return &providers.ASRResult{
		Text:       resp.Text,
		Confidence: confidenceFromSegments(resp),
	}, nil
}

// confidenceFromSegments 从分段对数概率估算引擎置信度，
// 没有分段信息时给保守的默认值
func confidenceFromSegments(resp openai.AudioResponse) float64 {
	if len(resp.Segments) == 0 {
		return 0.8
	}
	var sum float64
	for _, seg := range resp.Segments {
		sum += math.Exp(float64(seg.AvgLogprob))
	}
	return utils.Clamp(sum/float64(len(resp.Segments)), 0, 1)
}
