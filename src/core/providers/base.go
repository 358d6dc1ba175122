package providers

import (
	"context"
)

// Provider 所有提供者的基础接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// ASRResult 一段音频的识别结果
type ASRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 引擎原始置信度 [0,1]
}

// ASRProvider 语音识别提供者接口。按段批量识别，
// 段级音频由上游门控切好后整段送入。
type ASRProvider interface {
	Provider

	// Transcribe 识别一段16kHz单声道PCM16音频
	Transcribe(ctx context.Context, pcmData []byte) (*ASRResult, error)

	SetSessionID(sessionID string)
}
