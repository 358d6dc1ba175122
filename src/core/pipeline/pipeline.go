package pipeline

import (
	"context"
	"time"

	"zhibo-copilot-go/src/core/confidence"
	"zhibo-copilot-go/src/core/diarizer"
	"zhibo-copilot-go/src/core/dsp"
	"zhibo-copilot-go/src/core/providers/asr"
	"zhibo-copilot-go/src/core/textproc"
	"zhibo-copilot-go/src/core/utils"
)

// ASRSource 识别提供者来源，通常是资源池
type ASRSource interface {
	Acquire(ctx context.Context) (asr.Provider, error)
	Release(provider asr.Provider)
}

// Config 会话流水线配置
type Config struct {
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// 分段参数：静音持续指定时长后闭合当前语音段
	SilenceCloseMs int     `yaml:"silence_close_ms" json:"silence_close_ms"` // 闭合段的静音时长
	MinSegmentSec  float64 `yaml:"min_segment_sec"  json:"min_segment_sec"`  // 送识别的最短语音段
	MaxSegmentSec  float64 `yaml:"max_segment_sec"  json:"max_segment_sec"`  // 强制闭合的最长语音段
	FrameSilence   float64 `yaml:"frame_silence"    json:"frame_silence"`    // 帧级静音能量阈值

	QueueSize    int            `yaml:"queue_size"    json:"queue_size"`    // 识别队列长度
	TickInterval utils.Duration `yaml:"tick_interval" json:"tick_interval"` // 断句超时检查周期

	Gate      dsp.GateConfig             `yaml:"gate"      json:"gate"`
	Diarizer  diarizer.Config            `yaml:"diarizer"  json:"diarizer"`
	Weights   confidence.Weights         `yaml:"weights"   json:"weights"`
	Threshold confidence.ThresholdConfig `yaml:"threshold" json:"threshold"`
	Guard     textproc.GuardConfig       `yaml:"guard"     json:"guard"`
	Assembler textproc.AssemblerConfig   `yaml:"assembler" json:"assembler"`

	EmotionBoostCap float64 `yaml:"emotion_boost_cap" json:"emotion_boost_cap"`
}

// DefaultConfig 返回流水线默认配置
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		SilenceCloseMs:  400,
		MinSegmentSec:   0.3,
		MaxSegmentSec:   5.0,
		FrameSilence:    0.004,
		QueueSize:       16,
		TickInterval:    utils.Duration(500 * time.Millisecond),
		Gate:            dsp.DefaultGateConfig(),
		Diarizer:        diarizer.DefaultConfig(),
		Weights:         confidence.DefaultWeights(),
		Threshold:       confidence.DefaultThresholdConfig(),
		Guard:           textproc.DefaultGuardConfig(),
		Assembler:       textproc.DefaultAssemblerConfig(),
		EmotionBoostCap: 0.15,
	}
}

// Validate 校验配置，启动期失败好过运行期踩坑
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	return c.Threshold.Validate()
}
