package confidence

import (
	"zhibo-copilot-go/src/core/utils"
)

// AudioQuality 上游音频质量评估。构造时全部字段钳制到定义域，
// 下游只读，绝不允许越界值流入阈值控制。
type AudioQuality struct {
	SNRDb      float64 `json:"snr_db"`      // 信噪比（dB），定义域[-20,60]
	Clarity    float64 `json:"clarity"`     // 清晰度 [0,1]
	NoiseLevel float64 `json:"noise_level"` // 噪声水平 [0,1]
}

// NewAudioQuality 构造音频质量对象并钳制各字段
func NewAudioQuality(snrDb, clarity, noiseLevel float64) AudioQuality {
	return AudioQuality{
		SNRDb:      utils.Clamp(snrDb, -20, 60),
		Clarity:    utils.Clamp(clarity, 0, 1),
		NoiseLevel: utils.Clamp(noiseLevel, 0, 1),
	}
}

// Composite 质量综合评分 [0,1]，清晰度为主、噪声与信噪比为辅
func (q AudioQuality) Composite() float64 {
	snrNorm := utils.Clamp((q.SNRDb+10)/40, 0, 1)
	return utils.Clamp(0.5*q.Clarity+0.3*(1-q.NoiseLevel)+0.2*snrNorm, 0, 1)
}

// EmotionalFeatures 上游情绪分析结果，只读消费
type EmotionalFeatures struct {
	State     string  `json:"state"`     // neutral/calm/happy/excited 等
	Intensity float64 `json:"intensity"` // 情绪强度 [0,1]
}

// NewEmotionalFeatures 构造情绪特征并钳制强度
func NewEmotionalFeatures(state string, intensity float64) EmotionalFeatures {
	return EmotionalFeatures{
		State:     state,
		Intensity: utils.Clamp(intensity, 0, 1),
	}
}

// excitedStates 视为高唤起的情绪状态
var excitedStates = map[string]bool{
	"excited":   true,
	"happy":     true,
	"laughing":  true,
	"surprised": true,
	"angry":     true,
}

// IsExcited 是否为高唤起状态
func (e EmotionalFeatures) IsExcited() bool {
	return excitedStates[e.State]
}

// Breakdown 多维置信度分解。各子分均在[0,1]，
// EmotionBoost为最终加成贡献，上限由配置钳制。
type Breakdown struct {
	ASRConfidence   float64 `json:"asr_confidence"`
	FrequencyScore  float64 `json:"frequency_score"`
	ContextScore    float64 `json:"context_score"`
	AudioScore      float64 `json:"audio_score"`
	EmotionBoost    float64 `json:"emotion_boost"`
	FinalConfidence float64 `json:"final_confidence"`
}

// SubScoreMean 除情绪加成外各子分的均值，阈值控制使用
func (b Breakdown) SubScoreMean() float64 {
	return (b.ASRConfidence + b.FrequencyScore + b.ContextScore + b.AudioScore) / 4
}

// PerformanceSample 一次性能反馈样本，滚动窗口中用于历史调整项
type PerformanceSample struct {
	Accuracy          float64 `json:"accuracy"`
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	F1                float64 `json:"f1"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate"`
	SampleCount       int     `json:"sample_count"`
}

// Clamped 返回各比率钳制到[0,1]后的副本
func (s PerformanceSample) Clamped() PerformanceSample {
	return PerformanceSample{
		Accuracy:          utils.Clamp(s.Accuracy, 0, 1),
		Precision:         utils.Clamp(s.Precision, 0, 1),
		Recall:            utils.Clamp(s.Recall, 0, 1),
		F1:                utils.Clamp(s.F1, 0, 1),
		FalsePositiveRate: utils.Clamp(s.FalsePositiveRate, 0, 1),
		FalseNegativeRate: utils.Clamp(s.FalseNegativeRate, 0, 1),
		SampleCount:       s.SampleCount,
	}
}
