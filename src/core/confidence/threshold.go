package confidence

import (
	"fmt"

	"zhibo-copilot-go/src/core/utils"
)

// ThresholdConfig 自适应阈值控制器配置
type ThresholdConfig struct {
	Base float64 `yaml:"base" json:"base"` // 基准阈值
	Min  float64 `yaml:"min"  json:"min"`  // 阈值下界
	Max  float64 `yaml:"max"  json:"max"`  // 阈值上界

	AudioWeight     float64 `yaml:"audio_weight"     json:"audio_weight"`     // 音频质量调整权重
	EmotionWeight   float64 `yaml:"emotion_weight"   json:"emotion_weight"`   // 情绪强度调整权重
	BreakdownWeight float64 `yaml:"breakdown_weight" json:"breakdown_weight"` // 置信分解调整权重
	HistoryWeight   float64 `yaml:"history_weight"   json:"history_weight"`   // 历史表现调整权重

	HistoryWindow     int `yaml:"history_window"      json:"history_window"`      // 滚动窗口容量
	HistoryMinSamples int `yaml:"history_min_samples" json:"history_min_samples"` // 启用历史调整的最少样本数
}

// 各调整项的独立界限
const (
	maxAudioAdjust   = 0.3
	maxHistoryAdjust = 0.2
)

// DefaultThresholdConfig 返回默认阈值配置
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Base:              0.6,
		Min:               0.3,
		Max:               0.9,
		AudioWeight:       0.4,
		EmotionWeight:     0.2,
		BreakdownWeight:   0.25,
		HistoryWeight:     0.5,
		HistoryWindow:     50,
		HistoryMinSamples: 10,
	}
}

// Validate 校验阈值区间合法性
func (c ThresholdConfig) Validate() error {
	if c.Min < 0 || c.Max > 1 || c.Min >= c.Max {
		return fmt.Errorf("阈值区间[%v,%v]非法", c.Min, c.Max)
	}
	if c.Base < c.Min || c.Base > c.Max {
		return fmt.Errorf("基准阈值%v超出区间[%v,%v]", c.Base, c.Min, c.Max)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("历史窗口容量必须为正，当前为%d", c.HistoryWindow)
	}
	return nil
}

// State 阈值控制器状态，每次计算都会变更，会话结束丢弃
type State struct {
	CurrentThreshold float64 `json:"current_threshold"`
	ConfidenceLevel  float64 `json:"confidence_level"`
	Adjustments      int     `json:"adjustments"` // 累计计算次数
	Raised           int     `json:"raised"`      // 高于基准的次数
	Lowered          int     `json:"lowered"`     // 低于基准的次数
}

// Controller 自适应阈值控制器。融合多路质量信号输出一个有界接受阈值，
// 会话级状态，不跨会话共享，非并发安全。
type Controller struct {
	config  ThresholdConfig
	state   State
	history []PerformanceSample // 滚动窗口，最旧先出
}

// NewController 创建阈值控制器，配置应已在加载时校验
func NewController(config ThresholdConfig) *Controller {
	return &Controller{
		config: config,
		state: State{
			CurrentThreshold: config.Base,
			ConfidenceLevel:  neutralScore,
		},
	}
}

// CalculateAdaptiveThreshold 计算当前接受阈值，返回值恒在[Min,Max]内。
// 所有输入可选，缺失按中性处理。
func (c *Controller) CalculateAdaptiveThreshold(quality *AudioQuality, emotion *EmotionalFeatures, breakdown *Breakdown) float64 {
	adjust := c.audioAdjustment(quality) +
		c.emotionAdjustment(emotion) +
		c.breakdownAdjustment(breakdown) +
		c.historyAdjustment()

	threshold := utils.Clamp(c.config.Base+adjust, c.config.Min, c.config.Max)

	c.state.CurrentThreshold = threshold
	c.state.Adjustments++
	switch {
	case threshold > c.config.Base:
		c.state.Raised++
	case threshold < c.config.Base:
		c.state.Lowered++
	}
	if breakdown != nil {
		c.state.ConfidenceLevel = breakdown.FinalConfidence
	}

	return threshold
}

// audioAdjustment 高清晰低噪音频降低阈值（更宽容），劣质音频提高阈值
func (c *Controller) audioAdjustment(quality *AudioQuality) float64 {
	if quality == nil {
		return 0
	}
	adj := (neutralScore - quality.Composite()) * 2 * c.config.AudioWeight
	return utils.Clamp(adj, -maxAudioAdjust, maxAudioAdjust)
}

// emotionAdjustment 高唤起状态降低阈值，平静状态小幅提高
func (c *Controller) emotionAdjustment(emotion *EmotionalFeatures) float64 {
	if emotion == nil {
		return 0
	}
	adj := (neutralScore - emotion.Intensity) * c.config.EmotionWeight
	if emotion.IsExcited() {
		adj -= 0.05
	}
	return adj
}

// breakdownAdjustment 子分普遍偏高时下调阈值
func (c *Controller) breakdownAdjustment(breakdown *Breakdown) float64 {
	if breakdown == nil {
		return 0
	}
	return (neutralScore - breakdown.SubScoreMean()) * c.config.BreakdownWeight
}

// historyAdjustment 根据滚动窗口中的历史表现微调。
// 误报偏多说明阈值过松则上调，漏报偏多则下调；样本不足时不启用。
func (c *Controller) historyAdjustment() float64 {
	if len(c.history) < c.config.HistoryMinSamples {
		return 0
	}

	var f1Sum, fpSum, fnSum float64
	for _, s := range c.history {
		f1Sum += s.F1
		fpSum += s.FalsePositiveRate
		fnSum += s.FalseNegativeRate
	}
	n := float64(len(c.history))
	f1Avg := f1Sum / n
	fpAvg := fpSum / n
	fnAvg := fnSum / n

	adj := (fpAvg-fnAvg)*0.5 + (neutralScore-f1Avg)*0.2*c.config.HistoryWeight
	return utils.Clamp(adj, -maxHistoryAdjust, maxHistoryAdjust)
}

// AddPerformanceFeedback 追加一条性能反馈样本，窗口满时最旧先出。
// 这是阈值计算之外唯一的外部状态变更入口。
func (c *Controller) AddPerformanceFeedback(sample PerformanceSample) {
	c.history = append(c.history, sample.Clamped())
	if len(c.history) > c.config.HistoryWindow {
		c.history = c.history[1:]
	}
}

// HistoryLen 当前窗口内样本数
func (c *Controller) HistoryLen() int {
	return len(c.history)
}

// Snapshot 返回状态快照
func (c *Controller) Snapshot() State {
	return c.state
}
