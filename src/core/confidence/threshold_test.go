package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholdConfig().Validate())

	bad := DefaultThresholdConfig()
	bad.Min = 0.9
	bad.Max = 0.3
	assert.Error(t, bad.Validate())

	outOfRange := DefaultThresholdConfig()
	outOfRange.Base = 0.95
	assert.Error(t, outOfRange.Validate())

	zeroWindow := DefaultThresholdConfig()
	zeroWindow.HistoryWindow = 0
	assert.Error(t, zeroWindow.Validate())
}

func TestCalculate_NilInputsReturnBase(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	got := c.CalculateAdaptiveThreshold(nil, nil, nil)

	assert.InDelta(t, cfg.Base, got, 1e-9)
}

func TestCalculate_GoodAudioLowersThreshold(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	q := NewAudioQuality(30, 1.0, 0.0)
	got := c.CalculateAdaptiveThreshold(&q, nil, nil)

	// 音频调整项钳制在±0.3内
	assert.InDelta(t, cfg.Base-0.3, got, 1e-9)
	assert.GreaterOrEqual(t, got, cfg.Min)
}

func TestCalculate_BadAudioRaisesThreshold(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	q := NewAudioQuality(-20, 0.0, 1.0)
	got := c.CalculateAdaptiveThreshold(&q, nil, nil)

	assert.Greater(t, got, cfg.Base)
	assert.LessOrEqual(t, got, cfg.Max)
}

func TestCalculate_ExcitedEmotionLowersThreshold(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	e := NewEmotionalFeatures("excited", 0.9)
	got := c.CalculateAdaptiveThreshold(nil, &e, nil)

	assert.Less(t, got, cfg.Base)
}

func TestCalculate_AlwaysWithinBounds(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	// 全部信号推向同一方向也不能越界
	q := NewAudioQuality(-20, 0.0, 1.0)
	e := NewEmotionalFeatures("calm", 0.0)
	b := Breakdown{}
	for i := 0; i < cfg.HistoryWindow; i++ {
		c.AddPerformanceFeedback(PerformanceSample{FalsePositiveRate: 1.0})
	}

	got := c.CalculateAdaptiveThreshold(&q, &e, &b)

	assert.GreaterOrEqual(t, got, cfg.Min)
	assert.LessOrEqual(t, got, cfg.Max)
}

func TestCalculate_HistoryNeedsMinSamples(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	// 样本不足，极端反馈也不生效
	for i := 0; i < cfg.HistoryMinSamples-1; i++ {
		c.AddPerformanceFeedback(PerformanceSample{FalsePositiveRate: 1.0})
	}
	got := c.CalculateAdaptiveThreshold(nil, nil, nil)
	assert.InDelta(t, cfg.Base, got, 1e-9)

	// 达到最少样本数后，高误报率推高阈值
	c.AddPerformanceFeedback(PerformanceSample{FalsePositiveRate: 1.0})
	got = c.CalculateAdaptiveThreshold(nil, nil, nil)
	assert.Greater(t, got, cfg.Base)
}

func TestCalculate_HistoryAdjustmentClamped(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	for i := 0; i < cfg.HistoryWindow; i++ {
		c.AddPerformanceFeedback(PerformanceSample{FalsePositiveRate: 1.0, F1: 0.0})
	}

	got := c.CalculateAdaptiveThreshold(nil, nil, nil)

	// 历史调整项钳制在±0.2内
	assert.InDelta(t, cfg.Base+0.2, got, 1e-9)
}

func TestAddPerformanceFeedback_WindowEvicts(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	for i := 0; i < cfg.HistoryWindow+20; i++ {
		c.AddPerformanceFeedback(PerformanceSample{F1: 0.8})
	}

	assert.Equal(t, cfg.HistoryWindow, c.HistoryLen())
}

func TestSnapshot_TracksAdjustments(t *testing.T) {
	cfg := DefaultThresholdConfig()
	c := NewController(cfg)

	q := NewAudioQuality(30, 1.0, 0.0)
	c.CalculateAdaptiveThreshold(&q, nil, nil)
	bad := NewAudioQuality(-20, 0.0, 1.0)
	c.CalculateAdaptiveThreshold(&bad, nil, nil)

	snap := c.Snapshot()
	require.Equal(t, 2, snap.Adjustments)
	assert.Equal(t, 1, snap.Raised)
	assert.Equal(t, 1, snap.Lowered)
}
