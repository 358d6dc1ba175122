package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator() *Calculator {
	return NewCalculator(DefaultWeights(), testVocabulary(), 0.15)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	bad := DefaultWeights()
	bad.ASR = 0.8
	assert.Error(t, bad.Validate())

	neg := Weights{ASR: -0.1, Frequency: 0.4, Context: 0.3, Audio: 0.2, Emotion: 0.2}
	assert.Error(t, neg.Validate())
}

func TestScore_Bounded(t *testing.T) {
	c := newTestCalculator()

	cases := []struct {
		text    string
		raw     float64
		quality *AudioQuality
		emotion *EmotionalFeatures
	}{
		{"", 0, nil, nil},
		{"真的很喜欢这个口红", 1.5, nil, nil},
		{"乱七八糟", -0.3, &AudioQuality{SNRDb: 100, Clarity: 5, NoiseLevel: -2}, nil},
		{"太棒了", 0.9, nil, &EmotionalFeatures{State: "excited", Intensity: 3.0}},
	}
	for _, tc := range cases {
		b := c.Score(tc.text, tc.raw, tc.quality, tc.emotion)
		assert.GreaterOrEqual(t, b.FinalConfidence, 0.0, tc.text)
		assert.LessOrEqual(t, b.FinalConfidence, 1.0, tc.text)
	}
}

func TestScore_MissingInputsAreNeutral(t *testing.T) {
	c := NewCalculator(DefaultWeights(), nil, 0.15)

	b := c.Score("随便说点什么", 0.6, nil, nil)

	assert.Equal(t, 0.5, b.FrequencyScore)
	assert.Equal(t, 0.5, b.ContextScore)
	assert.Equal(t, 0.5, b.AudioScore)
	assert.Equal(t, 0.0, b.EmotionBoost)
}

func TestScore_RawConfidenceMonotonic(t *testing.T) {
	high := newTestCalculator().Score("喜欢这个口红", 0.9, nil, nil)
	low := newTestCalculator().Score("喜欢这个口红", 0.4, nil, nil)

	assert.Greater(t, high.FinalConfidence, low.FinalConfidence)
}

func TestScore_VocabHitsRaiseConfidence(t *testing.T) {
	inVocab := newTestCalculator().Score("真的很喜欢这个美丽的口红", 0.6, nil, nil)
	outVocab := newTestCalculator().Score("这个稀奇古怪的东西", 0.6, nil, nil)

	assert.Greater(t, inVocab.FrequencyScore, outVocab.FrequencyScore)
	assert.Greater(t, inVocab.FinalConfidence, outVocab.FinalConfidence)
}

func TestScore_ContextCoherence(t *testing.T) {
	c := newTestCalculator()

	first := c.Score("真的很喜欢这个口红", 0.6, nil, nil)
	second := c.Score("真的很喜欢这个口红", 0.6, nil, nil)

	// 首次评分没有上下文，重复出现的令牌全部命中窗口
	assert.Equal(t, 0.5, first.ContextScore)
	assert.Equal(t, 1.0, second.ContextScore)
	assert.Greater(t, second.FinalConfidence, first.FinalConfidence)
}

func TestScore_ContextWindowEvicts(t *testing.T) {
	c := newTestCalculator()

	for i := 0; i < 30; i++ {
		c.Score("乱七八糟的填充文本拿来挤占窗口", 0.5, nil, nil)
	}

	require.LessOrEqual(t, len(c.contextTokens), maxContextTokens)
	assert.Equal(t, len(c.contextTokens), func() int {
		n := 0
		for _, cnt := range c.contextSet {
			n += cnt
		}
		return n
	}())
}

func TestScore_EmotionBoostCapped(t *testing.T) {
	c := newTestCalculator()

	calm := c.Score("好的", 0.6, nil, &EmotionalFeatures{State: "calm", Intensity: 0.1})
	assert.LessOrEqual(t, calm.EmotionBoost, 0.15)

	excited := newTestCalculator().Score("好的", 0.6, nil, &EmotionalFeatures{State: "excited", Intensity: 1.0})
	assert.LessOrEqual(t, excited.EmotionBoost, 0.15)
	assert.Greater(t, excited.EmotionBoost, calm.EmotionBoost)
	assert.LessOrEqual(t, excited.FinalConfidence, 1.0)
}

func TestReset_ClearsContext(t *testing.T) {
	c := newTestCalculator()
	c.Score("真的很喜欢这个口红", 0.6, nil, nil)

	c.Reset()

	b := c.Score("真的很喜欢这个口红", 0.6, nil, nil)
	assert.Equal(t, 0.5, b.ContextScore)
}

func TestAudioQuality_Composite(t *testing.T) {
	perfect := NewAudioQuality(30, 1.0, 0.0)
	awful := NewAudioQuality(-20, 0.0, 1.0)

	assert.InDelta(t, 1.0, perfect.Composite(), 1e-9)
	assert.InDelta(t, 0.0, awful.Composite(), 1e-9)
	assert.Greater(t, perfect.Composite(), awful.Composite())
}
