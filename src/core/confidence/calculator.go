package confidence

import (
	"fmt"

	"zhibo-copilot-go/src/core/utils"
)

const (
	// 上下文连贯窗口的令牌数上限
	maxContextTokens = 50

	neutralScore = 0.5
)

// Weights 五个子分的加权系数，配置加载时校验和为1.0
type Weights struct {
	ASR       float64 `yaml:"asr"       json:"asr"`
	Frequency float64 `yaml:"frequency" json:"frequency"`
	Context   float64 `yaml:"context"   json:"context"`
	Audio     float64 `yaml:"audio"     json:"audio"`
	Emotion   float64 `yaml:"emotion"   json:"emotion"`
}

// Validate 校验权重合法性，配置错误在启动期就失败
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"asr": w.ASR, "frequency": w.Frequency, "context": w.Context,
		"audio": w.Audio, "emotion": w.Emotion,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("置信度权重 %s=%v 超出[0,1]", name, v)
		}
	}
	sum := w.ASR + w.Frequency + w.Context + w.Audio + w.Emotion
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("置信度权重之和必须为1.0，当前为%v", sum)
	}
	return nil
}

// DefaultWeights 返回默认权重
func DefaultWeights() Weights {
	return Weights{
		ASR:       0.40,
		Frequency: 0.20,
		Context:   0.15,
		Audio:     0.15,
		Emotion:   0.10,
	}
}

// Calculator 多维置信度计算器。上下文窗口是会话级状态，
// 一个会话一个实例；词表为共享只读对象。
type Calculator struct {
	weights         Weights
	vocab           *Vocabulary
	emotionBoostCap float64

	contextTokens []string
	contextSet    map[string]int // token -> 窗口中出现次数
}

// NewCalculator 创建置信度计算器。权重应已在配置加载时校验。
func NewCalculator(weights Weights, vocab *Vocabulary, emotionBoostCap float64) *Calculator {
	if emotionBoostCap <= 0 || emotionBoostCap > 0.15 {
		emotionBoostCap = 0.15
	}
	return &Calculator{
		weights:         weights,
		vocab:           vocab,
		emotionBoostCap: emotionBoostCap,
		contextSet:      make(map[string]int),
	}
}

// Score 计算候选转写文本的置信度分解。
// 缺失的可选输入按中性分处理，任何输入都不会导致错误。
func (c *Calculator) Score(text string, rawConfidence float64, quality *AudioQuality, emotion *EmotionalFeatures) Breakdown {
	b := Breakdown{
		ASRConfidence:  utils.Clamp(rawConfidence, 0, 1),
		FrequencyScore: neutralScore,
		ContextScore:   neutralScore,
		AudioScore:     neutralScore,
	}

	var tokens []string
	if c.vocab != nil {
		b.FrequencyScore = c.vocab.Score(text)
		tokens, _ = c.vocab.Tokenize(text)
	}

	b.ContextScore = c.coherence(tokens)
	if quality != nil {
		b.AudioScore = quality.Composite()
	}

	// 情绪加成不论强度多高都不超过上限
	if emotion != nil {
		boost := emotion.Intensity * c.emotionBoostCap
		if emotion.IsExcited() {
			boost = c.emotionBoostCap * utils.Clamp(emotion.Intensity+0.3, 0, 1)
		}
		b.EmotionBoost = utils.Clamp(boost, 0, c.emotionBoostCap)
	}

	weighted := c.weights.ASR*b.ASRConfidence +
		c.weights.Frequency*b.FrequencyScore +
		c.weights.Context*b.ContextScore +
		c.weights.Audio*b.AudioScore
	emotionContribution := utils.Clamp(c.weights.Emotion*(b.EmotionBoost/c.emotionBoostCap), 0, c.emotionBoostCap)
	b.FinalConfidence = utils.Clamp(weighted+emotionContribution, 0, 1)

	// 评分完成后才把当前令牌并入窗口，同一文本重复评分结果可复现
	c.pushContext(tokens)
	return b
}

// coherence 当前令牌与最近识别令牌窗口的重叠率
func (c *Calculator) coherence(tokens []string) float64 {
	if len(tokens) == 0 || len(c.contextTokens) == 0 {
		return neutralScore
	}
	overlap := 0
	for _, tok := range tokens {
		if c.contextSet[tok] > 0 {
			overlap++
		}
	}
	return utils.Clamp(float64(overlap)/float64(len(tokens)), 0, 1)
}

// pushContext 将令牌追加入窗口，超限时最旧先出
func (c *Calculator) pushContext(tokens []string) {
	for _, tok := range tokens {
		c.contextTokens = append(c.contextTokens, tok)
		c.contextSet[tok]++
	}
	for len(c.contextTokens) > maxContextTokens {
		old := c.contextTokens[0]
		c.contextTokens = c.contextTokens[1:]
		if c.contextSet[old] <= 1 {
			delete(c.contextSet, old)
		} else {
			c.contextSet[old]--
		}
	}
}

// Reset 清空上下文窗口
func (c *Calculator) Reset() {
	c.contextTokens = nil
	c.contextSet = make(map[string]int)
}
