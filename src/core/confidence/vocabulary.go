package confidence

import (
	"unicode"

	"zhibo-copilot-go/src/core/utils"
)

// Vocabulary 领域词表。进程级共享，初始化后只读，可并发访问。
// 词表覆盖情绪词、商品词和口语词，未登录词得低分但不为零。
type Vocabulary struct {
	words       map[string]bool // 全部词条
	emotional   map[string]bool // 情绪词，额外加分
	maxWordLen  int             // 最长词条的rune数
	unknownBase float64         // 未登录词基础分
}

// NewVocabulary 从分类词列表构建词表
func NewVocabulary(emotional, product, slang []string) *Vocabulary {
	v := &Vocabulary{
		words:       make(map[string]bool),
		emotional:   make(map[string]bool),
		unknownBase: 0.3,
	}
	for _, w := range emotional {
		v.add(w)
		v.emotional[w] = true
	}
	for _, w := range product {
		v.add(w)
	}
	for _, w := range slang {
		v.add(w)
	}
	return v
}

func (v *Vocabulary) add(word string) {
	if word == "" {
		return
	}
	v.words[word] = true
	if n := len([]rune(word)); n > v.maxWordLen {
		v.maxWordLen = n
	}
}

// Size 词表规模
func (v *Vocabulary) Size() int {
	return len(v.words)
}

// Tokenize 正向最大匹配切分。命中词表的片段作为一个词，
// 未命中的汉字逐字切分，标点和空白丢弃。
func (v *Vocabulary) Tokenize(text string) (tokens []string, matched []bool) {
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			i++
			continue
		}

		// 从最长词条长度开始尝试匹配
		found := false
		maxLen := v.maxWordLen
		if maxLen > len(runes)-i {
			maxLen = len(runes) - i
		}
		for l := maxLen; l >= 2; l-- {
			cand := string(runes[i : i+l])
			if v.words[cand] {
				tokens = append(tokens, cand)
				matched = append(matched, true)
				i += l
				found = true
				break
			}
		}
		if !found {
			single := string(r)
			tokens = append(tokens, single)
			matched = append(matched, v.words[single])
			i++
		}
	}
	return tokens, matched
}

// Score 对一段识别文本计算词频分 [0,1]。
// 覆盖率越高分越高，情绪词命中再小幅加分；空文本返回基础分。
func (v *Vocabulary) Score(text string) float64 {
	tokens, matched := v.Tokenize(text)
	if len(tokens) == 0 {
		return v.unknownBase
	}

	var coveredRunes, totalRunes int
	var emotionalHits int
	for i, tok := range tokens {
		n := len([]rune(tok))
		totalRunes += n
		if matched[i] {
			coveredRunes += n
			if v.emotional[tok] {
				emotionalHits++
			}
		}
	}

	coverage := float64(coveredRunes) / float64(totalRunes)
	emoBonus := 0.0
	if emotionalHits > 0 {
		emoBonus = 0.1
	}
	return utils.Clamp(v.unknownBase+0.6*coverage+emoBonus, 0, 1)
}
