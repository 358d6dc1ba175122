package textproc

import (
	"strings"

	"zhibo-copilot-go/src/core/utils"
)

// 拉丁标点到中文标点的映射，识别引擎偶尔混用两套标点
var punctMap = map[rune]rune{
	',': '，',
	'.': '。',
	'?': '？',
	'!': '！',
	';': '；',
	':': '：',
}

// terminalMarks 句子终止标点
var terminalMarks = map[rune]bool{
	'。': true,
	'！': true,
	'？': true,
	'…': true,
}

// IsTerminal 判断是否为终止标点
func IsTerminal(r rune) bool {
	return terminalMarks[r]
}

// ContainsTerminal 文本中是否含终止标点
func ContainsTerminal(text string) bool {
	for _, r := range text {
		if IsTerminal(r) {
			return true
		}
	}
	return false
}

// Clean 清洗一段识别文本：去表情符号、去首尾空白、
// 统一标点到中文习惯并折叠重复的终止标点。
func Clean(text string) string {
	text = utils.RemoveAllEmoji(text)
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	var lastTerminal bool
	for _, r := range text {
		if mapped, ok := punctMap[r]; ok {
			r = mapped
		}
		if IsTerminal(r) {
			// 折叠连续终止标点：。。。->。
			if lastTerminal {
				continue
			}
			lastTerminal = true
		} else {
			lastTerminal = false
		}
		// 段内空白一律丢弃，中文文本无词间空格
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isPunctOnly 文本是否只含标点
func isPunctOnly(text string) bool {
	if text == "" {
		return true
	}
	for _, r := range text {
		if !IsTerminal(r) && r != '，' && r != '；' && r != '：' && r != '、' {
			return false
		}
	}
	return true
}

// GuardConfig 幻听过滤配置。识别引擎会在静音或噪声上臆造短词，
// 能量过低且文本过短时直接丢弃。
type GuardConfig struct {
	MinRMS              float64  `yaml:"min_rms"               json:"min_rms"`               // 判定静音的能量下限
	ShortTextRunes      int      `yaml:"short_text_runes"      json:"short_text_runes"`      // 视为过短的rune数上限
	SingleCharAllowList []string `yaml:"single_char_allowlist" json:"single_char_allowlist"` // 允许的单字结果
	MinSingleCharConf   float64  `yaml:"min_single_char_conf"  json:"min_single_char_conf"`  // 单字结果的置信度下限
}

// DefaultGuardConfig 返回幻听过滤默认配置
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MinRMS:              0.008,
		ShortTextRunes:      2,
		SingleCharAllowList: []string{"嗯", "啊", "哦", "好", "对", "是", "行"},
		MinSingleCharConf:   0.7,
	}
}

// Guard 幻听过滤器，无状态可共享
type Guard struct {
	config   GuardConfig
	allowSet map[string]bool
}

// NewGuard 创建幻听过滤器
func NewGuard(config GuardConfig) *Guard {
	allow := make(map[string]bool, len(config.SingleCharAllowList))
	for _, w := range config.SingleCharAllowList {
		allow[w] = true
	}
	return &Guard{config: config, allowSet: allow}
}

// ShouldDrop 判断候选文本是否应当丢弃，返回判定与原因
func (g *Guard) ShouldDrop(text string, rms, confidence float64) (bool, string) {
	if text == "" {
		return true, "empty"
	}

	runes := []rune(text)

	// 能量过低且文本过短或纯标点：典型的静音臆造
	if rms < g.config.MinRMS {
		if len(runes) <= g.config.ShortTextRunes || isPunctOnly(text) {
			return true, "low_energy_short"
		}
	}

	// 单字结果只有在允许列表内、或置信度足够时保留
	if len(runes) == 1 {
		if !g.allowSet[text] && confidence < g.config.MinSingleCharConf {
			return true, "single_char_low_conf"
		}
	}

	return false, ""
}
