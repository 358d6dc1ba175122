package textproc

import (
	"strings"
	"time"
)

// AssemblerConfig 断句组装配置
type AssemblerConfig struct {
	MaxChars          int     `yaml:"max_chars"           json:"max_chars"`           // 缓冲区字符上限
	MaxWaitSec        float64 `yaml:"max_wait_sec"        json:"max_wait_sec"`        // 最长等待秒数
	SilenceFlushCount int     `yaml:"silence_flush_count" json:"silence_flush_count"` // 连续静音触发冲刷的次数
	MinFlushChars     int     `yaml:"min_flush_chars"     json:"min_flush_chars"`     // 标点/静音冲刷的最小字符数
}

// DefaultAssemblerConfig 返回断句默认配置
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		MaxChars:          48,
		MaxWaitSec:        3.5,
		SilenceFlushCount: 2,
		MinFlushChars:     2,
	}
}

// Assembler 流式断句组装器。单会话独占一个实例，
// 缓冲区在任一完成条件触发时整体冲刷并立即回到空状态。
type Assembler struct {
	config       AssemblerConfig
	buf          strings.Builder
	bufRunes     int
	lastAppend   time.Time
	silenceCount int
}

// NewAssembler 创建断句组装器
func NewAssembler(config AssemblerConfig) *Assembler {
	return &Assembler{config: config}
}

// Feed 追加一段已清洗文本。返回完成的句子与是否冲刷。
// 冲刷条件：新片段含终止标点且缓冲不少于最小字符数，
// 或缓冲达到字符上限（防止无标点长语流无限累积）。
func (a *Assembler) Feed(text string, now time.Time) (string, bool) {
	if text == "" {
		return "", false
	}

	a.buf.WriteString(text)
	a.bufRunes += len([]rune(text))
	a.lastAppend = now
	a.silenceCount = 0

	if ContainsTerminal(text) && a.bufRunes >= a.config.MinFlushChars {
		return a.flush(), true
	}
	if a.bufRunes >= a.config.MaxChars {
		return a.flush(), true
	}
	return "", false
}

// MarkSilence 记录一次静音信号。连续静音达到配置次数且缓冲
// 有内容时强制冲刷。
func (a *Assembler) MarkSilence() (string, bool) {
	a.silenceCount++
	if a.silenceCount >= a.config.SilenceFlushCount && a.bufRunes >= a.config.MinFlushChars {
		a.silenceCount = 0
		return a.flush(), true
	}
	return "", false
}

// Tick 定时检查。距上次追加超过最长等待时间时强制冲刷，
// 这是无标点语流不会被无限缓冲的保底机制。
func (a *Assembler) Tick(now time.Time) (string, bool) {
	if a.bufRunes == 0 {
		return "", false
	}
	if now.Sub(a.lastAppend).Seconds() > a.config.MaxWaitSec {
		return a.flush(), true
	}
	return "", false
}

// Flush 无条件冲刷，会话停止时尽力输出残留内容
func (a *Assembler) Flush() (string, bool) {
	if a.bufRunes == 0 {
		return "", false
	}
	return a.flush(), true
}

// Len 当前缓冲字符数
func (a *Assembler) Len() int {
	return a.bufRunes
}

func (a *Assembler) flush() string {
	s := a.buf.String()
	a.buf.Reset()
	a.bufRunes = 0
	a.silenceCount = 0
	return s
}
