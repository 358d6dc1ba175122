package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"空文本", "", ""},
		{"首尾空白", "  今天天气不错  ", "今天天气不错"},
		{"拉丁标点转中文", "好的,知道了.", "好的，知道了。"},
		{"问号感叹号", "真的吗?太好了!", "真的吗？太好了！"},
		{"折叠重复终止标点", "就这样。。。", "就这样。"},
		{"去除表情", "好开心😊继续", "好开心继续"},
		{"段内空白丢弃", "这个 口红 很好", "这个口红很好"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal('。'))
	assert.True(t, IsTerminal('！'))
	assert.True(t, IsTerminal('？'))
	assert.False(t, IsTerminal('，'))
	assert.False(t, IsTerminal('好'))
}

func TestContainsTerminal(t *testing.T) {
	assert.True(t, ContainsTerminal("说完了。"))
	assert.False(t, ContainsTerminal("还没说完，"))
}

func TestGuard_ShouldDrop(t *testing.T) {
	g := NewGuard(DefaultGuardConfig())

	cases := []struct {
		name       string
		text       string
		rms        float64
		confidence float64
		wantDrop   bool
		wantReason string
	}{
		{"空文本", "", 0.1, 0.9, true, "empty"},
		{"静音上的短词", "嗯嗯", 0.001, 0.9, true, "low_energy_short"},
		{"静音上的纯标点", "。。。", 0.001, 0.9, true, "low_energy_short"},
		{"静音上的长句保留", "这句话足够长不该被丢", 0.001, 0.9, false, ""},
		{"允许列表单字", "嗯", 0.05, 0.2, false, ""},
		{"列表外低置信单字", "买", 0.05, 0.2, true, "single_char_low_conf"},
		{"列表外高置信单字", "买", 0.05, 0.9, false, ""},
		{"正常文本", "今天给大家推荐一款口红", 0.05, 0.8, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drop, reason := g.ShouldDrop(tc.text, tc.rms, tc.confidence)
			assert.Equal(t, tc.wantDrop, drop)
			assert.Equal(t, tc.wantReason, reason)
		})
	}
}
