package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhibo-copilot-go/src/core/eventbus"
	"zhibo-copilot-go/src/core/history"
	"zhibo-copilot-go/src/core/providers"
	"zhibo-copilot-go/src/core/providers/asr"
	"zhibo-copilot-go/src/core/utils"
)

type fakeASR struct {
	*asr.BaseProvider
	text string
	conf float64
	err  error
}

func (f *fakeASR) Transcribe(context.Context, []byte) (*providers.ASRResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &providers.ASRResult{Text: f.text, Confidence: f.conf}, nil
}

type fakeSource struct {
	provider asr.Provider
}

func (f *fakeSource) Acquire(context.Context) (asr.Provider, error) {
	return f.provider, nil
}

func (f *fakeSource) Release(asr.Provider) {}

func newFakeSource(text string, conf float64, err error) *fakeSource {
	return &fakeSource{provider: &fakeASR{
		BaseProvider: asr.NewBaseProvider(&asr.Config{Name: "fake"}),
		text:         text,
		conf:         conf,
		err:          err,
	}}
}

// genSpeechPCM 合成类语音音频：人声频带多频载波加不规则音节包络
func genSpeechPCM(durationSec float64, sampleRate int) []byte {
	rng := rand.New(rand.NewSource(42))
	n := int(durationSec * float64(sampleRate))
	samples := make([]float64, n)
	freqs := []float64{500, 850, 1300, 1750, 2600}

	i := 0
	for i < n {
		onLen := int((0.12 + 0.14*rng.Float64()) * float64(sampleRate))
		gapLen := int((0.04 + 0.05*rng.Float64()) * float64(sampleRate))
		amp := 0.12 + 0.08*rng.Float64()

		for j := 0; j < onLen && i < n; j, i = j+1, i+1 {
			t := float64(i) / float64(sampleRate)
			fade := math.Sin(math.Pi * float64(j) / float64(onLen))
			var s float64
			for _, f := range freqs {
				s += amp * fade * math.Sin(2*math.Pi*f*t)
			}
			samples[i] = s + 0.003*(rng.Float64()*2-1)
		}
		for j := 0; j < gapLen && i < n; j, i = j+1, i+1 {
			samples[i] = 0.003 * (rng.Float64()*2 - 1)
		}
	}
	return utils.Float64ToPCM16(samples)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = utils.Duration(50 * time.Millisecond)
	return cfg
}

// feedFrames 按20ms一帧送入音频
func feedFrames(s *Session, pcm []byte, sampleRate int) {
	frameBytes := sampleRate * 2 * 20 / 1000
	for start := 0; start < len(pcm); start += frameBytes {
		end := start + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		s.FeedPCM(pcm[start:end])
	}
}

// feedSilence 送入指定时长的静音帧
func feedSilence(s *Session, durationSec float64, sampleRate int) {
	n := int(durationSec * float64(sampleRate))
	feedFrames(s, make([]byte, n*2), sampleRate)
}

func waitTranscript(t *testing.T, ch <-chan eventbus.TranscriptEventData) eventbus.TranscriptEventData {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("等待转写事件超时")
		return eventbus.TranscriptEventData{}
	}
}

func TestSession_SpeechProducesTranscript(t *testing.T) {
	cfg := testConfig()
	store := history.NewMemory(history.Config{MaxEntries: 10})
	s := NewSession("sess-1", cfg, nil, newFakeSource("今天天气真不错。", 0.95, nil), store, nil)

	events := make(chan eventbus.TranscriptEventData, 8)
	s.SetTranscriptHandler(func(ev eventbus.TranscriptEventData) { events <- ev })
	s.Start()
	defer s.Stop()

	feedFrames(s, genSpeechPCM(3.0, cfg.SampleRate), cfg.SampleRate)
	feedSilence(s, 0.6, cfg.SampleRate)

	ev := waitTranscript(t, events)
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, "今天天气真不错。", ev.Text)
	assert.NotEmpty(t, ev.Speaker)
	assert.Greater(t, ev.Confidence, ev.Threshold)
	assert.True(t, ev.Accepted)
	assert.NotEmpty(t, ev.EmotionEmoji)

	// 历史存储异步写入
	require.Eventually(t, func() bool {
		entries, err := store.Recent(context.Background(), "sess-1", 10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 20*time.Millisecond)

	diag := s.Diagnostics()
	assert.Equal(t, int64(1), diag.Stats.SegmentsTotal)
	assert.Equal(t, int64(1), diag.Stats.TranscriptsEmitted)
}

func TestSession_RejectsNonSpeech(t *testing.T) {
	cfg := testConfig()
	s := NewSession("sess-2", cfg, nil, newFakeSource("不该出现", 0.95, nil), nil, nil)

	events := make(chan eventbus.TranscriptEventData, 8)
	s.SetTranscriptHandler(func(ev eventbus.TranscriptEventData) { events <- ev })
	s.Start()

	// 100Hz电流声不会过门控
	n := cfg.SampleRate
	hum := make([]float64, n)
	for i := range hum {
		hum[i] = 0.3 * math.Sin(2*math.Pi*100*float64(i)/float64(cfg.SampleRate))
	}
	feedFrames(s, utils.Float64ToPCM16(hum), cfg.SampleRate)
	feedSilence(s, 0.6, cfg.SampleRate)

	s.Stop()

	diag := s.Diagnostics()
	assert.Equal(t, int64(1), diag.Stats.SegmentsRejected)
	assert.Equal(t, int64(0), diag.Stats.TranscriptsEmitted)
	assert.Empty(t, events)
}

func TestSession_ASRFailureDegrades(t *testing.T) {
	cfg := testConfig()
	s := NewSession("sess-3", cfg, nil, newFakeSource("", 0, fmt.Errorf("网络抖动")), nil, nil)

	events := make(chan eventbus.TranscriptEventData, 8)
	s.SetTranscriptHandler(func(ev eventbus.TranscriptEventData) { events <- ev })
	s.Start()

	feedFrames(s, genSpeechPCM(3.0, cfg.SampleRate), cfg.SampleRate)
	feedSilence(s, 0.6, cfg.SampleRate)

	s.Stop()

	diag := s.Diagnostics()
	assert.GreaterOrEqual(t, diag.Stats.ASRFailures, int64(1))
	assert.Equal(t, int64(0), diag.Stats.TranscriptsEmitted)
	assert.Empty(t, events)
}

func TestSession_StopFlushesBuffer(t *testing.T) {
	cfg := testConfig()
	s := NewSession("sess-4", cfg, nil, newFakeSource("还没说完的半句", 0.95, nil), nil, nil)

	events := make(chan eventbus.TranscriptEventData, 8)
	s.SetTranscriptHandler(func(ev eventbus.TranscriptEventData) { events <- ev })
	s.Start()

	feedFrames(s, genSpeechPCM(3.0, cfg.SampleRate), cfg.SampleRate)
	feedSilence(s, 0.45, cfg.SampleRate)

	// 等识别落入断句缓冲后停止会话
	require.Eventually(t, func() bool {
		return s.Diagnostics().BufferedChars > 0
	}, 3*time.Second, 20*time.Millisecond)

	s.Stop()

	ev := waitTranscript(t, events)
	assert.Equal(t, "还没说完的半句", ev.Text)
}

func TestSession_StopIsIdempotent(t *testing.T) {
	cfg := testConfig()
	s := NewSession("sess-5", cfg, nil, newFakeSource("好。", 0.9, nil), nil, nil)
	s.Start()

	s.Stop()
	s.Stop()
}

// 传输层关停和尚未退出的读协程可能并发，迟到的帧必须被安全丢弃
func TestSession_FeedAfterStopIsDiscarded(t *testing.T) {
	cfg := testConfig()
	s := NewSession("sess-6", cfg, nil, newFakeSource("迟到的句子。", 0.95, nil), nil, nil)
	s.Start()
	s.Stop()

	feedFrames(s, genSpeechPCM(3.0, cfg.SampleRate), cfg.SampleRate)
	feedSilence(s, 0.6, cfg.SampleRate)

	diag := s.Diagnostics()
	assert.EqualValues(t, 0, diag.Stats.SegmentsTotal)
	assert.EqualValues(t, 0, diag.Stats.TranscriptsEmitted)
}

// 回调内允许反查会话状态，慢回调也不能拖住流水线内部锁
func TestSession_TranscriptHandlerMayQueryDiagnostics(t *testing.T) {
	cfg := testConfig()
	s := NewSession("sess-7", cfg, nil, newFakeSource("欢迎来到直播间。", 0.95, nil), nil, nil)

	events := make(chan eventbus.TranscriptEventData, 8)
	s.SetTranscriptHandler(func(ev eventbus.TranscriptEventData) {
		diag := s.Diagnostics()
		assert.Equal(t, "sess-7", diag.SessionID)
		events <- ev
	})
	s.Start()
	defer s.Stop()

	feedFrames(s, genSpeechPCM(3.0, cfg.SampleRate), cfg.SampleRate)
	feedSilence(s, 0.6, cfg.SampleRate)

	ev := waitTranscript(t, events)
	assert.Equal(t, "欢迎来到直播间。", ev.Text)
}
