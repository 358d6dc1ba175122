package dsp

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestGate() *Gate {
	return NewGate(DefaultGateConfig(), testSampleRate)
}

func TestGate_RejectsSilence(t *testing.T) {
	g := newTestGate()

	ok, diag := g.IsSpeechLike(make([]float64, testSampleRate), 1.0)

	assert.False(t, ok)
	assert.Equal(t, "near_silence", diag.Reason)
}

func TestGate_RejectsLowHum(t *testing.T) {
	g := newTestGate()

	// 100Hz电流声：能量全部在人声频带之下
	ok, diag := g.IsSpeechLike(genTone([]float64{100}, 0.3, 1.0), 1.0)

	assert.False(t, ok)
	assert.Equal(t, "voice_ratio_low", diag.Reason)
}

func TestGate_RejectsHighHiss(t *testing.T) {
	g := newTestGate()

	ok, diag := g.IsSpeechLike(genTone([]float64{6000}, 0.3, 1.0), 1.0)

	assert.False(t, ok)
	assert.Equal(t, "voice_ratio_low", diag.Reason)
}

func TestGate_RejectsHarmonicMusic(t *testing.T) {
	g := newTestGate()

	// 220Hz基频加整数倍谐波，带轻微混合调制模拟演奏动态
	n := 4 * testSampleRate
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		tm := float64(i) / testSampleRate
		env := 0.6 + 0.2*math.Sin(2*math.Pi*3*tm) + 0.2*math.Sin(2*math.Pi*5*tm)
		for _, f := range []float64{220, 440, 660, 880} {
			samples[i] += 0.1 * env * math.Sin(2*math.Pi*f*tm)
		}
	}

	ok, diag := g.IsSpeechLike(samples, 4.0)

	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(diag.Reason, "music"), "reason=%s", diag.Reason)
}

func TestGate_RejectsSteadyBeat(t *testing.T) {
	g := newTestGate()

	// 人声频带内的非谐波音，2Hz方波节拍
	n := 4 * testSampleRate
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		tm := float64(i) / testSampleRate
		beat := 0.0
		if math.Mod(tm, 0.5) < 0.25 {
			beat = 1.0
		}
		for _, f := range []float64{600, 1150, 1900} {
			samples[i] += 0.1 * beat * math.Sin(2*math.Pi*f*tm)
		}
	}

	ok, diag := g.IsSpeechLike(samples, 4.0)

	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(diag.Reason, "music"), "reason=%s", diag.Reason)
}

func TestGate_AcceptsSpeechLike(t *testing.T) {
	g := newTestGate()

	ok, diag := g.IsSpeechLike(genSpeechLike(3.0), 3.0)

	assert.True(t, ok, "diag=%+v", diag)
	assert.Empty(t, diag.Reason)
	assert.Greater(t, diag.Modulation, DefaultGateConfig().MinModulation)
}

func TestGate_DiagnosticsAlwaysPopulated(t *testing.T) {
	g := newTestGate()

	_, diag := g.IsSpeechLike(genTone([]float64{1000}, 0.3, 1.0), 1.0)

	assert.Greater(t, diag.RMS, 0.0)
	assert.Greater(t, diag.CentroidHz, 0.0)
}
