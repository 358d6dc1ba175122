package diarizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhibo-copilot-go/src/core/dsp"
)

var hostFeat = dsp.FeatureVector{
	VoiceRatio: 0.80, HighRatio: 0.05, Centroid: 0.20,
	Flatness: 0.20, RMS: 0.30, Duration: 0.40,
}

var guestFeat = dsp.FeatureVector{
	VoiceRatio: 0.30, HighRatio: 0.50, Centroid: 0.80,
	Flatness: 0.60, RMS: 0.10, Duration: 0.40,
}

// jitter 对特征向量加小幅扰动，模拟同一说话人的段间变化
func jitter(base dsp.FeatureVector, rng *rand.Rand, scale float64) dsp.FeatureVector {
	j := func(v float64) float64 { return v + (rng.Float64()*2-1)*scale }
	return dsp.FeatureVector{
		VoiceRatio: j(base.VoiceRatio),
		HighRatio:  j(base.HighRatio),
		Centroid:   j(base.Centroid),
		Flatness:   j(base.Flatness),
		RMS:        j(base.RMS),
		Duration:   base.Duration,
	}
}

func TestFeed_ZeroFeatureIsUnknown(t *testing.T) {
	d := New(DefaultConfig())

	res := d.Feed(dsp.FeatureVector{}, 0.5)

	assert.Equal(t, -1, res.ClusterID)
	assert.Equal(t, LabelUnknown, res.Label)
	assert.Equal(t, 0, d.ClusterCount())
}

func TestFeed_HostElection(t *testing.T) {
	d := New(DefaultConfig())

	// 首段时长不足，尚未选出主播
	res := d.Feed(hostFeat, 0.5)
	assert.Equal(t, "spk0", res.Label)

	// 累计超过最小时长后当选
	res = d.Feed(hostFeat, 0.8)
	assert.Equal(t, LabelHost, res.Label)
	assert.Equal(t, 1, d.ClusterCount())
}

func TestFeed_SingleSpeakerStaysStable(t *testing.T) {
	d := New(DefaultConfig())
	rng := rand.New(rand.NewSource(7))

	d.Feed(hostFeat, 1.0)
	for i := 0; i < 30; i++ {
		res := d.Feed(jitter(hostFeat, rng, 0.05), 1.0)
		assert.Equal(t, LabelHost, res.Label)
		assert.False(t, res.MultiSpeaker)
	}

	assert.Equal(t, 1, d.ClusterCount())
	assert.False(t, d.MultiSpeakerDetected())
}

func TestFeed_DetectsSecondSpeaker(t *testing.T) {
	cfg := DefaultConfig()
	d := New(cfg)

	// 主播注册
	d.Feed(hostFeat, 1.5)
	require.Equal(t, LabelHost, d.Feed(hostFeat, 1.5).Label)

	// 差异明显的第二声音连续出现，坐实多说话人
	var last Result
	for i := 0; i < cfg.MultiConfirmSegs; i++ {
		last = d.Feed(guestFeat, 1.0)
	}

	assert.Equal(t, LabelGuest, last.Label)
	assert.True(t, last.MultiSpeaker)
	assert.True(t, d.MultiSpeakerDetected())
	assert.Equal(t, 2, d.ClusterCount())
}

func TestFeed_MultiSpeakerIsSticky(t *testing.T) {
	cfg := DefaultConfig()
	d := New(cfg)

	d.Feed(hostFeat, 1.5)
	d.Feed(hostFeat, 1.5)
	for i := 0; i < cfg.MultiConfirmSegs; i++ {
		d.Feed(guestFeat, 1.0)
	}
	require.True(t, d.MultiSpeakerDetected())

	// 之后哪怕只剩主播说话，标记也不回退
	for i := 0; i < 20; i++ {
		res := d.Feed(hostFeat, 1.0)
		assert.True(t, res.MultiSpeaker)
	}
}

func TestFeed_SingleModeTightensCreation(t *testing.T) {
	cfg := DefaultConfig()
	d := New(cfg)

	d.Feed(hostFeat, 1.5)

	// 与质心距离略超基础阈值的离群段，单说话人模式下不应新建聚类
	outlier := hostFeat
	outlier.Centroid += 0.45
	outlier.Flatness += 0.45
	require.Greater(t, outlier.Distance(hostFeat), cfg.ClusterThreshold)
	require.Less(t, outlier.Distance(hostFeat), cfg.ClusterThreshold*cfg.SingleModeFactor)

	d.Feed(outlier, 0.5)
	assert.Equal(t, 1, d.ClusterCount())
}

func TestFeed_RespectsMaxSpeakers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSpeakers = 2
	d := New(cfg)

	feats := []dsp.FeatureVector{
		{VoiceRatio: 0.9, RMS: 0.3},
		{Centroid: 0.9, Flatness: 0.9, HighRatio: 0.9},
		{VoiceRatio: 0.1, Centroid: 0.1, RMS: 0.9, Duration: 0.9, HighRatio: 0.5},
	}
	for _, f := range feats {
		d.Feed(f, 1.0)
	}

	assert.LessOrEqual(t, d.ClusterCount(), 2)
}

func TestReset(t *testing.T) {
	d := New(DefaultConfig())
	d.Feed(hostFeat, 1.5)
	d.Feed(guestFeat, 1.0)

	d.Reset()

	snap := d.Snapshot()
	assert.Equal(t, 0, snap.ClusterCount)
	assert.Equal(t, -1, snap.HostID)
	assert.False(t, snap.MultiSpeaker)
	assert.Equal(t, 0.0, snap.EnrolledSec)
}
