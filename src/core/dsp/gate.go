package dsp

import (
	"zhibo-copilot-go/src/core/utils"
)

// GateConfig 语音门控阈值配置。全部阈值可调，
// 音乐启发式的默认值为经验值，应针对目标语料重新标定。
type GateConfig struct {
	MinRMS        float64 `yaml:"min_rms"         json:"min_rms"`         // 近静音下限
	MinVoiceRatio float64 `yaml:"min_voice_ratio" json:"min_voice_ratio"` // 人声频带能量占比下限
	CentroidMinHz float64 `yaml:"centroid_min_hz" json:"centroid_min_hz"` // 谱质心下限（Hz）
	CentroidMaxHz float64 `yaml:"centroid_max_hz" json:"centroid_max_hz"` // 谱质心上限（Hz）
	MinModulation float64 `yaml:"min_modulation"  json:"min_modulation"`  // 音节率调制下限
	MaxFlatness   float64 `yaml:"max_flatness"    json:"max_flatness"`    // 谱平坦度上限

	// 音乐否决阈值：谐波强度或节拍规律性超过上限时强制拒绝
	MaxHarmonicStrength float64 `yaml:"max_harmonic_strength" json:"max_harmonic_strength"`
	MaxBeatRegularity   float64 `yaml:"max_beat_regularity"   json:"max_beat_regularity"`
}

// DefaultGateConfig 返回门控默认阈值
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinRMS:              0.005,
		MinVoiceRatio:       0.45,
		CentroidMinHz:       300,
		CentroidMaxHz:       2200,
		MinModulation:       0.10,
		MaxFlatness:         0.6,
		MaxHarmonicStrength: 0.55,
		MaxBeatRegularity:   0.5,
	}
}

// GateDiagnostics 门控判定的诊断信息，供观测与调参，不落盘
type GateDiagnostics struct {
	RMS              float64 `json:"rms"`
	VoiceRatio       float64 `json:"voice_ratio"`
	CentroidHz       float64 `json:"centroid_hz"`
	Modulation       float64 `json:"modulation"`
	Flatness         float64 `json:"flatness"`
	HarmonicStrength float64 `json:"harmonic_strength"`
	BeatRegularity   float64 `json:"beat_regularity"`
	Reason           string  `json:"reason,omitempty"` // 拒绝原因，通过时为空
}

// Gate 语音似然门控。判定逻辑无状态，持有自己的前端实例。
type Gate struct {
	config   GateConfig
	frontend *Frontend
}

// NewGate 创建语音门控
func NewGate(config GateConfig, sampleRate int) *Gate {
	return &Gate{
		config:   config,
		frontend: NewFrontend(sampleRate),
	}
}

// IsSpeechLike 判定一段PCM是否像语音。总是返回判定结果加诊断特征，
// 退化输入按近静音拒绝，从不报错。
func (g *Gate) IsSpeechLike(samples []float64, durationSec float64) (bool, GateDiagnostics) {
	analysis := g.frontend.Analyze(samples, durationSec)
	return g.Judge(analysis)
}

// Judge 基于已有分析结果判定，供管线复用前端计算
func (g *Gate) Judge(analysis Analysis) (bool, GateDiagnostics) {
	feat := analysis.Feature
	diag := GateDiagnostics{
		RMS:        feat.RMS,
		VoiceRatio: feat.VoiceRatio,
		CentroidHz: analysis.CentroidHz,
		Modulation: analysis.Modulation,
		Flatness:   feat.Flatness,
	}

	if feat.RMS < g.config.MinRMS {
		diag.Reason = "near_silence"
		return false, diag
	}
	if feat.VoiceRatio < g.config.MinVoiceRatio {
		diag.Reason = "voice_ratio_low"
		return false, diag
	}
	if diag.CentroidHz < g.config.CentroidMinHz || diag.CentroidHz > g.config.CentroidMaxHz {
		diag.Reason = "centroid_out_of_band"
		return false, diag
	}
	if diag.Modulation < g.config.MinModulation {
		diag.Reason = "modulation_low"
		return false, diag
	}
	if feat.Flatness > g.config.MaxFlatness {
		diag.Reason = "flatness_high"
		return false, diag
	}

	// 音乐经常满足上面的基础条件，但谐波结构和周期性远强于语音，
	// 任一强音乐特征超限即强制否决。
	diag.HarmonicStrength = harmonicStrength(analysis.MeanSpectrum, g.frontend)
	diag.BeatRegularity = beatRegularity(analysis.Envelope)
	if diag.HarmonicStrength > g.config.MaxHarmonicStrength {
		diag.Reason = "music_harmonic"
		return false, diag
	}
	if diag.BeatRegularity > g.config.MaxBeatRegularity {
		diag.Reason = "music_beat"
		return false, diag
	}

	return true, diag
}

// harmonicStrength 计算平均谱中能量向基频整数倍集中的程度。
// 在80-500Hz内找主峰，累计其整数倍（±1 bin）上的能量占总能量之比。
func harmonicStrength(meanSpectrum []float64, frontend *Frontend) float64 {
	if len(meanSpectrum) == 0 {
		return 0
	}
	binHz := float64(frontend.sampleRate) / float64(frontend.fftSize)

	minBin := int(80 / binHz)
	maxBin := int(500 / binHz)
	if maxBin >= len(meanSpectrum) {
		maxBin = len(meanSpectrum) - 1
	}
	if minBin < 1 {
		minBin = 1
	}

	// 主峰查找
	peakBin := minBin
	for k := minBin; k <= maxBin; k++ {
		if meanSpectrum[k] > meanSpectrum[peakBin] {
			peakBin = k
		}
	}
	if meanSpectrum[peakBin] == 0 {
		return 0
	}

	var total float64
	for _, m := range meanSpectrum {
		total += m * m
	}
	if total == 0 {
		return 0
	}

	var harmonic float64
	for h := 1; ; h++ {
		center := peakBin * h
		if center >= len(meanSpectrum) {
			break
		}
		for k := center - 1; k <= center+1; k++ {
			if k >= 0 && k < len(meanSpectrum) {
				harmonic += meanSpectrum[k] * meanSpectrum[k]
			}
		}
	}
	return utils.Clamp(harmonic/total, 0, 1)
}

// beatRegularity 通过RMS包络自相关衡量节拍周期性。
// 在0.25-2秒滞后范围内（对应0.5-4Hz节拍）取归一化自相关峰值。
func beatRegularity(envelope []float64) float64 {
	n := len(envelope)
	if n < 25 {
		return 0
	}

	// 去均值
	var mean float64
	for _, e := range envelope {
		mean += e
	}
	mean /= float64(n)

	centered := make([]float64, n)
	var energy float64
	for i, e := range envelope {
		centered[i] = e - mean
		energy += centered[i] * centered[i]
	}
	if energy == 0 {
		return 0
	}

	// 包络每20ms一点：滞后12点≈0.25s，100点≈2s
	minLag, maxLag := 12, 100
	if maxLag >= n {
		maxLag = n - 1
	}

	var best float64
	for lag := minLag; lag <= maxLag; lag++ {
		var acf float64
		for i := 0; i+lag < n; i++ {
			acf += centered[i] * centered[i+lag]
		}
		r := acf / energy
		if r > best {
			best = r
		}
	}
	return utils.Clamp(best, 0, 1)
}
