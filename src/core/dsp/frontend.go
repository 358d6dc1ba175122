package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"zhibo-copilot-go/src/core/utils"
)

// 频谱分析固定参数，400点窗对应16kHz下25ms，步长10ms
const (
	windowSize = 400
	hopSize    = 160

	// 包络分析参数：20ms一跳的RMS包络，时序采样率50Hz
	envelopeHopMs = 20

	// 人声频带划分（Hz）
	lowBandMax   = 300.0
	voiceBandMax = 3400.0

	flatnessEps = 1e-10
)

// FeatureVector 每段音频计算一次的定长特征向量，
// 由语音门控和说话人分离共同消费，生成后不可变。
type FeatureVector struct {
	VoiceRatio float64 `json:"voice_ratio"` // 300-3400Hz能量占比
	HighRatio  float64 `json:"high_ratio"`  // 3400Hz-奈奎斯特能量占比
	Centroid   float64 `json:"centroid"`    // 归一化谱质心 [0,1]
	Flatness   float64 `json:"flatness"`    // 谱平坦度 [0,1]
	RMS        float64 `json:"rms"`         // 均方根能量
	Duration   float64 `json:"duration"`    // 归一化时长 [0,1]
}

// IsZero 判断是否为退化输入产生的哨兵零向量
func (v FeatureVector) IsZero() bool {
	return v.VoiceRatio == 0 && v.HighRatio == 0 && v.Centroid == 0 &&
		v.Flatness == 0 && v.RMS == 0 && v.Duration == 0
}

// Distance 与另一特征向量的欧氏距离
func (v FeatureVector) Distance(o FeatureVector) float64 {
	d := func(a, b float64) float64 { return (a - b) * (a - b) }
	sum := d(v.VoiceRatio, o.VoiceRatio) +
		d(v.HighRatio, o.HighRatio) +
		d(v.Centroid, o.Centroid) +
		d(v.Flatness, o.Flatness) +
		d(v.RMS, o.RMS) +
		d(v.Duration, o.Duration)
	return math.Sqrt(sum)
}

// Analysis 一段音频的完整分析结果，特征向量之外附带门控启发式所需的中间量
type Analysis struct {
	Feature FeatureVector

	CentroidHz   float64   // 未归一化谱质心（Hz）
	Modulation   float64   // 2-8Hz包络调制能量占比（音节率信号）
	MeanSpectrum []float64 // 各帧平均幅度谱
	Envelope     []float64 // 20ms跳的RMS包络
}

// Frontend 低层特征提取前端。确定性计算，但内部FFT计划
// 含工作缓冲，单个实例不可并发调用，每个会话各持一份。
type Frontend struct {
	sampleRate int
	fftSize    int
	fft        *fourier.FFT
	window     []float64
}

// NewFrontend 创建特征提取前端
func NewFrontend(sampleRate int) *Frontend {
	fftSize := nextPow2(windowSize)
	f := &Frontend{
		sampleRate: sampleRate,
		fftSize:    fftSize,
		fft:        fourier.NewFFT(fftSize),
		window:     hannWindow(windowSize),
	}
	return f
}

// SampleRate 返回前端配置的采样率
func (f *Frontend) SampleRate() int {
	return f.sampleRate
}

// ComputeFeatures 计算一段PCM采样的特征向量。
// 退化输入（过短或静音）返回零向量，从不报错。
func (f *Frontend) ComputeFeatures(samples []float64, durationSec float64) FeatureVector {
	return f.Analyze(samples, durationSec).Feature
}

// Analyze 完整分析一段PCM采样，结果对相同输入严格可复现
func (f *Frontend) Analyze(samples []float64, durationSec float64) Analysis {
	rms := utils.RMS(samples)
	if len(samples) < windowSize || rms == 0 {
		return Analysis{}
	}

	nyquist := float64(f.sampleRate) / 2
	binHz := float64(f.sampleRate) / float64(f.fftSize)
	nBins := f.fftSize/2 + 1

	var (
		centroids  []float64
		flatnesses []float64
		lowEnergy  float64
		voiceEnerg float64
		highEnergy float64
	)
	meanSpectrum := make([]float64, nBins)
	frame := make([]float64, f.fftSize)
	coeffs := make([]complex128, nBins)

	frames := 0
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		// 加窗并补零到FFT长度
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * f.window[i]
		}
		for i := windowSize; i < f.fftSize; i++ {
			frame[i] = 0
		}
		coeffs = f.fft.Coefficients(coeffs, frame)

		var frameEnergy, weighted float64
		var logSum, linSum float64
		for k := 0; k < nBins; k++ {
			mag := cmplxAbs(coeffs[k])
			meanSpectrum[k] += mag
			p := mag * mag
			freq := float64(k) * binHz

			frameEnergy += p
			weighted += freq * p

			switch {
			case freq < lowBandMax:
				lowEnergy += p
			case freq < voiceBandMax:
				voiceEnerg += p
			default:
				highEnergy += p
			}

			m := mag
			if m < flatnessEps {
				m = flatnessEps
			}
			logSum += math.Log(m)
			linSum += m
		}

		if frameEnergy > 0 {
			c := weighted / frameEnergy
			centroids = append(centroids, utils.Clamp(c, 0, nyquist))
		}
		geo := math.Exp(logSum / float64(nBins))
		arith := linSum / float64(nBins)
		if arith > 0 {
			flatnesses = append(flatnesses, utils.Clamp(geo/arith, 0, 1))
		}
		frames++
	}
	if frames == 0 {
		return Analysis{}
	}
	for k := range meanSpectrum {
		meanSpectrum[k] /= float64(frames)
	}

	total := lowEnergy + voiceEnerg + highEnergy
	var voiceRatio, highRatio float64
	if total > 0 {
		voiceRatio = voiceEnerg / total
		highRatio = highEnergy / total
	}

	centroidHz := median(centroids)
	envelope := f.rmsEnvelope(samples)
	modulation := f.envelopeModulation(envelope)

	feat := FeatureVector{
		VoiceRatio: voiceRatio,
		HighRatio:  highRatio,
		Centroid:   utils.Clamp(centroidHz/nyquist, 0, 1),
		Flatness:   median(flatnesses),
		RMS:        rms,
		Duration:   utils.Clamp(durationSec/5.0, 0, 1),
	}

	return Analysis{
		Feature:      feat,
		CentroidHz:   centroidHz,
		Modulation:   modulation,
		MeanSpectrum: meanSpectrum,
		Envelope:     envelope,
	}
}

// rmsEnvelope 计算20ms跳的RMS包络
func (f *Frontend) rmsEnvelope(samples []float64) []float64 {
	hop := f.sampleRate * envelopeHopMs / 1000
	if hop <= 0 {
		return nil
	}
	var env []float64
	for start := 0; start+hop <= len(samples); start += hop {
		env = append(env, utils.RMS(samples[start:start+hop]))
	}
	return env
}

// envelopeModulation 计算包络中2-8Hz调制能量与0-20Hz总能量之比。
// 语音的音节率集中在该频段，音乐和平稳噪声则没有。
func (f *Frontend) envelopeModulation(envelope []float64) float64 {
	if len(envelope) < 8 {
		return 0
	}

	// 去均值，避免直流成分压制调制能量
	var mean float64
	for _, e := range envelope {
		mean += e
	}
	mean /= float64(len(envelope))

	n := nextPow2(len(envelope))
	seq := make([]float64, n)
	for i, e := range envelope {
		seq[i] = e - mean
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)

	// 包络时序采样率：每20ms一点
	envRate := 1000.0 / float64(envelopeHopMs)
	binHz := envRate / float64(n)

	var syllabic, broad float64
	for k := 1; k < len(coeffs); k++ {
		freq := float64(k) * binHz
		if freq > 20.0 {
			break
		}
		p := cmplxAbs(coeffs[k])
		p *= p
		broad += p
		if freq >= 2.0 && freq <= 8.0 {
			syllabic += p
		}
	}
	if broad == 0 {
		return 0
	}
	return syllabic / broad
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := make([]float64, len(xs))
	copy(cp, xs)
	// 插入排序足够，帧数有限
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && cp[j] < cp[j-1]; j-- {
			cp[j], cp[j-1] = cp[j-1], cp[j]
		}
	}
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return (cp[mid-1] + cp[mid]) / 2
}
