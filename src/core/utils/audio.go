package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/qrtc/opus-go"
)

// PCM16ToFloat64 将16位小端PCM字节流转换为[-1,1]的浮点采样
func PCM16ToFloat64(data []byte) []float64 {
	n := len(data) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

// Float64ToPCM16 将浮点采样转换回16位小端PCM字节流（测试信号合成用）
func Float64ToPCM16(samples []float64) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(s*32767)))
	}
	return data
}

// RMS 计算采样序列的均方根能量
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSToDb 将线性RMS转换为dBFS，静音时返回-96dB下限
func RMSToDb(rms float64) float64 {
	if rms <= 0 {
		return -96.0
	}
	db := 20 * math.Log10(rms)
	if db < -96.0 {
		db = -96.0
	}
	return db
}

// Clamp 将x限制在[lo,hi]区间内
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// OpusDecoderConfig Opus解码器配置
type OpusDecoderConfig struct {
	SampleRate  int // 采样率
	MaxChannels int // 最大通道数
}

// OpusDecoder Opus解码器封装，用于解码浏览器/推流端送来的opus帧
type OpusDecoder struct {
	decoder *opus.OpusDecoder
	config  *OpusDecoderConfig
}

// NewOpusDecoder 创建Opus解码器
func NewOpusDecoder(config *OpusDecoderConfig) (*OpusDecoder, error) {
	if config == nil {
		config = &OpusDecoderConfig{
			SampleRate:  16000,
			MaxChannels: 1,
		}
	}

	decoder, err := opus.CreateOpusDecoder(&opus.OpusDecoderConfig{
		SampleRate:  config.SampleRate,
		MaxChannels: config.MaxChannels,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Opus解码器失败: %v", err)
	}

	return &OpusDecoder{
		decoder: decoder,
		config:  config,
	}, nil
}

// Decode 解码一帧opus数据为PCM16字节流，空输入返回nil不报错
func (d *OpusDecoder) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	// 预留最大帧长缓冲（120ms）
	pcmBuf := make([]byte, d.config.SampleRate*d.config.MaxChannels*2*120/1000)
	n, err := d.decoder.Decode(data, pcmBuf)
	if err != nil {
		return nil, fmt.Errorf("Opus解码失败: %v", err)
	}
	return pcmBuf[:n], nil
}

// Close 关闭解码器，重复关闭安全
func (d *OpusDecoder) Close() error {
	if d.decoder != nil {
		err := d.decoder.Close()
		d.decoder = nil
		return err
	}
	return nil
}
