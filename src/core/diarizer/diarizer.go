package diarizer

import (
	"fmt"

	"zhibo-copilot-go/src/core/dsp"
)

// 说话人标签
const (
	LabelHost    = "host"
	LabelGuest   = "guest"
	LabelUnknown = "unknown"
)

// Config 在线说话人分离配置
type Config struct {
	MaxSpeakers      int     `yaml:"max_speakers"       json:"max_speakers"`       // 聚类数量上限
	EnrollWindowSec  float64 `yaml:"enroll_window_sec"  json:"enroll_window_sec"`  // 主播注册窗口（秒）
	ClusterThreshold float64 `yaml:"cluster_threshold"  json:"cluster_threshold"`  // 新建聚类距离阈值
	SingleModeFactor float64 `yaml:"single_mode_factor" json:"single_mode_factor"` // 单说话人模式下阈值放大倍数
	SmoothingAlpha   float64 `yaml:"smoothing_alpha"    json:"smoothing_alpha"`    // 质心指数平滑系数
	HostMinSec       float64 `yaml:"host_min_sec"       json:"host_min_sec"`       // 认定主播的最小累计时长
	MultiConfirmSegs int     `yaml:"multi_confirm_segs" json:"multi_confirm_segs"` // 确认多说话人所需连续段数
	MultiMinSec      float64 `yaml:"multi_min_sec"      json:"multi_min_sec"`      // 第二聚类的最小累计时长
}

// DefaultConfig 返回分离器默认配置
func DefaultConfig() Config {
	return Config{
		MaxSpeakers:      4,
		EnrollWindowSec:  30,
		ClusterThreshold: 0.6,
		SingleModeFactor: 1.5,
		SmoothingAlpha:   0.2,
		HostMinSec:       1.0,
		MultiConfirmSegs: 3,
		MultiMinSec:      2.0,
	}
}

// Cluster 说话人聚类。质心原地指数平滑更新，仅属于一个分离器实例。
type Cluster struct {
	ID          int               `json:"id"`
	Centroid    dsp.FeatureVector `json:"centroid"`
	Samples     int               `json:"samples"`
	DurationSec float64           `json:"duration_sec"`
}

// Result 每段音频的分离结果
type Result struct {
	ClusterID    int     `json:"cluster_id"`
	Label        string  `json:"label"`
	Distance     float64 `json:"distance"`
	MultiSpeaker bool    `json:"multi_speaker"`
}

// State 分离器状态快照，诊断接口使用
type State struct {
	ClusterCount    int     `json:"cluster_count"`
	HostID          int     `json:"host_id"`
	EnrolledSec     float64 `json:"enrolled_sec"`
	MultiSpeaker    bool    `json:"multi_speaker"`
	MultiConfidence float64 `json:"multi_confidence"`
	SingleStableSec float64 `json:"single_stable_sec"`
}

// Diarizer 无监督在线说话人分离。每个直播会话独立持有一个实例，
// 会话开始创建，每次Feed变更状态，会话结束丢弃。非并发安全。
type Diarizer struct {
	config   Config
	clusters map[int]*Cluster
	nextID   int

	hostID      int // 未选定为-1
	enrolledSec float64

	// 智能切换：启动时默认单说话人模式，第二聚类需连续坐实才切换，
	// 避免主播自己的音调变化被误判为第二说话人。多说话人标记有粘性，
	// 不自动回退。
	multiSpeaker    bool
	multiConfidence float64
	singleStableSec float64
	candidateID     int
	candidateStreak int
}

// New 创建在线分离器
func New(config Config) *Diarizer {
	return &Diarizer{
		config:      config,
		clusters:    make(map[int]*Cluster),
		hostID:      -1,
		candidateID: -1,
	}
}

// Feed 送入一段音频的特征向量，返回说话人标签。
// 段的先后顺序是正确性前提，质心更新对顺序敏感。
func (d *Diarizer) Feed(feat dsp.FeatureVector, durationSec float64) Result {
	if feat.IsZero() {
		return Result{ClusterID: -1, Label: LabelUnknown, MultiSpeaker: d.multiSpeaker}
	}

	d.enrolledSec += durationSec

	// 最近邻查找
	nearest, dist := d.nearest(feat)

	// 单说话人模式下收紧新建条件，抵抗偶发离群段
	threshold := d.config.ClusterThreshold
	if !d.multiSpeaker {
		threshold *= d.config.SingleModeFactor
	}

	var assigned *Cluster
	if nearest == nil || (dist > threshold && len(d.clusters) < d.config.MaxSpeakers) {
		assigned = &Cluster{
			ID:          d.nextID,
			Centroid:    feat,
			Samples:     1,
			DurationSec: durationSec,
		}
		d.clusters[assigned.ID] = assigned
		d.nextID++
		dist = 0
	} else {
		// 指数平滑更新质心：center = (1-α)·center + α·x
		alpha := d.config.SmoothingAlpha
		c := &nearest.Centroid
		c.VoiceRatio = (1-alpha)*c.VoiceRatio + alpha*feat.VoiceRatio
		c.HighRatio = (1-alpha)*c.HighRatio + alpha*feat.HighRatio
		c.Centroid = (1-alpha)*c.Centroid + alpha*feat.Centroid
		c.Flatness = (1-alpha)*c.Flatness + alpha*feat.Flatness
		c.RMS = (1-alpha)*c.RMS + alpha*feat.RMS
		c.Duration = (1-alpha)*c.Duration + alpha*feat.Duration
		nearest.Samples++
		nearest.DurationSec += durationSec
		assigned = nearest
	}

	d.electHost()
	d.trackMultiSpeaker(assigned, durationSec)

	return Result{
		ClusterID:    assigned.ID,
		Label:        d.label(assigned.ID),
		Distance:     dist,
		MultiSpeaker: d.multiSpeaker,
	}
}

// nearest 按欧氏距离查找最近聚类
func (d *Diarizer) nearest(feat dsp.FeatureVector) (*Cluster, float64) {
	var best *Cluster
	bestDist := 0.0
	for _, c := range d.clusters {
		dist := feat.Distance(c.Centroid)
		if best == nil || dist < bestDist || (dist == bestDist && c.ID < best.ID) {
			best = c
			bestDist = dist
		}
	}
	return best, bestDist
}

// electHost 注册窗口内，累计时长最大且超过下限的聚类成为主播
func (d *Diarizer) electHost() {
	if d.hostID >= 0 || d.enrolledSec > d.config.EnrollWindowSec {
		return
	}
	var best *Cluster
	for _, c := range d.clusters {
		if best == nil || c.DurationSec > best.DurationSec ||
			(c.DurationSec == best.DurationSec && c.ID < best.ID) {
			best = c
		}
	}
	if best != nil && best.DurationSec >= d.config.HostMinSec {
		d.hostID = best.ID
	}
}

// trackMultiSpeaker 跟踪第二说话人的坐实进度
func (d *Diarizer) trackMultiSpeaker(assigned *Cluster, durationSec float64) {
	if d.multiSpeaker {
		return // 有粘性，不回退
	}
	if d.hostID < 0 || assigned.ID == d.hostID {
		d.singleStableSec += durationSec
		d.candidateID = -1
		d.candidateStreak = 0
		d.multiConfidence = 0
		return
	}

	// 非主播聚类连续出现才累计置信度
	if assigned.ID == d.candidateID {
		d.candidateStreak++
	} else {
		d.candidateID = assigned.ID
		d.candidateStreak = 1
	}

	durConf := assigned.DurationSec / d.config.MultiMinSec
	if durConf > 1 {
		durConf = 1
	}
	streakConf := float64(d.candidateStreak) / float64(d.config.MultiConfirmSegs)
	if streakConf > 1 {
		streakConf = 1
	}
	d.multiConfidence = durConf * streakConf

	if d.candidateStreak >= d.config.MultiConfirmSegs && assigned.DurationSec >= d.config.MultiMinSec {
		d.multiSpeaker = true
	}
}

// label 返回聚类对应的说话人标签
func (d *Diarizer) label(clusterID int) string {
	if d.hostID < 0 {
		return fmt.Sprintf("spk%d", clusterID)
	}
	if clusterID == d.hostID {
		return LabelHost
	}
	return LabelGuest
}

// ClusterCount 当前聚类数量
func (d *Diarizer) ClusterCount() int {
	return len(d.clusters)
}

// MultiSpeakerDetected 是否已确认多说话人
func (d *Diarizer) MultiSpeakerDetected() bool {
	return d.multiSpeaker
}

// Snapshot 返回状态快照
func (d *Diarizer) Snapshot() State {
	return State{
		ClusterCount:    len(d.clusters),
		HostID:          d.hostID,
		EnrolledSec:     d.enrolledSec,
		MultiSpeaker:    d.multiSpeaker,
		MultiConfidence: d.multiConfidence,
		SingleStableSec: d.singleStableSec,
	}
}

// Reset 清空全部状态，会话结束时调用
func (d *Diarizer) Reset() {
	d.clusters = make(map[int]*Cluster)
	d.nextID = 0
	d.hostID = -1
	d.enrolledSec = 0
	d.multiSpeaker = false
	d.multiConfidence = 0
	d.singleStableSec = 0
	d.candidateID = -1
	d.candidateStreak = 0
}
