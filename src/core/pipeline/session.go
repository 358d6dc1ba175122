package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zhibo-copilot-go/src/core/confidence"
	"zhibo-copilot-go/src/core/diarizer"
	"zhibo-copilot-go/src/core/dsp"
	"zhibo-copilot-go/src/core/eventbus"
	"zhibo-copilot-go/src/core/history"
	"zhibo-copilot-go/src/core/textproc"
	"zhibo-copilot-go/src/core/utils"
)

// Stats 会话累计计数
type Stats struct {
	SegmentsTotal      int64 `json:"segments_total"`
	SegmentsRejected   int64 `json:"segments_rejected"`
	SegmentsRecognized int64 `json:"segments_recognized"`
	QueueDropped       int64 `json:"queue_dropped"`
	ASRFailures        int64 `json:"asr_failures"`
	TranscriptsEmitted int64 `json:"transcripts_emitted"`
	TranscriptsDropped int64 `json:"transcripts_dropped"`
}

// Diagnostics 会话诊断快照，webapi的会话详情接口返回这个结构
type Diagnostics struct {
	SessionID     string              `json:"session_id"`
	Stats         Stats               `json:"stats"`
	LastGate      dsp.GateDiagnostics `json:"last_gate"`
	Diarizer      diarizer.State      `json:"diarizer"`
	Threshold     confidence.State    `json:"threshold"`
	QueueDepth    int                 `json:"queue_depth"`
	BufferedChars int                 `json:"buffered_chars"`
}

// segmentJob 一段闭合语音的识别任务
type segmentJob struct {
	pcm         []byte
	durationSec float64
	rms         float64
	speaker     diarizer.Result
	quality     confidence.AudioQuality
	emotion     confidence.EmotionalFeatures
}

// emitContext 最近一次接受片段的上下文，
// 超时冲刷的句子沿用它补全说话人和情绪字段
type emitContext struct {
	speaker    diarizer.Result
	emotion    confidence.EmotionalFeatures
	confidence float64
	threshold  float64
	accepted   bool
	valid      bool
}

// Session 单个直播会话的决策流水线。
// 音频帧由传输层读协程送入，识别及之后的处理在会话内部的
// 单worker上串行执行，保证句子顺序与音频顺序一致。
type Session struct {
	id        string
	config    Config
	logger    *utils.Logger
	asrSource ASRSource
	store     history.Store

	frontend   *dsp.Frontend
	gate       *dsp.Gate
	diar       *diarizer.Diarizer
	calc       *confidence.Calculator
	controller *confidence.Controller
	guard      *textproc.Guard
	assembler  *textproc.Assembler

	onTranscript func(eventbus.TranscriptEventData)
	onClose      func(sessionID string)

	// 分段状态，仅读协程访问
	segBuf         []float64
	silenceSamples int
	silenceRun     int
	inSpeech       bool

	jobs chan segmentJob
	quit chan struct{}
	wg   sync.WaitGroup

	mu          sync.Mutex
	stats       Stats
	lastGate    dsp.GateDiagnostics
	lastCtx     emitContext
	lastSpeaker string
	multiSeen   bool
	closed      bool
	jobsClosed  bool
}

// NewSession 创建会话流水线
func NewSession(id string, config Config, vocab *confidence.Vocabulary,
	asrSource ASRSource, store history.Store, logger *utils.Logger) *Session {
	return &Session{
		id:         id,
		config:     config,
		logger:     logger,
		asrSource:  asrSource,
		store:      store,
		frontend:   dsp.NewFrontend(config.SampleRate),
		gate:       dsp.NewGate(config.Gate, config.SampleRate),
		diar:       diarizer.New(config.Diarizer),
		calc:       confidence.NewCalculator(config.Weights, vocab, config.EmotionBoostCap),
		controller: confidence.NewController(config.Threshold),
		guard:      textproc.NewGuard(config.Guard),
		assembler:  textproc.NewAssembler(config.Assembler),
		jobs:       make(chan segmentJob, config.QueueSize),
		quit:       make(chan struct{}),
	}
}

// SetTranscriptHandler 注册定稿句子回调，传输层用它下发事件
func (s *Session) SetTranscriptHandler(fn func(eventbus.TranscriptEventData)) {
	s.onTranscript = fn
}

// SetCloseHandler 注册会话停止回调，用于从注册表注销
func (s *Session) SetCloseHandler(fn func(sessionID string)) {
	s.onClose = fn
}

// ID 会话标识
func (s *Session) ID() string {
	return s.id
}

// Start 启动识别worker和断句定时器
func (s *Session) Start() {
	s.wg.Add(2)
	go s.worker()
	go s.tickLoop()

	eventbus.PublishAsync(eventbus.EventSessionStarted, eventbus.SessionEventData{SessionID: s.id})
	if s.logger != nil {
		s.logger.InfoTag("事件", fmt.Sprintf("会话 %s 流水线启动", s.id))
	}
}

// FeedPCM 送入一帧PCM16音频。必须由单一协程串行调用，
// 帧序即时间序。Stop之后到达的帧直接丢弃。
func (s *Session) FeedPCM(data []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	samples := utils.PCM16ToFloat64(data)
	if len(samples) == 0 {
		return
	}

	frameRMS := utils.RMS(samples)
	closeSamples := s.config.SampleRate * s.config.SilenceCloseMs / 1000

	if frameRMS >= s.config.FrameSilence {
		s.inSpeech = true
		s.silenceSamples = 0
		s.silenceRun = 0
		s.segBuf = append(s.segBuf, samples...)
	} else if s.inSpeech {
		// 段内静音：保留尾部静音直到闭合判定
		s.silenceSamples += len(samples)
		s.segBuf = append(s.segBuf, samples...)
		if s.silenceSamples >= closeSamples {
			s.closeSegment()
		}
	} else {
		// 段外静音：累计静音时长驱动断句器
		s.silenceRun += len(samples)
		if s.silenceRun >= closeSamples {
			s.silenceRun = 0
			s.markSilence()
		}
	}

	if len(s.segBuf) >= int(s.config.MaxSegmentSec*float64(s.config.SampleRate)) {
		s.closeSegment()
	}
}

// EndUtterance 客户端显式结束一轮说话：闭合残段并记一次静音。
// 与FeedPCM同协程调用。
func (s *Session) EndUtterance() {
	if s.inSpeech {
		s.closeSegment()
	}
	s.markSilence()
}

// closeSegment 闭合当前语音段：过门控、声纹归属，然后入识别队列
func (s *Session) closeSegment() {
	segBuf := s.segBuf
	s.segBuf = nil
	s.silenceSamples = 0
	s.inSpeech = false

	durationSec := float64(len(segBuf)) / float64(s.config.SampleRate)
	if durationSec < s.config.MinSegmentSec {
		return
	}

	start := time.Now()
	analysis := s.frontend.Analyze(segBuf, durationSec)
	ok, diag := s.gate.Judge(analysis)

	s.mu.Lock()
	s.stats.SegmentsTotal++
	s.lastGate = diag
	if !ok {
		s.stats.SegmentsRejected++
	}
	s.mu.Unlock()

	if !ok {
		if s.logger != nil {
			s.logger.InfoGate(fmt.Sprintf("会话 %s 拒绝 %.2fs 片段: %s", s.id, durationSec, diag.Reason))
		}
		eventbus.PublishAsync(eventbus.EventGateRejected, eventbus.GateEventData{
			SessionID: s.id,
			Reason:    diag.Reason,
			RMS:       diag.RMS,
			Duration:  durationSec,
		})
		// 非语音等同静音，推动断句器冲刷
		s.markSilence()
		return
	}

	s.mu.Lock()
	speaker := s.diar.Feed(analysis.Feature, durationSec)
	speakerChanged := speaker.Label != s.lastSpeaker && s.lastSpeaker != ""
	s.lastSpeaker = speaker.Label
	multiFirstSeen := speaker.MultiSpeaker && !s.multiSeen
	if multiFirstSeen {
		s.multiSeen = true
	}
	s.mu.Unlock()

	if speakerChanged {
		eventbus.PublishAsync(eventbus.EventSpeakerChanged, eventbus.SpeakerEventData{
			SessionID:    s.id,
			Speaker:      speaker.Label,
			ClusterID:    speaker.ClusterID,
			MultiSpeaker: speaker.MultiSpeaker,
		})
	}
	if multiFirstSeen {
		if s.logger != nil {
			s.logger.InfoDiar(fmt.Sprintf("会话 %s 检测到多说话人", s.id))
		}
		eventbus.PublishAsync(eventbus.EventMultiSpeaker, eventbus.SpeakerEventData{
			SessionID:    s.id,
			Speaker:      speaker.Label,
			ClusterID:    speaker.ClusterID,
			MultiSpeaker: true,
		})
	}

	job := segmentJob{
		pcm:         utils.Float64ToPCM16(segBuf),
		durationSec: durationSec,
		rms:         analysis.Feature.RMS,
		speaker:     speaker,
		quality:     s.estimateQuality(analysis),
		emotion:     estimateEmotion(analysis),
	}

	// 入队和队列关闭共用s.mu定序，避免向已关闭队列发送
	s.mu.Lock()
	if s.jobsClosed {
		s.mu.Unlock()
		return
	}
	select {
	case s.jobs <- job:
		s.mu.Unlock()
	default:
		// 识别积压时丢新保序，绝不阻塞音频读协程
		s.stats.QueueDropped++
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.WarnTag("ASR", fmt.Sprintf("会话 %s 识别队列已满，丢弃 %.2fs 片段", s.id, durationSec))
		}
	}

	if s.logger != nil {
		s.logger.InfoTiming(fmt.Sprintf("会话 %s 段前处理耗时 %dms", s.id, time.Since(start).Milliseconds()))
	}
}

// estimateQuality 从频谱特征估计段级音频质量
func (s *Session) estimateQuality(analysis dsp.Analysis) confidence.AudioQuality {
	feat := analysis.Feature
	// 以帧级静音阈值为噪声基底估算信噪比
	snrDb := utils.RMSToDb(feat.RMS) - utils.RMSToDb(s.config.FrameSilence)
	return confidence.NewAudioQuality(snrDb, feat.VoiceRatio, feat.Flatness)
}

// estimateEmotion 从能量和音节率粗估情绪状态
func estimateEmotion(analysis dsp.Analysis) confidence.EmotionalFeatures {
	feat := analysis.Feature
	energy := utils.Clamp(feat.RMS*8, 0, 1)
	intensity := utils.Clamp(0.6*energy+0.4*analysis.Modulation, 0, 1)

	state := "neutral"
	switch {
	case intensity > 0.7:
		state = "excited"
	case intensity > 0.45:
		state = "happy"
	case intensity < 0.2:
		state = "calm"
	}
	return confidence.NewEmotionalFeatures(state, intensity)
}

// worker 串行消费识别队列，顺序即音频顺序
func (s *Session) worker() {
	defer s.wg.Done()

	for job := range s.jobs {
		s.processJob(job)
	}
}

func (s *Session) processJob(job segmentJob) {
	start := time.Now()
	text, rawConf := s.transcribe(job)

	event, emitted := s.scoreAndAssemble(job, text, rawConf)
	s.notifyTranscript(event, emitted)

	if s.logger != nil {
		s.logger.InfoTiming(fmt.Sprintf("会话 %s 段识别整体耗时 %dms", s.id, time.Since(start).Milliseconds()))
	}
}

// scoreAndAssemble 打分、过阈值、进断句器，返回可能定稿的句子事件
func (s *Session) scoreAndAssemble(job segmentJob, text string, rawConf float64) (eventbus.TranscriptEventData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text != "" {
		s.stats.SegmentsRecognized++
	}

	breakdown := s.calc.Score(text, rawConf, &job.quality, &job.emotion)
	threshold := s.controller.CalculateAdaptiveThreshold(&job.quality, &job.emotion, &breakdown)

	if drop, reason := s.guard.ShouldDrop(text, job.rms, breakdown.FinalConfidence); drop {
		s.stats.TranscriptsDropped++
		eventbus.PublishAsync(eventbus.EventTranscriptDropped, eventbus.GateEventData{
			SessionID: s.id,
			Reason:    reason,
			RMS:       job.rms,
			Duration:  job.durationSec,
		})
		return eventbus.TranscriptEventData{}, false
	}

	if breakdown.FinalConfidence < threshold {
		s.stats.TranscriptsDropped++
		if s.logger != nil {
			s.logger.InfoASR(fmt.Sprintf("会话 %s 置信度 %.2f 低于阈值 %.2f，丢弃: %s",
				s.id, breakdown.FinalConfidence, threshold, text))
		}
		eventbus.PublishAsync(eventbus.EventTranscriptDropped, eventbus.GateEventData{
			SessionID: s.id,
			Reason:    "below_threshold",
			RMS:       job.rms,
			Duration:  job.durationSec,
		})
		return eventbus.TranscriptEventData{}, false
	}

	s.lastCtx = emitContext{
		speaker:    job.speaker,
		emotion:    job.emotion,
		confidence: breakdown.FinalConfidence,
		threshold:  threshold,
		accepted:   breakdown.FinalConfidence >= threshold,
		valid:      true,
	}

	if sentence, done := s.assembler.Feed(text, time.Now()); done {
		return s.emitLocked(sentence), true
	}
	return eventbus.TranscriptEventData{}, false
}

// transcribe 调用识别提供者。失败降级为空文本零置信度，流水线不中断。
func (s *Session) transcribe(job segmentJob) (string, float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	provider, err := s.asrSource.Acquire(ctx)
	if err != nil {
		s.recordASRFailure(fmt.Sprintf("获取识别实例失败: %v", err))
		return "", 0
	}
	defer s.asrSource.Release(provider)

	provider.SetSessionID(s.id)
	result, err := provider.Transcribe(ctx, job.pcm)
	if err != nil {
		s.recordASRFailure(fmt.Sprintf("识别失败: %v", err))
		return "", 0
	}

	return textproc.Clean(result.Text), utils.Clamp(result.Confidence, 0, 1)
}

func (s *Session) recordASRFailure(msg string) {
	s.mu.Lock()
	s.stats.ASRFailures++
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.WarnTag("ASR", fmt.Sprintf("会话 %s %s", s.id, msg))
	}
	eventbus.PublishAsync(eventbus.EventSystemError, eventbus.SystemEventData{
		Level:   "error",
		Message: fmt.Sprintf("会话 %s %s", s.id, msg),
	})
}

// markSilence 向断句器记录一次静音
func (s *Session) markSilence() {
	var event eventbus.TranscriptEventData
	emitted := false

	s.mu.Lock()
	if sentence, done := s.assembler.MarkSilence(); done {
		event = s.emitLocked(sentence)
		emitted = true
	}
	s.mu.Unlock()

	s.notifyTranscript(event, emitted)
}

// tickLoop 周期检查断句超时
func (s *Session) tickLoop() {
	defer s.wg.Done()

	interval := s.config.TickInterval.Std()
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case now := <-ticker.C:
			var event eventbus.TranscriptEventData
			emitted := false
			s.mu.Lock()
			if sentence, done := s.assembler.Tick(now); done {
				event = s.emitLocked(sentence)
				emitted = true
			}
			s.mu.Unlock()
			s.notifyTranscript(event, emitted)
		}
	}
}

// emitLocked 定稿一条句子并返回事件，调用方必须持有s.mu。
// onTranscript回调由调用方释放锁后再触发，慢客户端写不会拖住worker
func (s *Session) emitLocked(sentence string) eventbus.TranscriptEventData {
	s.stats.TranscriptsEmitted++

	ctx := s.lastCtx
	event := eventbus.TranscriptEventData{
		SessionID:    s.id,
		Text:         sentence,
		Speaker:      ctx.speaker.Label,
		Confidence:   ctx.confidence,
		Accepted:     ctx.accepted,
		Threshold:    ctx.threshold,
		Emotion:      ctx.emotion.State,
		EmotionEmoji: utils.GetEmotionEmoji(ctx.emotion.State),
		MultiSpeaker: ctx.speaker.MultiSpeaker,
		Timestamp:    time.Now().UnixMilli(),
	}
	if !ctx.valid {
		event.Speaker = diarizer.LabelUnknown
	}

	eventbus.PublishAsync(eventbus.EventTranscriptFinal, event)
	if s.store != nil {
		entry := history.Entry{
			SessionID:    event.SessionID,
			Text:         event.Text,
			Speaker:      event.Speaker,
			Confidence:   event.Confidence,
			Threshold:    event.Threshold,
			Emotion:      event.Emotion,
			MultiSpeaker: event.MultiSpeaker,
			Timestamp:    event.Timestamp,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.store.Append(ctx, entry); err != nil && s.logger != nil {
				s.logger.WarnTag("历史", fmt.Sprintf("会话 %s 写入历史失败: %v", s.id, err))
			}
		}()
	}

	if s.logger != nil {
		s.logger.InfoTag("断句", fmt.Sprintf("会话 %s [%s] %s (%.2f/%.2f)",
			s.id, event.Speaker, sentence, event.Confidence, event.Threshold))
	}
	return event
}

// notifyTranscript 锁外触发回调
func (s *Session) notifyTranscript(event eventbus.TranscriptEventData, emitted bool) {
	if emitted && s.onTranscript != nil {
		s.onTranscript(event)
	}
}

// Diagnostics 返回诊断快照
func (s *Session) Diagnostics() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Diagnostics{
		SessionID:     s.id,
		Stats:         s.stats,
		LastGate:      s.lastGate,
		Diarizer:      s.diar.Snapshot(),
		Threshold:     s.controller.Snapshot(),
		QueueDepth:    len(s.jobs),
		BufferedChars: s.assembler.Len(),
	}
}

// AddPerformanceFeedback 外部标注回流，驱动阈值的历史调整项
func (s *Session) AddPerformanceFeedback(sample confidence.PerformanceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.AddPerformanceFeedback(sample)
}

// Stop 停止流水线：闭合残段、等worker清空队列、冲刷断句缓冲。
// 与迟到的FeedPCM并发安全，迟到的帧被丢弃；调用后session不可复用。
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// 残段入队后关闭队列，worker清空后退出
	if s.inSpeech {
		s.closeSegment()
	}
	s.mu.Lock()
	s.jobsClosed = true
	s.mu.Unlock()
	close(s.jobs)
	close(s.quit)
	s.wg.Wait()

	var event eventbus.TranscriptEventData
	emitted := false
	s.mu.Lock()
	if sentence, done := s.assembler.Flush(); done {
		event = s.emitLocked(sentence)
		emitted = true
	}
	s.mu.Unlock()
	s.notifyTranscript(event, emitted)

	eventbus.PublishAsync(eventbus.EventSessionClosed, eventbus.SessionEventData{SessionID: s.id})
	if s.onClose != nil {
		s.onClose(s.id)
	}
	if s.logger != nil {
		s.logger.InfoTag("事件", fmt.Sprintf("会话 %s 流水线停止", s.id))
	}
}
