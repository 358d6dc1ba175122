package eventbus

// 事件类型定义
const (
	// 转写相关事件
	EventTranscriptFinal   = "transcript:final"
	EventTranscriptDropped = "transcript:dropped"

	// 门控相关事件
	EventGateRejected = "gate:rejected"

	// 声纹相关事件
	EventSpeakerChanged = "speaker:changed"
	EventMultiSpeaker   = "speaker:multi"

	// 会话相关事件
	EventSessionStarted = "session:started"
	EventSessionClosed  = "session:closed"

	// 系统事件
	EventSystemError = "system:error"
	EventSystemInfo  = "system:info"
)

// TranscriptEventData 定稿句子事件
type TranscriptEventData struct {
	SessionID    string  `json:"session_id"`
	Text         string  `json:"text"`
	Speaker      string  `json:"speaker"`
	Confidence   float64 `json:"confidence"`
	Accepted     bool    `json:"accepted"`
	Threshold    float64 `json:"threshold"`
	Emotion      string  `json:"emotion,omitempty"`
	EmotionEmoji string  `json:"emotion_emoji,omitempty"`
	MultiSpeaker bool    `json:"multi_speaker"`
	Timestamp    int64   `json:"timestamp"`
}

// GateEventData 门控拒绝事件
type GateEventData struct {
	SessionID string  `json:"session_id"`
	Reason    string  `json:"reason"`
	RMS       float64 `json:"rms"`
	Duration  float64 `json:"duration"`
}

// SpeakerEventData 说话人变化事件
type SpeakerEventData struct {
	SessionID    string `json:"session_id"`
	Speaker      string `json:"speaker"`
	ClusterID    int    `json:"cluster_id"`
	MultiSpeaker bool   `json:"multi_speaker"`
}

// SessionEventData 会话生命周期事件
type SessionEventData struct {
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// SystemEventData 系统事件
type SystemEventData struct {
	Level   string      `json:"level"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
