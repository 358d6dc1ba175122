package websocket

import (
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"zhibo-copilot-go/src/core/confidence"
	"zhibo-copilot-go/src/core/eventbus"
	"zhibo-copilot-go/src/core/pipeline"
	"zhibo-copilot-go/src/core/utils"
)

// controlMessage 客户端控制消息
type controlMessage struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`

	// feedback消息的标注回流字段
	Accuracy          float64 `json:"accuracy,omitempty"`
	Precision         float64 `json:"precision,omitempty"`
	Recall            float64 `json:"recall,omitempty"`
	F1                float64 `json:"f1,omitempty"`
	FalsePositiveRate float64 `json:"false_positive_rate,omitempty"`
	FalseNegativeRate float64 `json:"false_negative_rate,omitempty"`
	SampleCount       int     `json:"sample_count,omitempty"`
}

// Connection 单个推流连接。二进制帧是音频，文本帧是控制消息，
// 转写事件以JSON文本帧下发。
type Connection struct {
	sessionID string
	conn      *websocket.Conn
	session   *pipeline.Session
	format    string
	decoder   *utils.OpusDecoder
	logger    *utils.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	stopOnce  sync.Once
	listening bool
}

// NewConnection 创建连接处理器
func NewConnection(sessionID string, conn *websocket.Conn, session *pipeline.Session,
	audioFormat string, logger *utils.Logger) (*Connection, error) {
	c := &Connection{
		sessionID: sessionID,
		conn:      conn,
		session:   session,
		format:    audioFormat,
		logger:    logger,
		listening: true,
	}

	if audioFormat == "opus" {
		decoder, err := utils.NewOpusDecoder(nil)
		if err != nil {
			return nil, fmt.Errorf("创建opus解码器失败: %w", err)
		}
		c.decoder = decoder
	}

	session.SetTranscriptHandler(c.sendTranscript)
	session.Start()
	return c, nil
}

// Handle 连接读循环，退出即连接结束。
// 流水线停止在读循环退出后执行，保证没有帧再进入session。
func (c *Connection) Handle() {
	defer c.shutdown()
	defer c.Close()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.WarnTag("WebSocket", fmt.Sprintf("连接 %s 异常断开: %v", c.sessionID, err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.handleAudio(data)
		case websocket.TextMessage:
			c.handleControl(data)
		}
	}
}

// handleAudio 处理一帧音频
func (c *Connection) handleAudio(data []byte) {
	if !c.listening {
		return
	}

	pcm := data
	if c.decoder != nil {
		decoded, err := c.decoder.Decode(data)
		if err != nil {
			c.logger.WarnTag("WebSocket", fmt.Sprintf("连接 %s opus解码失败: %v", c.sessionID, err))
			return
		}
		pcm = decoded
	}
	if len(pcm) > 0 {
		c.session.FeedPCM(pcm)
	}
}

// handleControl 处理控制消息
func (c *Connection) handleControl(data []byte) {
	var msg controlMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		c.logger.WarnTag("WebSocket", fmt.Sprintf("连接 %s 非法控制消息: %v", c.sessionID, err))
		return
	}

	switch msg.Type {
	case "hello":
		c.writeJSON(map[string]interface{}{
			"type":         "hello",
			"session_id":   c.sessionID,
			"transport":    "websocket",
			"audio_format": c.format,
		})
	case "listen":
		switch msg.State {
		case "start":
			c.listening = true
		case "stop":
			c.listening = false
			c.session.EndUtterance()
		}
	case "feedback":
		c.session.AddPerformanceFeedback(confidence.PerformanceSample{
			Accuracy:          msg.Accuracy,
			Precision:         msg.Precision,
			Recall:            msg.Recall,
			F1:                msg.F1,
			FalsePositiveRate: msg.FalsePositiveRate,
			FalseNegativeRate: msg.FalseNegativeRate,
			SampleCount:       msg.SampleCount,
		})
	case "diagnostics":
		c.writeJSON(map[string]interface{}{
			"type": "diagnostics",
			"data": c.session.Diagnostics(),
		})
	default:
		c.logger.WarnTag("WebSocket", fmt.Sprintf("连接 %s 未知消息类型: %s", c.sessionID, msg.Type))
	}
}

// sendTranscript 下发定稿句子
func (c *Connection) sendTranscript(event eventbus.TranscriptEventData) {
	c.writeJSON(map[string]interface{}{
		"type":          "transcript",
		"session_id":    event.SessionID,
		"text":          event.Text,
		"speaker":       event.Speaker,
		"confidence":    event.Confidence,
		"accepted":      event.Accepted,
		"threshold":     event.Threshold,
		"emotion":       event.Emotion,
		"emotion_emoji": event.EmotionEmoji,
		"multi_speaker": event.MultiSpeaker,
		"timestamp":     event.Timestamp,
	})
}

func (c *Connection) writeJSON(payload interface{}) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		c.logger.ErrorTag("WebSocket", fmt.Sprintf("连接 %s 序列化失败: %v", c.sessionID, err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.WarnTag("WebSocket", fmt.Sprintf("连接 %s 下发失败: %v", c.sessionID, err))
	}
}

// Close 关闭底层连接，促使读循环退出，重复调用安全。
// 流水线的停止由读循环的收尾完成，不在这里做。
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// shutdown 读循环退出后停止会话流水线并释放解码器
func (c *Connection) shutdown() {
	c.stopOnce.Do(func() {
		c.session.Stop()
		if c.decoder != nil {
			_ = c.decoder.Close()
		}
	})
}
