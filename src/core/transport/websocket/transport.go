package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"zhibo-copilot-go/src/configs"
	"zhibo-copilot-go/src/core/transport"
	"zhibo-copilot-go/src/core/utils"
)

// WebSocketTransport WebSocket传输层实现
type WebSocketTransport struct {
	config            *configs.Config
	server            *http.Server
	logger            *utils.Logger
	sessionFactory    transport.SessionFactory
	activeConnections sync.Map
	upgrader          *websocket.Upgrader
}

// NewWebSocketTransport 创建新的WebSocket传输层
func NewWebSocketTransport(config *configs.Config, logger *utils.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		config: config,
		logger: logger,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 推流端来源不固定
			},
		},
	}
}

// SetSessionFactory 设置会话流水线工厂
func (t *WebSocketTransport) SetSessionFactory(factory transport.SessionFactory) {
	t.sessionFactory = factory
}

// Start 启动WebSocket传输层
func (t *WebSocketTransport) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", t.config.Transport.WebSocket.IP, t.config.Transport.WebSocket.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleWebSocket)

	t.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	t.logger.InfoTag("WebSocket", fmt.Sprintf("ws://%s", addr))

	go func() {
		<-ctx.Done()
		t.Stop()
	}()

	if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("WebSocket传输层启动失败: %v", err)
	}
	return nil
}

// Stop 停止传输层并关闭全部活动连接
func (t *WebSocketTransport) Stop() error {
	if t.server == nil {
		return nil
	}
	t.logger.InfoTag("WebSocket", "传输层关闭中")

	t.activeConnections.Range(func(key, value interface{}) bool {
		if conn, ok := value.(*Connection); ok {
			conn.Close()
		}
		t.activeConnections.Delete(key)
		return true
	})
	return t.server.Close()
}

// GetType 获取传输类型
func (t *WebSocketTransport) GetType() string {
	return "websocket"
}

// GetActiveConnectionCount 获取活跃连接数
func (t *WebSocketTransport) GetActiveConnectionCount() int {
	count := 0
	t.activeConnections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// handleWebSocket 处理连接升级和会话生命周期
func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.ErrorTag("WebSocket", fmt.Sprintf("升级失败: %v", err))
		return
	}

	if t.sessionFactory == nil {
		t.logger.ErrorTag("WebSocket", "会话工厂尚未配置")
		conn.Close()
		return
	}

	sessionID := r.URL.Query().Get("session-id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	session, err := t.sessionFactory(sessionID)
	if err != nil {
		t.logger.ErrorTag("WebSocket", fmt.Sprintf("创建会话 %s 失败: %v", sessionID, err))
		conn.Close()
		return
	}

	c, err := NewConnection(sessionID, conn, session, t.config.Transport.WebSocket.AudioFormat, t.logger)
	if err != nil {
		t.logger.ErrorTag("WebSocket", fmt.Sprintf("初始化连接 %s 失败: %v", sessionID, err))
		session.Stop()
		conn.Close()
		return
	}

	t.activeConnections.Store(sessionID, c)
	t.logger.InfoTag("WebSocket", fmt.Sprintf("连接建立 %s", sessionID))

	go func() {
		defer func() {
			t.activeConnections.Delete(sessionID)
			c.Close()
			t.logger.InfoTag("WebSocket", fmt.Sprintf("连接关闭 %s", sessionID))
		}()
		c.Handle()
	}()
}
