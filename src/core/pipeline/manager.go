package pipeline

import (
	"sort"
	"sync"
)

// Manager 活跃会话注册表。传输层创建会话时登记，
// 会话停止时注销，诊断API据此查询运行中的流水线。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager 创建会话注册表
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Register 登记会话
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
}

// Unregister 注销会话
func (m *Manager) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Get 查找活跃会话
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// IDs 返回全部活跃会话ID
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count 活跃会话数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
