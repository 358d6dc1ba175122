package history

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu         sync.RWMutex
	sessions   map[string][]Entry
	maxEntries int
}

// NewMemory 创建内存历史存储，单机部署的默认选择
func NewMemory(cfg Config) Store {
	return &memoryStore{
		sessions:   make(map[string][]Entry),
		maxEntries: cfg.MaxEntries,
	}
}

func (s *memoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.sessions[entry.SessionID], entry)
	if len(entries) > s.maxEntries {
		entries = entries[len(entries)-s.maxEntries:]
	}
	s.sessions[entry.SessionID] = entries
	return nil
}

func (s *memoryStore) Recent(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sessions[sessionID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]Entry, limit)
	copy(out, entries[len(entries)-limit:])
	return out, nil
}

func (s *memoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
