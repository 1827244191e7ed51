// Package memstore 提供进程内会话存储实现
package memstore

import (
	"context"
	"sync"
)

// SessionStore 互斥锁保护的内存会话存储
// 跨故事并发安全；进程重启后状态丢失，
// 依靠 story.ImageSessionID 的校验路径恢复
type SessionStore struct {
	mu          sync.RWMutex
	tokens      map[string]string
	initialized map[string]bool
}

// NewSessionStore 创建内存会话存储
func NewSessionStore() *SessionStore {
	return &SessionStore{
		tokens:      make(map[string]string),
		initialized: make(map[string]bool),
	}
}

// Get 获取故事当前会话令牌
func (s *SessionStore) Get(_ context.Context, storyID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[storyID]
	return token, ok && token != "", nil
}

// Set 写入故事会话令牌
func (s *SessionStore) Set(_ context.Context, storyID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[storyID] = token
	return nil
}

// Clear 清除故事的令牌和初始化标记
func (s *SessionStore) Clear(_ context.Context, storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, storyID)
	delete(s.initialized, storyID)
	return nil
}

// IsInitialized 故事视觉上下文是否已建立
func (s *SessionStore) IsInitialized(_ context.Context, storyID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.initialized[storyID], nil
}

// MarkInitialized 标记故事视觉上下文已建立
func (s *SessionStore) MarkInitialized(_ context.Context, storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized[storyID] = true
	return nil
}
