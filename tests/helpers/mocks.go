// Package helpers 提供 mock 实现
package helpers

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockNotifier 通知分发 mock（testify 断言用）
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(userID int64, kind, title, message string, relatedID int64) {
	m.Called(userID, kind, title, message, relatedID)
}

// RecordingNotifier 记录型通知桩，只收集事件不做断言
type RecordingNotifier struct {
	mu     sync.Mutex
	Events []NotifyEvent
}

// NotifyEvent 一次通知调用
type NotifyEvent struct {
	UserID    int64
	Kind      string
	Title     string
	Message   string
	RelatedID int64
}

func (r *RecordingNotifier) Notify(userID int64, kind, title, message string, relatedID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, NotifyEvent{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
	})
}

// KindCount 统计某类通知次数
func (r *RecordingNotifier) KindCount(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
