package daemon

import (
	"errors"
	"sync"
)

type notification struct {
	Title   string
	Message string
}

type mockNotifier struct {
	mu            sync.Mutex
	notifications []notification
	fail          bool
	notified      chan struct{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{notified: make(chan struct{}, 64)}
}

func (m *mockNotifier) Notify(title, message string) error {
	m.mu.Lock()
	m.notifications = append(m.notifications, notification{Title: title, Message: message})
	m.mu.Unlock()
	m.notified <- struct{}{}
	if m.fail {
		return errors.New("no notification service")
	}
	return nil
}

func (m *mockNotifier) NotifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *mockNotifier) All() []notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification(nil), m.notifications...)
}
