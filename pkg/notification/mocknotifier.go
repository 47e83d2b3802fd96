package notification

import (
	"context"
	"sync"
)

// SentNotification is one delivery recorded by MockNotifier
type SentNotification struct {
	Type     NoticeType
	Data     NotificationData
	Template NoticeTemplate
}

// MockNotifier records deliveries instead of sending them. Set Err to make
// every Send fail.
type MockNotifier struct {
	SentNotifications []SentNotification
	Err               error
	mu                sync.Mutex
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, SentNotification{
		Type:     noticeType,
		Data:     notification,
		Template: template,
	})
	return nil
}

// Sent returns a copy of the recorded deliveries of noticeType.
func (m *MockNotifier) Sent(noticeType NoticeType) []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentNotification
	for _, n := range m.SentNotifications {
		if n.Type == noticeType {
			out = append(out, n)
		}
	}
	return out
}
