package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoTemplate is returned when a notice type has no registered template
var ErrNoTemplate = errors.New("no template registered for notice type")

// NotificationManager routes notices to notifiers using registered templates.
type NotificationManager struct {
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
	mu                   sync.RWMutex
}

// NewNotificationManager creates a manager and applies opts.
func NewNotificationManager(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template for a notice on a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid input: template for %s needs a text or html body", noticeType)
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers the notice on every system that has both a template and a
// notifier. It fails if no system could be attempted or any delivery fails.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, notification NotificationData) error {
	nm.mu.RLock()
	templates := nm.notificationRegistry[noticeType]
	type delivery struct {
		system   NotificationSystem
		notifier Notifier
		template NoticeTemplate
	}
	var deliveries []delivery
	for system, tmpl := range templates {
		if notifier, ok := nm.notifiers[system]; ok {
			deliveries = append(deliveries, delivery{system, notifier, tmpl})
		}
	}
	nm.mu.RUnlock()

	if len(deliveries) == 0 {
		return fmt.Errorf("%w: %s", ErrNoTemplate, noticeType)
	}

	var errs []error
	for _, d := range deliveries {
		if err := d.notifier.Send(ctx, noticeType, notification, d.template); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.system, err))
		}
	}
	return errors.Join(errs...)
}
