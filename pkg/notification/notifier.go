package notification

import "context"

// NotificationSystem represents a delivery channel (e.g., email).
type NotificationSystem string

// NoticeType identifies what a notification is about.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	VerificationNotice  NoticeType = "email_verification"
	PasswordResetNotice NoticeType = "password_reset"
	TwoFactorCodeNotice NoticeType = "two_factor_code"
)

type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address)
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: plain body when no template text is registered
	Data    map[string]string // Template variables
}

// NoticeTemplate holds the subject and bodies for one notice on one system.
// Text and Html are Go templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers a rendered notice over one system.
type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
