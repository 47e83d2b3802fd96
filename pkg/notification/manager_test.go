package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotificationManager(t *testing.T) {
	nm, err := NewNotificationManager()
	require.NoError(t, err)
	assert.NotNil(t, nm.notifiers)
	assert.NotNil(t, nm.notificationRegistry)

	mock := NewMockNotifier()
	nm, err = NewNotificationManager(WithNotifier(EmailSystem, mock))
	require.NoError(t, err)
	assert.Same(t, mock, nm.notifiers[EmailSystem])
}

func TestRegisterNotification(t *testing.T) {
	nm, err := NewNotificationManager()
	require.NoError(t, err)

	tests := []struct {
		name      string
		notice    NoticeType
		system    NotificationSystem
		template  NoticeTemplate
		wantError bool
	}{
		{"text and html", VerificationNotice, EmailSystem, NoticeTemplate{Subject: "s", Text: "t", Html: "<p>h</p>"}, false},
		{"text only", PasswordResetNotice, EmailSystem, NoticeTemplate{Subject: "s", Text: "t"}, false},
		{"html only", TwoFactorCodeNotice, EmailSystem, NoticeTemplate{Subject: "s", Html: "<p>h</p>"}, false},
		{"empty notice type", "", EmailSystem, NoticeTemplate{Text: "t"}, true},
		{"empty system", VerificationNotice, "", NoticeTemplate{Text: "t"}, true},
		{"no body", VerificationNotice, EmailSystem, NoticeTemplate{Subject: "s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.notice, tt.system, tt.template)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.template, nm.notificationRegistry[tt.notice][tt.system])
		})
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversWithTemplate", func(t *testing.T) {
		mock := NewMockNotifier()
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, mock))
		require.NoError(t, err)
		tmpl := NoticeTemplate{Subject: "Your code", Text: "Code: {{.Code}}"}
		require.NoError(t, nm.RegisterNotification(TwoFactorCodeNotice, EmailSystem, tmpl))

		data := NotificationData{To: "u@x.com", Data: map[string]string{"Code": "123456"}}
		require.NoError(t, nm.Send(ctx, TwoFactorCodeNotice, data))

		sent := mock.Sent(TwoFactorCodeNotice)
		require.Len(t, sent, 1)
		assert.Equal(t, "u@x.com", sent[0].Data.To)
		assert.Equal(t, tmpl, sent[0].Template)
		assert.Empty(t, mock.Sent(VerificationNotice))
	})

	t.Run("UnregisteredNotice", func(t *testing.T) {
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, NewMockNotifier()))
		require.NoError(t, err)

		err = nm.Send(ctx, PasswordResetNotice, NotificationData{To: "u@x.com"})
		assert.ErrorIs(t, err, ErrNoTemplate)
	})

	t.Run("TemplateWithoutNotifier", func(t *testing.T) {
		nm, err := NewNotificationManager()
		require.NoError(t, err)
		require.NoError(t, nm.RegisterNotification(PasswordResetNotice, EmailSystem, NoticeTemplate{Text: "t"}))

		err = nm.Send(ctx, PasswordResetNotice, NotificationData{To: "u@x.com"})
		assert.ErrorIs(t, err, ErrNoTemplate)
	})

	t.Run("NotifierFailure", func(t *testing.T) {
		mock := NewMockNotifier()
		mock.Err = errors.New("smtp down")
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, mock))
		require.NoError(t, err)
		require.NoError(t, nm.RegisterNotification(VerificationNotice, EmailSystem, NoticeTemplate{Text: "t"}))

		err = nm.Send(ctx, VerificationNotice, NotificationData{To: "u@x.com"})
		assert.ErrorIs(t, err, mock.Err)
	})
}

func TestRenderTemplates(t *testing.T) {
	out, err := renderText("Hi {{.Name}}", map[string]string{"Name": "Ada & co"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada & co", out)

	out, err = renderHTML(`<a href="{{.Link}}">go</a>`, map[string]string{"Link": "https://x.com/a?token=1&b=2"})
	require.NoError(t, err)
	assert.Contains(t, out, "token=1&amp;b=2")

	_, err = renderText("{{.Missing}}", map[string]string{})
	assert.Error(t, err)
}
