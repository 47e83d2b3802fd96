package notice

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tendant/simple-auth/pkg/notification"
)

const (
	VerificationPath  = "/auth/new-verification"
	PasswordResetPath = "/auth/new-password"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) (string, error) {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Failed to read template file", "filename", filename, "error", err)
		return "", err
	}
	return string(content), nil
}

// RegisterTemplates registers the embedded email templates for the three
// auth notices on nm.
func RegisterTemplates(nm *notification.NotificationManager) error {
	notices := []struct {
		noticeType notification.NoticeType
		subject    string
		file       string
	}{
		{notification.VerificationNotice, "Confirm your email", "verification"},
		{notification.PasswordResetNotice, "Reset your password", "password_reset"},
		{notification.TwoFactorCodeNotice, "2FA Code", "two_factor_code"},
	}

	for _, n := range notices {
		text, err := loadTemplate("templates/email/" + n.file + ".txt")
		if err != nil {
			return err
		}
		html, err := loadTemplate("templates/email/" + n.file + ".html")
		if err != nil {
			return err
		}
		err = nm.RegisterNotification(n.noticeType, notification.EmailSystem, notification.NoticeTemplate{
			Subject: n.subject,
			Text:    text,
			Html:    html,
		})
		if err != nil {
			slog.Error("Failed to register notification", "notice", n.noticeType, "error", err)
			return err
		}
	}
	return nil
}

// Sender is the part of NotificationManager the Service needs.
type Sender interface {
	Send(ctx context.Context, noticeType notification.NoticeType, data notification.NotificationData) error
}

// Service turns auth events into notices. Links are built against baseURL,
// the public origin of the site serving the verification and reset pages.
type Service struct {
	sender  Sender
	baseURL string
}

// NewService creates a notice service. baseURL must be an absolute URL.
func NewService(sender Sender, baseURL string) (*Service, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	return &Service{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// SendVerification mails the email verification link carrying token.
func (s *Service) SendVerification(ctx context.Context, email, token string) error {
	return s.sender.Send(ctx, notification.VerificationNotice, notification.NotificationData{
		To:   email,
		Data: map[string]string{"Link": s.link(VerificationPath, token)},
	})
}

// SendPasswordReset mails the password reset link carrying token.
func (s *Service) SendPasswordReset(ctx context.Context, email, token string) error {
	return s.sender.Send(ctx, notification.PasswordResetNotice, notification.NotificationData{
		To:   email,
		Data: map[string]string{"Link": s.link(PasswordResetPath, token)},
	})
}

// SendTwoFactorCode mails a six-digit login code.
func (s *Service) SendTwoFactorCode(ctx context.Context, email, code string) error {
	return s.sender.Send(ctx, notification.TwoFactorCodeNotice, notification.NotificationData{
		To:   email,
		Data: map[string]string{"Code": code},
	})
}

func (s *Service) link(path, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}
