// Package notification delivers templated notices over pluggable channels.
//
// A NotificationManager holds one Notifier per NotificationSystem and one
// NoticeTemplate per (NoticeType, NotificationSystem) pair. Send renders the
// registered template for each system and hands it to that system's notifier.
//
//	nm, err := notification.NewNotificationManager(notification.WithSMTP(notification.SMTPConfig{
//	    Host: "smtp.example.com",
//	    Port: 587,
//	    TLS:  true,
//	    From: "noreply@example.com",
//	}))
//	if err != nil {
//	    return err
//	}
//	err = nm.RegisterNotification(notification.VerificationNotice, notification.EmailSystem, notification.NoticeTemplate{
//	    Subject: "Confirm your email",
//	    Text:    "Click {{.Link}} to confirm your email.",
//	})
//	err = nm.Send(ctx, notification.VerificationNotice, notification.NotificationData{
//	    To:   "user@example.com",
//	    Data: map[string]string{"Link": link},
//	})
//
// MockNotifier records deliveries in memory and is meant for tests.
package notification
