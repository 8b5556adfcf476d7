package utils

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
)

// Email is a rendered transactional message.
type Email struct {
	To       string
	Subject  string
	HTML     string
	Template string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// Mail is the process-wide mailer.
var Mail Mailer

// SMTPMailer delivers through an SMTP relay (Resend by default).
type SMTPMailer struct {
	sender string
	dialer *gomail.Dialer
}

func NewSMTPMailer(settings config.EmailSettings) *SMTPMailer {
	return &SMTPMailer{
		sender: settings.Sender,
		dialer: gomail.NewDialer(settings.Host, settings.Port, settings.User, settings.Pass),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/html", email.HTML)

	err := m.dialer.DialAndSend(msg)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	EmailsSent.WithLabelValues(email.Template, outcome).Inc()
	if err != nil {
		return fmt.Errorf("failed to send %s email to %s: %w", email.Template, email.To, err)
	}
	return nil
}

func actionEmail(to, template, subject, greeting, body, label, link string) Email {
	return Email{
		To:       to,
		Subject:  subject,
		Template: template,
		HTML: fmt.Sprintf(
			`<p>%s</p><p>%s</p><p><a href="%s">%s</a></p><p>If you did not request this, you can ignore this email.</p>`,
			html.EscapeString(greeting), html.EscapeString(body), html.EscapeString(link), html.EscapeString(label),
		),
	}
}

func VerificationEmail(to, name, link string) Email {
	return actionEmail(to, "verify-email", "Confirm your email address",
		"Hi "+name+",",
		"Please confirm your email address to finish setting up your Im-Vestor account. The link is valid for 24 hours.",
		"Confirm email", link)
}

func AccountDeletionEmail(to, name, link string) Email {
	return actionEmail(to, "delete-account", "Confirm your account deletion",
		"Hi "+name+",",
		"We received a request to delete your Im-Vestor account. This cannot be undone. The link is valid for 1 hour.",
		"Delete my account", link)
}
