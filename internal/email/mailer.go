// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPMailer implements the auth service's Mailer hook.
type SMTPMailer struct {
	dialer    *gomail.Dialer
	from      string
	publicURL string
}

func NewSMTPMailer(host string, port int, username, password, from, publicURL string) *SMTPMailer {
	return &SMTPMailer{
		dialer:    gomail.NewDialer(host, port, username, password),
		from:      from,
		publicURL: publicURL,
	}
}

// SendVerification mails the verification link. The token rides in the
// URL path, matching the verify endpoint.
func (m *SMTPMailer) SendVerification(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/api/auth/verify/%s", m.publicURL, token)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Verify your account")
	msg.SetBody("text/html", fmt.Sprintf(
		`<p>Welcome! Confirm your address by opening the link below.</p><p><a href=%q>%s</a></p><p>The link expires in 24 hours. If you did not register, ignore this email.</p>`,
		link, link,
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}
