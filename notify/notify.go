// Package notify delivers the outbound email and SMS messages the auth core
// sends. The core treats every send as fire-and-forget: failures are logged,
// never surfaced to the user flow that triggered them.
package notify

import (
	"context"
	"fmt"
	"net/url"
)

// EmailSender delivers one email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMSSender delivers one SMS message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Notifier composes the concrete senders into the messages the core needs.
// Nil senders turn the corresponding methods into no-ops, which keeps tests
// and SMS-less deployments simple.
type Notifier struct {
	email   EmailSender
	sms     SMSSender
	baseURL string
}

// New returns a Notifier. baseURL is the public web root used to build
// verification and reset links, e.g. "https://app.servicely.com".
func New(email EmailSender, sms SMSSender, baseURL string) *Notifier {
	return &Notifier{
		email:   email,
		sms:     sms,
		baseURL: baseURL,
	}
}

// VerificationEmail sends the post-registration email verification link.
func (n *Notifier) VerificationEmail(ctx context.Context, to, token string) error {
	if n == nil || n.email == nil {
		return nil
	}
	link := n.link("/verify-email", token)
	html := fmt.Sprintf(`<p>Welcome to Servicely!</p><p>Please confirm your email address: <a href="%s">Verify email</a></p>`, link)
	text := "Welcome to Servicely!\n\nPlease confirm your email address: " + link
	return n.email.Send(ctx, to, "Verify your email address", html, text)
}

// PasswordResetEmail sends the reset link for a requested password reset.
func (n *Notifier) PasswordResetEmail(ctx context.Context, to, token string) error {
	if n == nil || n.email == nil {
		return nil
	}
	link := n.link("/reset-password", token)
	html := fmt.Sprintf(`<p>A password reset was requested for your account.</p><p><a href="%s">Reset password</a></p><p>If you did not request this, you can ignore this email.</p>`, link)
	text := "A password reset was requested for your account.\n\nReset it here: " + link +
		"\n\nIf you did not request this, you can ignore this email."
	return n.email.Send(ctx, to, "Reset your password", html, text)
}

// PasswordChangedEmail notifies the user that their password changed.
func (n *Notifier) PasswordChangedEmail(ctx context.Context, to string) error {
	if n == nil || n.email == nil {
		return nil
	}
	const html = `<p>Your password was changed. All other sessions have been signed out.</p><p>If this wasn't you, reset your password immediately.</p>`
	const text = "Your password was changed. All other sessions have been signed out.\n\nIf this wasn't you, reset your password immediately."
	return n.email.Send(ctx, to, "Your password was changed", html, text)
}

// PhoneCode sends a phone verification code by SMS.
func (n *Notifier) PhoneCode(ctx context.Context, phone, code string) error {
	if n == nil || n.sms == nil {
		return nil
	}
	return n.sms.Send(ctx, phone, "Your Servicely verification code is "+code)
}

func (n *Notifier) link(path, token string) string {
	return n.baseURL + path + "?token=" + url.QueryEscape(token)
}
