// Package email sends transactional mail through SES or, in development, the log.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the structured log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
	mu     sync.Mutex
	// sent keeps the last 50 messages for inspection.
	sent []Message
}

// NewLogSender returns a sender that logs to l (slog.Default when nil).
func NewLogSender(l *slog.Logger) *LogSender {
	if l == nil {
		l = slog.Default()
	}
	return &LogSender{logger: l}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email (log driver)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	if len(s.sent) > 50 {
		s.sent = s.sent[len(s.sent)-50:]
	}
	s.mu.Unlock()
	return nil
}

// Sent returns the messages logged so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

// PasswordResetMessage builds the reset email pointing at the web app's reset page.
func PasswordResetMessage(to, baseURL, token string) Message {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(baseURL, "/"), url.QueryEscape(token))
	return Message{
		To:      to,
		Subject: "Reset your Meeple Hall password",
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html><body style="font-family: sans-serif; line-height: 1.6;">
<h1>Reset your password</h1>
<p>Someone asked to reset the password for your Meeple Hall account. The link expires in 1 hour.</p>
<p><a href="%s">Reset password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>
</body></html>`, resetURL),
		Text: fmt.Sprintf(`Reset your Meeple Hall password

Someone asked to reset the password for your Meeple Hall account. The link expires in 1 hour.

%s

If you did not ask for this, you can ignore this email.
`, resetURL),
	}
}

// WelcomeMessage greets a newly registered member.
func WelcomeMessage(to, name, baseURL string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to Meeple Hall",
		HTML:    fmt.Sprintf(`<p>Hi %s,</p><p>Your account is ready. Find your next game night at <a href="%s">Meeple Hall</a>.</p>`, name, baseURL),
		Text:    fmt.Sprintf("Hi %s,\n\nYour account is ready. Find your next game night at %s.\n", name, baseURL),
	}
}
