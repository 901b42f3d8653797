package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTP struct {
	host     string
	port     string
	from     string
	password string
}

func NewSMTP(host, port, from, password string) *SMTP {
	return &SMTP{host: host, port: port, from: from, password: password}
}

func (s *SMTP) Send(_ context.Context, m Message) error {
	auth := smtp.PlainAuth("", s.from, s.password, s.host)
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{m.To}, Build(s.from, m)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

// Build renders a plain-text RFC 5322 message.
func Build(from string, m Message) []byte {
	var b strings.Builder
	b.WriteString("Subject: " + headerSafe(m.Subject) + "\r\n")
	b.WriteString("From: " + headerSafe(from) + "\r\n")
	b.WriteString("To: " + headerSafe(m.To) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// Log writes messages to the logger instead of sending them. Used when SMTP
// is not configured.
type Log struct {
	L *zap.Logger
}

func (l Log) Send(_ context.Context, m Message) error {
	l.L.Info("email not sent, smtp disabled",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
	return nil
}
