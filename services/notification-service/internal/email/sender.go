package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
	ProviderID() string
}

// SMTPSender delivers plain-text mail. Auth is skipped when no username is
// configured (Mailpit and most local relays).
type SMTPSender struct {
	addr string
	host string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	host := strings.TrimSpace(cfg.Host)
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = "no-reply@homebook.local"
	}
	s := &SMTPSender{
		addr: host + ":" + strings.TrimSpace(cfg.Port),
		host: host,
		from: from,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return s
}

func (s *SMTPSender) ProviderID() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, to, subject, body, time.Now())
	if err := s.send(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// buildMessage renders a minimal RFC 5322 message. Header values are
// stripped of CR/LF so a subject cannot inject headers.
func buildMessage(from, to, subject, body string, at time.Time) string {
	clean := strings.NewReplacer("\r", "", "\n", " ")
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		clean.Replace(from),
		clean.Replace(to),
		clean.Replace(subject),
		at.UTC().Format(time.RFC1123Z),
		body,
	)
}
