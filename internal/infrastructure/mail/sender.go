package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go-notification-hub/internal/infrastructure/logger"
)

const (
	lineBreak   = "\r\n"
	dialTimeout = 30 * time.Second
)

// Message is one plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender sends through an SMTP relay, upgrading with STARTTLS when the
// server offers it.
type SMTPSender struct {
	config SMTPConfig
}

func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.config.Host == "" {
		return errors.New("smtp host cannot be empty")
	}

	address := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server %s: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(buildMessage(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

func buildMessage(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + lineBreak)
	b.WriteString("To: " + msg.To + lineBreak)
	b.WriteString("Subject: " + msg.Subject + lineBreak)
	b.WriteString("MIME-Version: 1.0" + lineBreak)
	b.WriteString("Content-Type: text/plain; charset=UTF-8" + lineBreak)
	b.WriteString(lineBreak)
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// LogSender only logs messages. Used when no SMTP host is configured.
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(logger logger.Logger) *LogSender {
	return &LogSender{logger: logger.WithField("component", "mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.WithFields(logger.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Mail delivery skipped, no SMTP host configured")
	return nil
}
