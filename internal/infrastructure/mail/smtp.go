// Package mail delivers notifications over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/99minutos/auth-system/internal/core/domain"
)

const (
	defaultBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// Config mirrors the SMTP_* settings.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	FromName   string
	MaxRetries uint64
	// Backoff is the first retry delay; it doubles up to 10s.
	Backoff time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends one notification per call and retries transient failures
// with exponential backoff. 5xx replies are permanent and not retried.
type SMTPSender struct {
	cfg  Config
	auth smtp.Auth
	send sendFunc
}

func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPSender{cfg: cfg, auth: auth, send: smtp.SendMail}, nil
}

func (s *SMTPSender) Send(ctx context.Context, n domain.Notification) error {
	if n.To == "" {
		return errors.New("mail: recipient is required")
	}
	msg := s.compose(n)
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries,
		retry.WithCappedDuration(maxBackoff, retry.NewExponential(s.cfg.Backoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.send(addr, s.auth, s.cfg.User, []string{n.To}, msg)
		if err == nil {
			return nil
		}
		if permanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(n domain.Notification) []byte {
	from := s.cfg.User
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.User)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", n.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.HTML)
	return b.Bytes()
}

func permanent(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}
