package mail

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

type recordingSend struct {
	calls int
	errs  []error
	addr  string
	from  string
	to    []string
	msg   string
}

func (r *recordingSend) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	r.calls++
	r.addr, r.from, r.to, r.msg = addr, from, to, string(msg)
	if len(r.errs) >= r.calls {
		return r.errs[r.calls-1]
	}
	return nil
}

func newTestSender(t *testing.T, rec *recordingSend, retries uint64) *SMTPSender {
	t.Helper()
	s, err := NewSMTPSender(Config{
		Host:       "smtp.example.com",
		User:       "noreply@example.com",
		Password:   "pw",
		FromName:   "Auth System",
		MaxRetries: retries,
		Backoff:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	s.send = rec.send
	return s
}

var testMail = domain.Notification{To: "a@x.com", Subject: "Verify your email", HTML: "<p>hi</p>"}

func TestSMTPSender_Send(t *testing.T) {
	rec := &recordingSend{}
	s := newTestSender(t, rec, 3)

	if err := s.Send(context.Background(), testMail); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rec.addr != "smtp.example.com:587" || rec.from != "noreply@example.com" || rec.to[0] != "a@x.com" {
		t.Fatalf("unexpected envelope: %s %s %v", rec.addr, rec.from, rec.to)
	}
	for _, want := range []string{
		"From: Auth System <noreply@example.com>\r\n",
		"To: a@x.com\r\n",
		"Subject: Verify your email\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"\r\n\r\n<p>hi</p>",
	} {
		if !strings.Contains(rec.msg, want) {
			t.Errorf("message missing %q:\n%s", want, rec.msg)
		}
	}
}

func TestSMTPSender_RetriesTransientErrors(t *testing.T) {
	rec := &recordingSend{errs: []error{errors.New("connection reset"), &textproto.Error{Code: 421, Msg: "busy"}}}
	s := newTestSender(t, rec, 3)

	if err := s.Send(context.Background(), testMail); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rec.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", rec.calls)
	}
}

func TestSMTPSender_GivesUp(t *testing.T) {
	boom := errors.New("connection refused")
	rec := &recordingSend{errs: []error{boom, boom, boom}}
	s := newTestSender(t, rec, 2)

	err := s.Send(context.Background(), testMail)
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if rec.calls != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", rec.calls)
	}
}

func TestSMTPSender_PermanentErrorNotRetried(t *testing.T) {
	rec := &recordingSend{errs: []error{&textproto.Error{Code: 550, Msg: "mailbox unavailable"}}}
	s := newTestSender(t, rec, 3)

	if err := s.Send(context.Background(), testMail); err == nil {
		t.Fatal("expected error")
	}
	if rec.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", rec.calls)
	}
}

func TestNewSMTPSender_RequiresHost(t *testing.T) {
	if _, err := NewSMTPSender(Config{}); err == nil {
		t.Fatal("expected error without host")
	}
}
