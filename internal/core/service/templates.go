package service

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h2>Hello {{.Name}},</h2>
  <p>Thanks for registering! Please verify your email by clicking the button below:</p>
  <a href="{{.URL}}" style="background: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Verify Email</a>
  <p>This link will expire in {{.Expiry}}.</p>
  <p>If you didn't request this, you can safely ignore this email.</p>
</div>`))

var resetTmpl = template.Must(template.New("reset").Parse(`<h2>Password Reset Request</h2>
<p>Hello {{.Name}},</p>
<p>You requested to reset your password. Please click the link below to proceed:</p>
<a href="{{.URL}}" target="_blank">Reset Your Password</a>
<p>This link will expire in {{.Expiry}}.</p>
<p>If you didn't request this, please ignore this email.</p>`))

type mailView struct {
	Name   string
	URL    string
	Expiry string
}

// MailTemplates renders the out-of-band notifications that carry one-time tokens.
type MailTemplates struct {
	frontendURL string
}

func NewMailTemplates(frontendURL string) *MailTemplates {
	return &MailTemplates{frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (m *MailTemplates) Verification(identity *domain.Identity, token string, ttl time.Duration) (domain.Notification, error) {
	html, err := render(verificationTmpl, mailView{
		Name:   identity.Name,
		URL:    m.link("/verify-email", token),
		Expiry: humanDuration(ttl),
	})
	if err != nil {
		return domain.Notification{}, err
	}
	return domain.Notification{To: identity.Email, Subject: "Verify your email", HTML: html}, nil
}

func (m *MailTemplates) Reset(identity *domain.Identity, token string, ttl time.Duration) (domain.Notification, error) {
	html, err := render(resetTmpl, mailView{
		Name:   identity.Name,
		URL:    m.link("/reset-password", token),
		Expiry: humanDuration(ttl),
	})
	if err != nil {
		return domain.Notification{}, err
	}
	return domain.Notification{To: identity.Email, Subject: "Password Reset Request", HTML: html}, nil
}

func (m *MailTemplates) link(path, token string) string {
	return m.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func render(t *template.Template, v mailView) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
