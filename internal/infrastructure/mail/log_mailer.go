package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// LogMailer stands in for SMTP when no host is configured. The body carries
// one-time tokens and is never logged.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, n domain.Notification) error {
	m.log.Info().Str("to", n.To).Str("subject", n.Subject).Msg("mail not sent: smtp host not configured")
	return nil
}
