package ports

import (
	"context"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// Notifier queues a message for best-effort delivery. It must not wait on the
// mail provider.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Mailer delivers one message synchronously.
type Mailer interface {
	Send(ctx context.Context, n domain.Notification) error
}
