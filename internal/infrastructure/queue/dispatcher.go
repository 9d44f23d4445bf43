package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
	"github.com/99minutos/auth-system/internal/pkg/metrics"
)

const (
	defaultWorkers = 2
	channelBuffer  = 256
)

var (
	ErrQueueFull        = errors.New("mail queue full")
	ErrDispatcherClosed = errors.New("mail dispatcher closed")
)

// Dispatcher delivers notifications on a fixed set of workers so that request
// handlers never wait on the mail provider.
type Dispatcher struct {
	queue   chan domain.Notification
	mailer  ports.Mailer
	workers int
	log     zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

var _ ports.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers workers and a queue of
// buffer notifications. Non-positive values fall back to the defaults.
func NewDispatcher(numWorkers, buffer int, mailer ports.Mailer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if buffer <= 0 {
		buffer = channelBuffer
	}
	return &Dispatcher{
		queue:   make(chan domain.Notification, buffer),
		mailer:  mailer,
		workers: numWorkers,
		log:     log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled or
// once Shutdown has drained the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}
}

// Notify enqueues n without blocking. A full queue drops the notification.
func (d *Dispatcher) Notify(_ context.Context, n domain.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- n:
		metrics.MailQueueDepth.Inc()
		return nil
	default:
		metrics.MailDispatchTotal.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Shutdown stops accepting notifications and waits for the workers to drain
// the queue or for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-d.queue:
			if !ok {
				return
			}
			metrics.MailQueueDepth.Dec()
			d.deliver(ctx, id, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, n domain.Notification) {
	start := time.Now()
	err := d.mailer.Send(ctx, n)
	metrics.MailSendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MailDispatchTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("to", n.To).
			Str("subject", n.Subject).
			Int("worker_id", id).
			Msg("mail delivery failed")
		return
	}
	metrics.MailDispatchTotal.WithLabelValues("sent").Inc()
	d.log.Debug().Str("to", n.To).Str("subject", n.Subject).Int("worker_id", id).Msg("mail delivered")
}
