// Package metrics defines and registers all custom Prometheus metrics for the
// auth service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default registry on package init through
// promauto, so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Credential metrics ────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "not_verified" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success", "duplicate_email" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// ── Token metrics ─────────────────────────────────────────────────────────────

// TokensIssuedTotal counts minted credentials.
// Label:
//   - kind: "access", "refresh", "verification" or "reset"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of tokens issued, by kind.",
	},
	[]string{"kind"},
)

// TokenRedemptionsTotal counts redemption attempts of stateful tokens.
// Labels:
//   - kind: "refresh", "verification" or "reset"
//   - result: "success", "not_found", "expired" or "reused"
var TokenRedemptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_redemptions_total",
		Help:      "Total number of token redemption attempts, by kind and result.",
	},
	[]string{"kind", "result"},
)

// RefreshReuseRevocationsTotal counts sessions revoked because a rotated-away
// refresh token was presented again.
var RefreshReuseRevocationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_reuse_revocations_total",
		Help:      "Total number of refresh sessions revoked after refresh token reuse.",
	},
)

// ── Mail metrics ──────────────────────────────────────────────────────────────

// MailDispatchTotal counts outbound mail outcomes.
// Label:
//   - result: "sent", "failed" or "dropped"
var MailDispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_dispatch_total",
		Help:      "Total number of outbound mails, by delivery result.",
	},
	[]string{"result"},
)

// MailQueueDepth tracks the number of notifications waiting for a worker.
var MailQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of notifications pending in the mail dispatcher.",
	},
)

// MailSendDuration measures a single delivery including retries.
var MailSendDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mail_send_duration_seconds",
		Help:      "Duration of outbound mail delivery including retries.",
		Buckets:   prometheus.DefBuckets,
	},
)
