package authapi

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth metrics.
const (
	outcomeOK        = "ok"
	outcomeInvalid   = "invalid"
	outcomeConflict  = "conflict"
	outcomeRejected  = "rejected"
	outcomeThrottled = "throttled"
	outcomeError     = "error"
)

// Metrics counts register and login outcomes.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics registers auth counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktrack",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Register and login attempts by outcome.",
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		if err := reg.Register(m.attempts); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(op, outcome).Inc()
}

// Audit events go to the structured log. Passwords and tokens never appear here.

func (h *Handler) auditRegister(userID, ip string) {
	h.metrics.observe("register", outcomeOK)
	h.log.Info("auth.register.ok", "user_id", userID, "ip", ip)
}

func (h *Handler) auditLoginFailed(email, ip, reason string) {
	h.metrics.observe("login", outcomeRejected)
	h.log.Warn("auth.login.fail", "identifier", email, "ip", ip, "reason", reason)
}

func (h *Handler) auditLoginSuccess(userID, ip string) {
	h.metrics.observe("login", outcomeOK)
	h.log.Info("auth.login.ok", "user_id", userID, "ip", ip)
}

func (h *Handler) auditLoginRateLimited(email, ip string, retryAfter time.Duration) {
	h.metrics.observe("login", outcomeThrottled)
	h.log.Warn("auth.login.rate_limited", "identifier", email, "ip", ip, "retry_after_s", int64(retryAfter.Seconds()))
}

func (h *Handler) logFailure(op, event string, err error, attrs ...any) {
	h.metrics.observe(op, outcomeError)
	h.log.Error(event, append([]any{slog.Any("err", err)}, attrs...)...)
}
