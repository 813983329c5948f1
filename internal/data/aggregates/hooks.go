package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/escrow-backend/internal/observability"
)

// Hooks receives one ObserveOperation per aggregate write, plus a conflict or
// retry signal when the write lost a race or hit a transient failure.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type metricsHooks struct {
	m *observability.Metrics
}

// NewObservabilityHooks reports aggregate writes to metrics. Nil metrics
// yields hooks that drop everything.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{m: metrics}
}

func (h metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.m.ObserveAggregateOperation(label(name), label(status), dur)
}

func (h metricsHooks) IncConflict(name string) { h.m.IncAggregateConflict(label(name)) }

func (h metricsHooks) IncRetry(name string) { h.m.IncAggregateRetry(label(name)) }

func label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
