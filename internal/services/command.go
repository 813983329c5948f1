package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/domain/money"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/ctxutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
	"github.com/yungbote/escrow-backend/internal/platform/policy"
)

const defaultMaxRetries = 3

// CommandConfig is shared by the settlement-facing services.
type CommandConfig struct {
	// Attempts beyond the first for conflict/retryable aggregate failures.
	MaxRetries int
	// Base backoff between attempts; doubled each retry.
	RetryBackoff time.Duration
	Policy       policy.Policy
	Metrics      *observability.Metrics
}

func (c CommandConfig) withDefaults() CommandConfig {
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = defaultMaxRetries
	case c.MaxRetries < 0:
		// Negative disables retries.
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 20 * time.Millisecond
	}
	if c.Policy.Currency.Default == "" {
		c.Policy = policy.Default()
	}
	return c
}

// runCommand wraps one aggregate call in a span and retries optimistic
// concurrency and transient database failures.
func runCommand[T any](ctx context.Context, log *logger.Logger, cfg CommandConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := observability.StartSpan(ctx, op)
	if a := ctxutil.GetActor(ctx); a != nil {
		span.SetAttributes(attribute.String("escrow.actor_id", a.UserID.String()), attribute.String("escrow.actor_role", a.Role))
	}

	var (
		out T
		err error
	)
	backoff := cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		out, err = fn(ctx)
		if err == nil || !domainagg.Transient(err) || attempt >= cfg.MaxRetries {
			break
		}
		fields := append([]interface{}{"op", op, "attempt", attempt + 1, "error", err}, ctxutil.GetTraceData(ctx).LogFields()...)
		log.Warn("retrying command", fields...)
		select {
		case <-ctx.Done():
			observability.EndSpan(span, ctx.Err())
			return out, domainagg.Wrap(domainagg.CodeRetryable, op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	observability.EndSpan(span, err)
	return out, err
}

func requireActor(ctx context.Context, op string) (*ctxutil.Actor, error) {
	a := ctxutil.GetActor(ctx)
	if a == nil || a.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "caller identity required", nil)
	}
	return a, nil
}

func requireAdmin(ctx context.Context, op string) (*ctxutil.Actor, error) {
	a, err := requireActor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin() {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "admin role required", nil)
	}
	return a, nil
}

func validation(op, msg string) error {
	return domainagg.NewError(domainagg.CodeValidation, op, msg, nil)
}

// parseAmount turns a decimal string into Money and checks the currency against policy.
func parseAmount(op string, p policy.Policy, amount, currency string) (money.Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return money.Money{}, validation(op, "currency is required")
	}
	if !p.SupportsCurrency(currency) {
		return money.Money{}, validation(op, "unsupported currency "+currency)
	}
	m, err := money.Parse(strings.TrimSpace(amount), currency)
	if err != nil {
		return money.Money{}, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	return m, nil
}

func amountFloat(m money.Money) float64 {
	f, _ := m.Amount.Float64()
	return f
}
