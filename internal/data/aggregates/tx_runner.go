package aggregates

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

// TxRunner is the transaction boundary every settlement write runs inside.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type TxOption func(*gormTxRunner)

// WithLockTimeout bounds how long a transaction waits for a row lock on
// Postgres. A timed-out wait surfaces as 55P03 and is mapped to retryable.
func WithLockTimeout(d time.Duration) TxOption {
	return func(r *gormTxRunner) { r.lockTimeout = d }
}

type gormTxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormTxRunner(db *gorm.DB, opts ...TxOption) TxRunner {
	r := &gormTxRunner{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stmt := lockTimeoutSQL(tx.Dialector.Name(), r.lockTimeout); stmt != "" {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// lockTimeoutSQL is empty off Postgres or when no timeout is set. SET does not
// take bind parameters, so the value is formatted in as whole milliseconds.
func lockTimeoutSQL(dialect string, d time.Duration) string {
	if dialect != "postgres" || d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}
