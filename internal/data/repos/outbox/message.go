package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/escrow-backend/internal/domain"
	domainoutbox "github.com/yungbote/escrow-backend/internal/domain/outbox"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.OutboxMessage) ([]*types.OutboxMessage, error)

	// ClaimPending locks up to limit pending rows, oldest first. Concurrent
	// claimers skip rows another transaction holds.
	ClaimPending(dbc dbctx.Context, limit int) ([]*types.OutboxMessage, error)
	MarkProcessed(dbc dbctx.Context, ids []uuid.UUID, at time.Time) error
	// MarkFailed records a failed attempt; the row goes dead once attempts reach maxAttempts.
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string, maxAttempts int) error

	CountByStatus(dbc dbctx.Context, status string) (int64, error)
	ListByAggregate(dbc dbctx.Context, aggregateID uuid.UUID) ([]*types.OutboxMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "OutboxMessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*types.OutboxMessage) ([]*types.OutboxMessage, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.OutboxMessage{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *messageRepo) ClaimPending(dbc dbctx.Context, limit int) ([]*types.OutboxMessage, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 25
	}
	var out []*types.OutboxMessage
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", domainoutbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) MarkProcessed(dbc dbctx.Context, ids []uuid.UUID, at time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.OutboxMessage{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":       domainoutbox.StatusProcessed,
			"processed_at": at,
			"last_error":   "",
			"updated_at":   at,
		}).Error
}

func (r *messageRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string, maxAttempts int) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errMsg,
			"status": gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END",
				maxAttempts, domainoutbox.StatusDead),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *messageRepo) CountByStatus(dbc dbctx.Context, status string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.OutboxMessage{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *messageRepo) ListByAggregate(dbc dbctx.Context, aggregateID uuid.UUID) ([]*types.OutboxMessage, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.OutboxMessage
	if aggregateID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
