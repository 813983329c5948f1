package orders

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/dispute"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type DisputeRepo interface {
	Create(dbc dbctx.Context, rows []*types.Dispute) ([]*types.Dispute, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dispute, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Dispute, error)
	// GetActiveByOrderID returns the open or escalated dispute for an order, if any.
	GetActiveByOrderID(dbc dbctx.Context, orderID uuid.UUID) (*types.Dispute, error)
	ListByOrderID(dbc dbctx.Context, orderID uuid.UUID) ([]*types.Dispute, error)

	UpdateVersioned(dbc dbctx.Context, row *types.Dispute) (bool, error)
}

type disputeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDisputeRepo(db *gorm.DB, baseLog *logger.Logger) DisputeRepo {
	return &disputeRepo{db: db, log: baseLog.With("repo", "DisputeRepo")}
}

func (r *disputeRepo) Create(dbc dbctx.Context, rows []*types.Dispute) ([]*types.Dispute, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Dispute{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *disputeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dispute, error) {
	return r.find(dbc, id, false)
}

func (r *disputeRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Dispute, error) {
	return r.find(dbc, id, true)
}

func (r *disputeRepo) find(dbc dbctx.Context, id uuid.UUID, lock bool) (*types.Dispute, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row types.Dispute
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *disputeRepo) GetActiveByOrderID(dbc dbctx.Context, orderID uuid.UUID) (*types.Dispute, error) {
	if orderID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Dispute
	if err := t.WithContext(dbc.Ctx).
		Where("order_id = ? AND status IN ?", orderID, []dispute.Status{dispute.StatusOpen, dispute.StatusEscalated}).
		Order("created_at DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *disputeRepo) ListByOrderID(dbc dbctx.Context, orderID uuid.UUID) ([]*types.Dispute, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Dispute
	if orderID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *disputeRepo) UpdateVersioned(dbc dbctx.Context, row *types.Dispute) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.ID == uuid.Nil {
		return false, nil
	}
	expected := row.Version
	row.Version = expected + 1
	res := t.WithContext(dbc.Ctx).
		Model(row).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(row)
	if res.Error != nil || res.RowsAffected == 0 {
		row.Version = expected
		return false, res.Error
	}
	return true, nil
}
