package payments

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type WithdrawalRepo interface {
	Create(dbc dbctx.Context, rows []*types.Withdrawal) ([]*types.Withdrawal, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Withdrawal, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Withdrawal, error)
	ListBySeller(dbc dbctx.Context, sellerID uuid.UUID, limit int) ([]*types.Withdrawal, error)

	// UpdateVersioned writes every column when the stored version still
	// matches row.Version, then advances row.Version.
	UpdateVersioned(dbc dbctx.Context, row *types.Withdrawal) (bool, error)
}

type withdrawalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWithdrawalRepo(db *gorm.DB, baseLog *logger.Logger) WithdrawalRepo {
	return &withdrawalRepo{db: db, log: baseLog.With("repo", "WithdrawalRepo")}
}

func (r *withdrawalRepo) Create(dbc dbctx.Context, rows []*types.Withdrawal) ([]*types.Withdrawal, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Withdrawal{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *withdrawalRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Withdrawal, error) {
	return r.find(dbc, id, false)
}

func (r *withdrawalRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Withdrawal, error) {
	return r.find(dbc, id, true)
}

func (r *withdrawalRepo) find(dbc dbctx.Context, id uuid.UUID, lock bool) (*types.Withdrawal, error) {
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
	var row types.Withdrawal
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *withdrawalRepo) ListBySeller(dbc dbctx.Context, sellerID uuid.UUID, limit int) ([]*types.Withdrawal, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Withdrawal
	if sellerID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if err := t.WithContext(dbc.Ctx).
		Where("seller_id = ?", sellerID).
		Order("requested_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *withdrawalRepo) UpdateVersioned(dbc dbctx.Context, row *types.Withdrawal) (bool, error) {
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
