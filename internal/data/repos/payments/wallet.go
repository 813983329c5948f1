package payments

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type WalletRepo interface {
	Create(dbc dbctx.Context, rows []*types.Wallet) ([]*types.Wallet, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Wallet, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Wallet, error)

	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Wallet, error)
	LockByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Wallet, error)
}

type walletRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWalletRepo(db *gorm.DB, baseLog *logger.Logger) WalletRepo {
	return &walletRepo{db: db, log: baseLog.With("repo", "WalletRepo")}
}

func (r *walletRepo) Create(dbc dbctx.Context, rows []*types.Wallet) ([]*types.Wallet, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Wallet{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *walletRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Wallet, error) {
	return r.findOne(dbc, false, "id = ?", id)
}

func (r *walletRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Wallet, error) {
	return r.findOne(dbc, false, "user_id = ?", userID)
}

func (r *walletRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Wallet, error) {
	return r.findOne(dbc, true, "id = ?", id)
}

func (r *walletRepo) LockByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Wallet, error) {
	return r.findOne(dbc, true, "user_id = ?", userID)
}

func (r *walletRepo) findOne(dbc dbctx.Context, lock bool, where string, id uuid.UUID) (*types.Wallet, error) {
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
	var row types.Wallet
	if err := q.Where(where, id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
