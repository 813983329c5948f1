package payments

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type WalletTransactionRepo interface {
	Create(dbc dbctx.Context, rows []*types.WalletTransaction) ([]*types.WalletTransaction, error)

	// ListByWallet returns newest-first rows plus the total count.
	ListByWallet(dbc dbctx.Context, walletID uuid.UUID, limit, offset int) ([]*types.WalletTransaction, int64, error)
	ListByReference(dbc dbctx.Context, refType string, refID uuid.UUID) ([]*types.WalletTransaction, error)
}

type walletTransactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWalletTransactionRepo(db *gorm.DB, baseLog *logger.Logger) WalletTransactionRepo {
	return &walletTransactionRepo{db: db, log: baseLog.With("repo", "WalletTransactionRepo")}
}

func (r *walletTransactionRepo) Create(dbc dbctx.Context, rows []*types.WalletTransaction) ([]*types.WalletTransaction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := make([]*types.WalletTransaction, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *walletTransactionRepo) ListByWallet(dbc dbctx.Context, walletID uuid.UUID, limit, offset int) ([]*types.WalletTransaction, int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.WalletTransaction
	if walletID == uuid.Nil {
		return out, 0, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	base := t.WithContext(dbc.Ctx).Model(&types.WalletTransaction{}).Where("wallet_id = ?", walletID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := t.WithContext(dbc.Ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *walletTransactionRepo) ListByReference(dbc dbctx.Context, refType string, refID uuid.UUID) ([]*types.WalletTransaction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.WalletTransaction
	if refID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
