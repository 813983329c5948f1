package orders

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type EscrowRepo interface {
	Create(dbc dbctx.Context, rows []*types.Escrow) ([]*types.Escrow, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Escrow, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Escrow, error)

	UpdateVersioned(dbc dbctx.Context, row *types.Escrow) (bool, error)
}

type escrowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEscrowRepo(db *gorm.DB, baseLog *logger.Logger) EscrowRepo {
	return &escrowRepo{db: db, log: baseLog.With("repo", "EscrowRepo")}
}

func (r *escrowRepo) Create(dbc dbctx.Context, rows []*types.Escrow) ([]*types.Escrow, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Escrow{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *escrowRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Escrow, error) {
	return r.find(dbc, id, false)
}

func (r *escrowRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Escrow, error) {
	return r.find(dbc, id, true)
}

func (r *escrowRepo) find(dbc dbctx.Context, id uuid.UUID, lock bool) (*types.Escrow, error) {
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
	var row types.Escrow
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *escrowRepo) UpdateVersioned(dbc dbctx.Context, row *types.Escrow) (bool, error) {
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
