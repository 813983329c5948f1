package orders

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/escrow-backend/internal/domain"
	"github.com/yungbote/escrow-backend/internal/domain/order"
	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type OrderListFilter struct {
	UserID   uuid.UUID
	Role     string // "buyer", "seller" or "" for either side
	Statuses []order.Status
	Limit    int
	Offset   int
}

type OrderRepo interface {
	Create(dbc dbctx.Context, rows []*types.Order) ([]*types.Order, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error)

	List(dbc dbctx.Context, f OrderListFilter) ([]*types.Order, int64, error)
	// ListExpiredPendingDecision returns ids whose decision window closed before now.
	ListExpiredPendingDecision(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error)

	UpdateVersioned(dbc dbctx.Context, row *types.Order) (bool, error)
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.With("repo", "OrderRepo")}
}

func (r *orderRepo) Create(dbc dbctx.Context, rows []*types.Order) ([]*types.Order, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Order{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *orderRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error) {
	return r.find(dbc, id, false)
}

func (r *orderRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error) {
	return r.find(dbc, id, true)
}

func (r *orderRepo) find(dbc dbctx.Context, id uuid.UUID, lock bool) (*types.Order, error) {
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
	var row types.Order
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *orderRepo) List(dbc dbctx.Context, f OrderListFilter) ([]*types.Order, int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Order
	if f.UserID == uuid.Nil {
		return out, 0, nil
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	q := t.WithContext(dbc.Ctx).Model(&types.Order{})
	switch f.Role {
	case "buyer":
		q = q.Where("buyer_id = ?", f.UserID)
	case "seller":
		q = q.Where("seller_id = ?", f.UserID)
	default:
		q = q.Where("buyer_id = ? OR seller_id = ?", f.UserID, f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *orderRepo) ListExpiredPendingDecision(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Order{}).
		Where("status = ? AND delivery_confirmation_expiry IS NOT NULL AND delivery_confirmation_expiry < ?",
			order.StatusDeliveredPendingDecision, now).
		Order("delivery_confirmation_expiry ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepo) UpdateVersioned(dbc dbctx.Context, row *types.Order) (bool, error) {
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
