package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/platform/dbctx"
)

// CASGuard writes versioned rows with compare-and-set on the version column.
// Row locks already serialize writers inside one database; the version check
// also catches writes made from a stale read.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) conn(dbc dbctx.Context) (*gorm.DB, error) {
	switch {
	case dbc.Tx != nil:
		return dbc.Tx.WithContext(dbc.Ctx), nil
	case g.db != nil:
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// Bump applies updates to table row id only while its version equals
// expected, and moves the version to expected+1. A stale version is a
// conflict.
func (g CASGuard) Bump(dbc dbctx.Context, table string, id uuid.UUID, expected int, updates map[string]any) error {
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return ValidationError("table and id are required")
	}
	if expected < 0 {
		return ValidationError("expected version must be >= 0")
	}
	db, err := g.conn(dbc)
	if err != nil {
		return err
	}
	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = expected + 1

	res := db.Table(table).Where("id = ? AND version = ?", id, expected).Updates(set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ConflictError(fmt.Sprintf("%s %s changed concurrently", table, id))
	}
	return nil
}

// RequireCASSuccess turns a repo-level versioned update that matched no row
// into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
