package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/escrow-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return ensurePostgresConstraints(db)
}

// Postgres-only guards that back up the wallet invariants enforced in code.
func ensurePostgresConstraints(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"chk_wallet_balances", `
			DO $$ BEGIN
				ALTER TABLE wallet ADD CONSTRAINT chk_wallet_balances
				CHECK (balance_amount >= 0 AND frozen_amount >= 0 AND frozen_amount <= balance_amount);
			EXCEPTION WHEN duplicate_object THEN NULL; END $$;`},
		{"idx_outbox_message_pending", `
			CREATE INDEX IF NOT EXISTS idx_outbox_message_pending
			ON outbox_message (created_at)
			WHERE status = 'pending';`},
		{"idx_orders_pending_decision_expiry", `
			CREATE INDEX IF NOT EXISTS idx_orders_pending_decision_expiry
			ON orders (delivery_confirmation_expiry)
			WHERE status = 'delivered_pending_decision';`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
