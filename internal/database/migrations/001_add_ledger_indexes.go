package migrations

import (
	"gorm.io/gorm"
)

// AddLedgerIndexes creates the composite indexes backing the hot ledger
// queries. Raw SQL for control over the index shapes.
func AddLedgerIndexes(db *gorm.DB) error {
	indexes := []string{
		// Newest-first transaction listings per account
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_created
		 ON transactions(account_id, created_at)`,

		// Pending-order lookups per account
		`CREATE INDEX IF NOT EXISTS idx_orders_account_status
		 ON orders(account_id, status)`,

		// Newest-first order listings
		`CREATE INDEX IF NOT EXISTS idx_orders_placed_at
		 ON orders(placed_at)`,

		// Audit review by action within a time range
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_action_created
		 ON audit_logs(action, created_at)`,

		// Newest-first audit listing
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_created
		 ON audit_logs(created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
