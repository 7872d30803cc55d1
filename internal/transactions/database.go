package transactions

import (
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// DB exposes the underlying handle for transactional units of work.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// GetTransactionsByUser lists transactions across the user's accounts,
// newest first. The ownership join keeps other users' accounts invisible
// even when their account_id is guessed.
func (d *Database) GetTransactionsByUser(userID, accountID string) ([]types.Transaction, error) {
	query := d.db.
		Joins("JOIN accounts ON accounts.account_id = transactions.account_id").
		Where("accounts.user_id = ?", userID)

	if accountID != "" {
		query = query.Where("transactions.account_id = ?", accountID)
	}

	var txns []types.Transaction
	if err := query.Order("transactions.created_at DESC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
