package accounts

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

func (d *Database) GetAccountsByUser(userID string) ([]types.Account, error) {
	var accounts []types.Account
	if err := d.db.Where("user_id = ?", userID).Order("created_at").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
