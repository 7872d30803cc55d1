package admin

import (
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (d *Database) lockUser(tx *gorm.DB, userID string) (*types.User, error) {
	var user types.User
	if err := forUpdate(tx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) lockAccount(tx *gorm.DB, accountID string) (*types.Account, error) {
	var account types.Account
	if err := forUpdate(tx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (d *Database) GetUsers(limit, offset int) ([]types.User, error) {
	var users []types.User
	err := d.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (d *Database) GetAuditLogs(limit, offset int) ([]types.AuditLog, error) {
	var logs []types.AuditLog
	err := d.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
