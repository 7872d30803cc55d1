package ledger

import (
	"errors"

	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunInTransaction executes fn inside a single database transaction. Any
// error or panic rolls the whole unit back, so every mutation made through
// fn commits together or not at all. Row locks taken inside fn are held
// until the commit or rollback.
func RunInTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// forUpdate applies a SELECT ... FOR UPDATE clause on dialects that support
// row-level locks. sqlite has no FOR UPDATE; its single-writer transaction
// model (BEGIN IMMEDIATE via the _txlock DSN option) already serializes
// writing transactions, which satisfies the same exclusivity contract.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockAccount reads an account under an exclusive row lock scoped to tx.
// The ownership predicate is part of the lock query, so an absent account
// and an account owned by a different user both come back as
// ErrAccountNotFound. The lock is held until tx commits or rolls back.
func LockAccount(tx *gorm.DB, accountID, userID string) (*types.Account, error) {
	var account types.Account
	err := forUpdate(tx).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// LockOrder reads an order joined to its owning account, locking both rows
// in a single query. Ownership is enforced through the join, so a missing
// order and one belonging to another user are indistinguishable.
func LockOrder(tx *gorm.DB, orderID, userID string) (*types.Order, *types.Account, error) {
	var order types.Order
	err := forUpdate(tx).
		Joins("JOIN accounts ON accounts.account_id = orders.account_id").
		Where("orders.order_id = ? AND accounts.user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}

	// The account row is already locked by the join above; this read just
	// materializes it within the same transaction.
	var account types.Account
	if err := tx.Where("account_id = ?", order.AccountID).First(&account).Error; err != nil {
		return nil, nil, err
	}

	return &order, &account, nil
}

// AccountOwned verifies that the account exists and belongs to the user
// without taking a lock. Used by paths that do not mutate the ledger, such
// as limit-order placement.
func AccountOwned(tx *gorm.DB, accountID, userID string) (*types.Account, error) {
	var account types.Account
	err := tx.Where("account_id = ? AND user_id = ?", accountID, userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// SecurityExists checks that the security is known. Holdings and orders
// reference securities by a restricted key, so unknown securities are
// rejected up front.
func SecurityExists(tx *gorm.DB, securityID string) error {
	var count int64
	if err := tx.Model(&types.Security{}).
		Where("security_id = ?", securityID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrSecurityNotFound
	}
	return nil
}
