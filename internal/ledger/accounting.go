package ledger

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

// ApplyTrade runs the average-cost accounting for one trade against a locked
// account and its holding in the given security. Market-order placement and
// limit-order execution both go through this exact path.
//
// Must be called inside the transaction that holds the account lock; the
// balance and holding writes it makes are only safe under that lock.
//
// Buy: rejects ErrInsufficientFunds when balance < quantity*price, debits
// the balance, and creates the holding at cost = price or re-averages an
// existing one. Sell: rejects ErrNoPosition / ErrInsufficientQuantity,
// credits the balance, and deletes the holding when it reaches exactly zero.
func ApplyTrade(tx *gorm.DB, account *types.Account, securityID, side string, quantity, price decimal.Decimal) error {
	notional := quantity.Mul(price)

	var holding types.Holding
	err := tx.Where("account_id = ? AND security_id = ?", account.AccountID, securityID).
		First(&holding).Error
	hasHolding := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	switch side {
	case types.SideBuy:
		if account.Balance.LessThan(notional) {
			return ErrInsufficientFunds
		}
		account.Balance = account.Balance.Sub(notional)

		if !hasHolding {
			holding = types.Holding{
				HoldingID:    "HLD_" + uuid.New().String(),
				AccountID:    account.AccountID,
				SecurityID:   securityID,
				Quantity:     quantity,
				AverageCost:  price,
				CurrentPrice: price,
			}
			if err := tx.Create(&holding).Error; err != nil {
				return err
			}
		} else {
			totalShares := holding.Quantity.Add(quantity)
			totalCost := holding.Quantity.Mul(holding.AverageCost).Add(notional)
			holding.Quantity = totalShares
			holding.AverageCost = totalCost.DivRound(totalShares, 2)
			holding.CurrentPrice = price
			if err := tx.Save(&holding).Error; err != nil {
				return err
			}
		}

	case types.SideSell:
		if !hasHolding {
			return ErrNoPosition
		}
		if holding.Quantity.LessThan(quantity) {
			return ErrInsufficientQuantity
		}
		account.Balance = account.Balance.Add(notional)

		newQuantity := holding.Quantity.Sub(quantity)
		if newQuantity.IsZero() {
			// Hard delete: a soft-deleted row would still occupy the unique
			// (account_id, security_id) index and block a later re-entry.
			if err := tx.Unscoped().Delete(&holding).Error; err != nil {
				return err
			}
		} else {
			holding.Quantity = newQuantity
			holding.CurrentPrice = price
			if err := tx.Save(&holding).Error; err != nil {
				return err
			}
		}

	default:
		return ErrInvalidSide
	}

	return tx.Model(&types.Account{}).
		Where("account_id = ?", account.AccountID).
		Update("balance", account.Balance).Error
}
