package portfolio

import (
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

// holdingRow is a holding joined to its security metadata.
type holdingRow struct {
	AccountID    string
	SecurityID   string
	Symbol       string
	Name         string
	Currency     string
	Quantity     decimal.Decimal
	AverageCost  decimal.Decimal
	CurrentPrice decimal.Decimal
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetHoldingsByUser joins the user's holdings to security metadata across
// all of their accounts.
func (d *Database) GetHoldingsByUser(userID string) ([]holdingRow, error) {
	var rows []holdingRow
	err := d.db.Model(&types.Holding{}).
		Select(`holdings.account_id, holdings.security_id, holdings.quantity,
			holdings.average_cost, holdings.current_price,
			securities.symbol, securities.name, securities.currency`).
		Joins("JOIN securities ON securities.security_id = holdings.security_id").
		Joins("JOIN accounts ON accounts.account_id = holdings.account_id").
		Where("accounts.user_id = ?", userID).
		Order("securities.symbol").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetHoldingsByAccount pages a single account's holdings. Ownership is the
// caller's responsibility.
func (d *Database) GetHoldingsByAccount(accountID string, limit, offset int) ([]holdingRow, error) {
	var rows []holdingRow
	err := d.db.Model(&types.Holding{}).
		Select(`holdings.account_id, holdings.security_id, holdings.quantity,
			holdings.average_cost, holdings.current_price,
			securities.symbol, securities.name, securities.currency`).
		Joins("JOIN securities ON securities.security_id = holdings.security_id").
		Where("holdings.account_id = ?", accountID).
		Order("securities.symbol").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) GetAccountsByUser(userID string) ([]types.Account, error) {
	var accounts []types.Account
	if err := d.db.Where("user_id = ?", userID).Order("created_at").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
