package orders

import (
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

// OrderView is an order with its security symbol resolved for listings.
type OrderView struct {
	types.Order
	Symbol string `json:"symbol"`
}

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

// GetOrdersByUser lists orders across the user's accounts, newest first by
// placement time. Ownership is enforced through the accounts join.
func (d *Database) GetOrdersByUser(userID, accountID string, limit, offset int) ([]OrderView, error) {
	query := d.db.Model(&types.Order{}).
		Select("orders.*, securities.symbol AS symbol").
		Joins("JOIN accounts ON accounts.account_id = orders.account_id").
		Joins("LEFT JOIN securities ON securities.security_id = orders.security_id").
		Where("accounts.user_id = ?", userID)

	if accountID != "" {
		query = query.Where("orders.account_id = ?", accountID)
	}

	var views []OrderView
	err := query.Order("orders.placed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

// GetOrder fetches one order by ID without ownership filtering. Intended
// for tests and internal inspection, not for request paths.
func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
