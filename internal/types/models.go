package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account statuses
const (
	AccountActive = "active"
	AccountLocked = "locked"
	AccountClosed = "closed"
)

// Order sides and types
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Order statuses. Filled and cancelled are terminal.
const (
	OrderPending   = "pending"
	OrderFilled    = "filled"
	OrderCancelled = "cancelled"
)

// Transaction types and statuses
const (
	TransactionDeposit    = "deposit"
	TransactionWithdrawal = "withdrawal"

	TransactionCompleted = "completed"
)

// User is a registered platform user.
type User struct {
	gorm.Model   `json:"-"`
	UserID       string `gorm:"uniqueIndex" json:"user_id"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	KYCStatus    string `json:"kyc_status"` // pending, approved, rejected
	IsActive     bool   `json:"is_active"`
}

// Account is a cash-holding brokerage account owned by a user. Balance is
// mutated only under the account lock; the check constraint backs up the
// engine's non-negativity pre-check.
type Account struct {
	gorm.Model    `json:"-"`
	AccountID     string          `gorm:"uniqueIndex" json:"account_id"`
	UserID        string          `gorm:"index" json:"user_id"`
	AccountType   string          `json:"account_type"`
	AccountNumber string          `gorm:"uniqueIndex" json:"account_number"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,2);check:balance >= 0" json:"balance"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"` // active, locked, closed
}

// Security is a tradeable instrument. Referenced by holdings and orders
// without cascade; a security cannot be removed while referenced.
type Security struct {
	gorm.Model   `json:"-"`
	SecurityID   string `gorm:"uniqueIndex" json:"security_id"`
	Symbol       string `gorm:"uniqueIndex" json:"symbol"`
	Name         string `json:"name"`
	SecurityType string `json:"security_type"`
	Exchange     string `json:"exchange"`
	Currency     string `json:"currency"`
	IsActive     bool   `json:"is_active"`
}

// Holding is a position one account has in one security. A holding exists
// only while quantity > 0; selling a position down to zero deletes the row.
type Holding struct {
	gorm.Model   `json:"-"`
	HoldingID    string          `gorm:"uniqueIndex" json:"holding_id"`
	AccountID    string          `gorm:"index:idx_holdings_account_security,unique" json:"account_id"`
	SecurityID   string          `gorm:"index:idx_holdings_account_security,unique" json:"security_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,6);check:quantity > 0" json:"quantity"`
	AverageCost  decimal.Decimal `gorm:"type:decimal(18,2)" json:"average_cost"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(18,2)" json:"current_price"`
}

// Order is a buy/sell instruction against an account. Market orders are
// created already filled in the same transaction as their ledger effects;
// limit orders stay pending until executed or cancelled.
type Order struct {
	gorm.Model     `json:"-"`
	OrderID        string              `gorm:"uniqueIndex" json:"order_id"`
	AccountID      string              `gorm:"index" json:"account_id"`
	SecurityID     string              `json:"security_id"`
	OrderType      string              `json:"order_type"` // market, limit
	Side           string              `json:"side"`       // buy, sell
	Quantity       decimal.Decimal     `gorm:"type:decimal(18,6);check:quantity > 0" json:"quantity"`
	Price          decimal.Decimal     `gorm:"type:decimal(18,2)" json:"price"`
	Status         string              `gorm:"index" json:"status"` // pending, filled, cancelled
	FilledQuantity decimal.Decimal     `gorm:"type:decimal(18,6)" json:"filled_quantity"`
	FilledPrice    decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"filled_price"`
	PlacedAt       time.Time           `json:"placed_at"`
	ExecutedAt     *time.Time          `json:"executed_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
}

// Transaction is a completed deposit or withdrawal. Immutable once created;
// there is no persisted pending state for money movements.
type Transaction struct {
	gorm.Model      `json:"-"`
	TransactionID   string          `gorm:"uniqueIndex" json:"transaction_id"`
	AccountID       string          `gorm:"index" json:"account_id"`
	TransactionType string          `json:"transaction_type"` // deposit, withdrawal
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);check:amount > 0" json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Description     string          `json:"description"`
	ReferenceNumber *string         `gorm:"uniqueIndex" json:"reference_number,omitempty"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
}

// AuditLog is an append-only record of a mutation, written in the same
// database transaction as the mutation it documents.
type AuditLog struct {
	gorm.Model `json:"-"`
	UserID     string `gorm:"index" json:"user_id"`
	Action     string `json:"action"`
	TableName  string `json:"table_name"`
	RecordID   string `json:"record_id"`
	OldValues  string `gorm:"type:text" json:"old_values,omitempty"`
	NewValues  string `gorm:"type:text" json:"new_values,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}
