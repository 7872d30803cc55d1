package ledger

import "errors"

// Business-rule errors raised by the transaction and order engines. All of
// them abort the locked unit of work before commit, so a caller that sees one
// can assume no partial effect was persisted.
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidSide            = errors.New("side must be 'buy' or 'sell'")
	ErrInvalidOrderType       = errors.New("order_type must be 'market' or 'limit'")
	ErrInvalidTransactionType = errors.New("unsupported transaction_type")
	ErrAccountNotFound        = errors.New("account not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrSecurityNotFound       = errors.New("security not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientQuantity   = errors.New("insufficient quantity")
	ErrNoPosition             = errors.New("no position to sell")
	ErrOrderNotPending        = errors.New("only pending orders can be modified")
	ErrDuplicateReference     = errors.New("reference number already exists")
)
