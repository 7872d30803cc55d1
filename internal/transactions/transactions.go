package transactions

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/audit"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/internal/types"
	"github.com/tickertap/tickertap-api/pkg/metrics"
	"github.com/tickertap/tickertap-api/pkg/response"
	"gorm.io/gorm"
)

// Service is the transaction engine: it applies deposit and withdrawal
// deltas to an account's balance under the account lock.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateRequest is the payload for a deposit or withdrawal.
type CreateRequest struct {
	AccountID       string          `json:"account_id" binding:"required"`
	TransactionType string          `json:"transaction_type" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	ReferenceNumber *string         `json:"reference_number"`
}

// Create applies a deposit or withdrawal. Input validation happens before
// the lock is taken; the balance update, transaction row, and audit row all
// commit inside the single locked transaction, so a rejection at any point
// leaves no partial effect.
func (s *Service) Create(userID string, req CreateRequest, meta audit.Meta) (*types.Transaction, error) {
	logger := log.With().
		Str("account_id", req.AccountID).
		Str("transaction_type", req.TransactionType).
		Str("service", "transactions").
		Logger()

	if !req.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if req.TransactionType != types.TransactionDeposit && req.TransactionType != types.TransactionWithdrawal {
		return nil, ledger.ErrInvalidTransactionType
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	var txn *types.Transaction
	err := ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		account, err := ledger.LockAccount(tx, req.AccountID, userID)
		if err != nil {
			return err
		}

		oldBalance := account.Balance
		var newBalance decimal.Decimal
		switch req.TransactionType {
		case types.TransactionDeposit:
			newBalance = oldBalance.Add(req.Amount)
		case types.TransactionWithdrawal:
			if oldBalance.LessThan(req.Amount) {
				return ledger.ErrInsufficientFunds
			}
			newBalance = oldBalance.Sub(req.Amount)
		}

		err = tx.Model(&types.Account{}).
			Where("account_id = ?", account.AccountID).
			Update("balance", newBalance).Error
		if err != nil {
			return err
		}

		now := time.Now()
		txn = &types.Transaction{
			TransactionID:   "TXN_" + uuid.New().String(),
			AccountID:       account.AccountID,
			TransactionType: req.TransactionType,
			Amount:          req.Amount,
			Currency:        req.Currency,
			Status:          types.TransactionCompleted,
			Description:     req.Description,
			ReferenceNumber: req.ReferenceNumber,
			ExecutedAt:      &now,
		}
		if err := tx.Create(txn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledger.ErrDuplicateReference
			}
			return err
		}

		return audit.Record(tx, audit.Entry{
			UserID:    userID,
			Action:    "transaction_create",
			TableName: "transactions",
			RecordID:  txn.TransactionID,
			OldValues: map[string]any{"balance": oldBalance.String()},
			NewValues: map[string]any{
				"balance":          newBalance.String(),
				"transaction_type": req.TransactionType,
				"amount":           req.Amount.String(),
				"currency":         req.Currency,
			},
			Meta: meta,
		})
	})
	if err != nil {
		logger.Debug().Err(err).Msg("transaction rejected")
		return nil, err
	}

	logger.Info().
		Str("transaction_id", txn.TransactionID).
		Str("amount", txn.Amount.String()).
		Msg("transaction completed")

	return txn, nil
}

// List returns the user's transactions newest-first, optionally filtered to
// one account. Read-only; no locking.
func (s *Service) List(userID, accountID string) ([]types.Transaction, error) {
	return s.db.GetTransactionsByUser(userID, accountID)
}

// GinHandlers contains HTTP handlers for transaction endpoints
type GinHandlers struct {
	service   *Service
	collector *metrics.Collector
}

func NewGinHandlers(service *Service, collector *metrics.Collector) *GinHandlers {
	return &GinHandlers{
		service:   service,
		collector: collector,
	}
}

// CreateTransactionHandler handles POST requests to create deposits and withdrawals
func (h *GinHandlers) CreateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		meta := audit.Meta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		txn, err := h.service.Create(c.GetString("userID"), req, meta)
		if err != nil {
			h.collector.RecordTransactionRejected()
			response.HandleError(c, err)
			return
		}

		h.collector.RecordTransaction(txn.TransactionType)
		response.Success(c, txn)
	}
}

// ListTransactionsHandler handles GET requests for the user's transactions
// Optional query parameter: account_id
func (h *GinHandlers) ListTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		txns, err := h.service.List(c.GetString("userID"), c.Query("account_id"))
		response.Handle(c, txns, err)
	}
}
