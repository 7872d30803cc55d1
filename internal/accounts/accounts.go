package accounts

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/audit"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/internal/types"
	"github.com/tickertap/tickertap-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles account opening and listing. Balances are touched only by
// the transaction and order engines; this service never mutates them.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateAccount opens a new account with a zero balance and writes the audit
// row in the same transaction.
func (s *Service) CreateAccount(userID, accountType, currency string, meta audit.Meta) (*types.Account, error) {
	if currency == "" {
		currency = "USD"
	}

	account := &types.Account{
		AccountID:   "ACC_" + uuid.New().String(),
		UserID:      userID,
		AccountType: accountType,
		// Simple account number generation; uniqueness enforced by the store.
		AccountNumber: strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		Balance:       decimal.Zero,
		Currency:      currency,
		Status:        types.AccountActive,
	}

	err := ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return audit.Record(tx, audit.Entry{
			UserID:    userID,
			Action:    "account_create",
			TableName: "accounts",
			RecordID:  account.AccountID,
			NewValues: map[string]any{
				"account_type": account.AccountType,
				"currency":     account.Currency,
			},
			Meta: meta,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", account.AccountID).
		Str("user_id", userID).
		Msg("account opened")

	return account, nil
}

// ListAccounts returns all accounts owned by the user.
func (s *Service) ListAccounts(userID string) ([]types.Account, error) {
	return s.db.GetAccountsByUser(userID)
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateAccountRequest is the payload for opening an account.
type CreateAccountRequest struct {
	AccountType string `json:"account_type" binding:"required"`
	Currency    string `json:"currency"`
}

// CreateAccountHandler handles POST requests to open a new account
func (h *GinHandlers) CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		meta := audit.Meta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		account, err := h.service.CreateAccount(c.GetString("userID"), req.AccountType, req.Currency, meta)
		response.Handle(c, account, err)
	}
}

// ListAccountsHandler handles GET requests for the user's accounts
func (h *GinHandlers) ListAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := h.service.ListAccounts(c.GetString("userID"))
		response.Handle(c, accounts, err)
	}
}
