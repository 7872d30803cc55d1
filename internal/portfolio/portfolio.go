package portfolio

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/pkg/response"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Position is one holding joined to its security with a derived market
// value. Nothing here is stored; it is recomputed on every read.
type Position struct {
	AccountID    string          `json:"account_id"`
	SecurityID   string          `json:"security_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	Currency     string          `json:"currency"`
}

// AccountSummary is the valuation of a single account: cash plus the market
// value of its positions.
type AccountSummary struct {
	AccountID      string          `json:"account_id"`
	AccountType    string          `json:"account_type"`
	Currency       string          `json:"currency"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

// Summary is the portfolio-wide roll-up across all of a user's accounts.
type Summary struct {
	Accounts            []AccountSummary `json:"accounts"`
	TotalPortfolioValue decimal.Decimal  `json:"total_portfolio_value"`
	Currency            string           `json:"currency"`
}

// Service is a read-only projection over holdings and balances. It never
// mutates the ledger and needs no locking beyond ordinary read consistency.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GetPositions returns every position across the user's accounts with
// market_value = quantity * current_price.
func (s *Service) GetPositions(userID string) ([]Position, error) {
	rows, err := s.db.GetHoldingsByUser(userID)
	if err != nil {
		return nil, err
	}
	return toPositions(rows), nil
}

// ListHoldings pages a single account's positions. Ownership is verified
// first, so foreign accounts read the same as absent ones.
func (s *Service) ListHoldings(userID, accountID string, limit, offset int) ([]Position, error) {
	if _, err := ledger.AccountOwned(s.db.db, accountID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.GetHoldingsByAccount(accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return toPositions(rows), nil
}

func toPositions(rows []holdingRow) []Position {
	positions := make([]Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, Position{
			AccountID:    row.AccountID,
			SecurityID:   row.SecurityID,
			Symbol:       row.Symbol,
			Name:         row.Name,
			Quantity:     row.Quantity,
			AverageCost:  row.AverageCost,
			CurrentPrice: row.CurrentPrice,
			MarketValue:  row.Quantity.Mul(row.CurrentPrice),
			Currency:     row.Currency,
		})
	}
	return positions
}

// GetSummary values each account as cash + positions and totals them. A
// user with no accounts gets an empty summary with a zero total.
func (s *Service) GetSummary(userID string) (*Summary, error) {
	accounts, err := s.db.GetAccountsByUser(userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Accounts:            make([]AccountSummary, 0, len(accounts)),
		TotalPortfolioValue: decimal.Zero,
		// Single top-level currency for now; mixed-currency setups should
		// read the per-account currencies.
		Currency: "USD",
	}
	if len(accounts) == 0 {
		return summary, nil
	}

	rows, err := s.db.GetHoldingsByUser(userID)
	if err != nil {
		return nil, err
	}

	positionsValue := make(map[string]decimal.Decimal, len(accounts))
	for _, row := range rows {
		positionsValue[row.AccountID] = positionsValue[row.AccountID].
			Add(row.Quantity.Mul(row.CurrentPrice))
	}

	for _, account := range accounts {
		value := positionsValue[account.AccountID]
		total := account.Balance.Add(value)
		summary.Accounts = append(summary.Accounts, AccountSummary{
			AccountID:      account.AccountID,
			AccountType:    account.AccountType,
			Currency:       account.Currency,
			CashBalance:    account.Balance,
			PositionsValue: value,
			TotalValue:     total,
		})
		summary.TotalPortfolioValue = summary.TotalPortfolioValue.Add(total)
	}

	return summary, nil
}

// GinHandlers contains HTTP handlers for portfolio endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetPositionsHandler handles GET requests for the user's positions
func (h *GinHandlers) GetPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, err := h.service.GetPositions(c.GetString("userID"))
		response.Handle(c, positions, err)
	}
}

// GetSummaryHandler handles GET requests for the portfolio summary
func (h *GinHandlers) GetSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.service.GetSummary(c.GetString("userID"))
		response.Handle(c, summary, err)
	}
}

// ListHoldingsHandler handles GET requests for one account's holdings
// Query parameters: account_id (required), limit, offset
func (h *GinHandlers) ListHoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		positions, err := h.service.ListHoldings(
			c.GetString("userID"), c.Query("account_id"), limit, offset)
		response.Handle(c, positions, err)
	}
}
