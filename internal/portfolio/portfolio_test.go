package portfolio

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/database"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := database.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, userID string, balance decimal.Decimal) *types.Account {
	t.Helper()
	account := &types.Account{
		AccountID:     "ACC_" + uuid.New().String(),
		UserID:        userID,
		AccountType:   "individual",
		AccountNumber: uuid.New().String()[:12],
		Balance:       balance,
		Currency:      "USD",
		Status:        types.AccountActive,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

func seedHolding(t *testing.T, db *gorm.DB, accountID, symbol string, quantity, avgCost, currentPrice int64) {
	t.Helper()
	var sec types.Security
	if err := db.Where("symbol = ?", symbol).First(&sec).Error; err != nil {
		t.Fatalf("failed to look up security %s: %v", symbol, err)
	}
	holding := &types.Holding{
		HoldingID:    "HLD_" + uuid.New().String(),
		AccountID:    accountID,
		SecurityID:   sec.SecurityID,
		Quantity:     decimal.NewFromInt(quantity),
		AverageCost:  decimal.NewFromInt(avgCost),
		CurrentPrice: decimal.NewFromInt(currentPrice),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to seed holding: %v", err)
	}
}

func TestGetPositions(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_pos", decimal.NewFromInt(1000))
	seedHolding(t, db, account.AccountID, "MSFT", 4, 300, 310)
	seedHolding(t, db, account.AccountID, "AAPL", 10, 150, 160)
	service := NewService(db)

	positions, err := service.GetPositions("USR_pos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}

	// Ordered by symbol
	if positions[0].Symbol != "AAPL" || positions[1].Symbol != "MSFT" {
		t.Errorf("expected AAPL, MSFT order, got %s, %s", positions[0].Symbol, positions[1].Symbol)
	}

	aapl := positions[0]
	if !aapl.MarketValue.Equal(decimal.NewFromInt(1600)) {
		t.Errorf("expected AAPL market value 1600, got %s", aapl.MarketValue)
	}
	if !aapl.AverageCost.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected AAPL average cost 150, got %s", aapl.AverageCost)
	}
	if aapl.Name == "" || aapl.SecurityID == "" {
		t.Error("expected security metadata to be resolved")
	}
}

func TestGetPositionsScopedToUser(t *testing.T) {
	db := newTestDB(t)
	mine := seedAccount(t, db, "USR_mine", decimal.NewFromInt(1000))
	other := seedAccount(t, db, "USR_other", decimal.NewFromInt(1000))
	seedHolding(t, db, mine.AccountID, "AAPL", 1, 100, 100)
	seedHolding(t, db, other.AccountID, "MSFT", 1, 100, 100)
	service := NewService(db)

	positions, err := service.GetPositions("USR_mine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" {
		t.Errorf("expected only own AAPL position, got %+v", positions)
	}
}

func TestListHoldings(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_list", decimal.NewFromInt(1000))
	seedHolding(t, db, account.AccountID, "MSFT", 4, 300, 310)
	seedHolding(t, db, account.AccountID, "AAPL", 10, 150, 160)
	service := NewService(db)

	positions, err := service.ListHoldings("USR_list", account.AccountID, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(positions))
	}
	if positions[0].Symbol != "AAPL" || positions[1].Symbol != "MSFT" {
		t.Errorf("expected AAPL, MSFT order, got %s, %s", positions[0].Symbol, positions[1].Symbol)
	}

	// Pagination
	page, err := service.ListHoldings("USR_list", account.AccountID, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 1 || page[0].Symbol != "MSFT" {
		t.Errorf("expected second page to hold MSFT, got %+v", page)
	}
}

func TestListHoldingsEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_owner", decimal.NewFromInt(1000))
	seedHolding(t, db, account.AccountID, "AAPL", 1, 100, 100)
	service := NewService(db)

	if _, err := service.ListHoldings("USR_stranger", account.AccountID, 0, 0); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound for foreign account, got %v", err)
	}
	if _, err := service.ListHoldings("USR_owner", "ACC_missing", 0, 0); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound for unknown account, got %v", err)
	}
}

func TestGetSummary(t *testing.T) {
	db := newTestDB(t)
	first := seedAccount(t, db, "USR_sum", decimal.NewFromInt(1000))
	second := seedAccount(t, db, "USR_sum", decimal.NewFromInt(500))
	seedHolding(t, db, first.AccountID, "AAPL", 10, 150, 160) // 1600
	seedHolding(t, db, first.AccountID, "MSFT", 2, 300, 310)  // 620
	service := NewService(db)

	summary, err := service.GetSummary("USR_sum")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Accounts) != 2 {
		t.Fatalf("expected 2 account summaries, got %d", len(summary.Accounts))
	}

	var firstSummary, secondSummary *AccountSummary
	for i := range summary.Accounts {
		switch summary.Accounts[i].AccountID {
		case first.AccountID:
			firstSummary = &summary.Accounts[i]
		case second.AccountID:
			secondSummary = &summary.Accounts[i]
		}
	}
	if firstSummary == nil || secondSummary == nil {
		t.Fatal("missing summary for a seeded account")
	}
	if !firstSummary.PositionsValue.Equal(decimal.NewFromInt(2220)) {
		t.Errorf("expected positions value 2220, got %s", firstSummary.PositionsValue)
	}
	if !firstSummary.TotalValue.Equal(decimal.NewFromInt(3220)) {
		t.Errorf("expected total value 3220, got %s", firstSummary.TotalValue)
	}
	if !secondSummary.PositionsValue.IsZero() {
		t.Errorf("expected empty positions value for second account, got %s", secondSummary.PositionsValue)
	}
	if !secondSummary.TotalValue.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected total value 500, got %s", secondSummary.TotalValue)
	}

	// 3220 + 500
	if !summary.TotalPortfolioValue.Equal(decimal.NewFromInt(3720)) {
		t.Errorf("expected portfolio value 3720, got %s", summary.TotalPortfolioValue)
	}
}

func TestGetSummaryEmptyUser(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	summary, err := service.GetSummary("USR_nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(summary.Accounts))
	}
	if !summary.TotalPortfolioValue.IsZero() {
		t.Errorf("expected zero portfolio value, got %s", summary.TotalPortfolioValue)
	}
	if summary.Currency != "USD" {
		t.Errorf("expected currency USD, got %s", summary.Currency)
	}
}
