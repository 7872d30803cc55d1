package market_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/database"
	"github.com/tickertap/tickertap-api/internal/market"
	"github.com/tickertap/tickertap-api/internal/types"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)
}

func TestQuoteIsDeterministicPerDay(t *testing.T) {
	source := market.NewMockSourceAt(fixedClock)

	first, err := source.Quote("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := source.Quote("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first.Price.Equal(second.Price) {
		t.Errorf("expected identical prices for the same day, got %s and %s", first.Price, second.Price)
	}
	if !first.PrevClose.Equal(second.PrevClose) {
		t.Errorf("expected identical prev close, got %s and %s", first.PrevClose, second.PrevClose)
	}
	if first.Symbol != "AAPL" || first.Name == "" {
		t.Errorf("expected symbol metadata, got %+v", first)
	}
}

func TestQuoteStaysNearBasePrice(t *testing.T) {
	source := market.NewMockSourceAt(fixedClock)

	quote, err := source.Quote("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The daily walk is bounded to +-8% of the base price
	base := decimal.NewFromFloat(189.45)
	lo := base.Mul(decimal.NewFromFloat(0.92))
	hi := base.Mul(decimal.NewFromFloat(1.08))
	if quote.Price.LessThan(lo) || quote.Price.GreaterThan(hi) {
		t.Errorf("price %s outside expected band [%s, %s]", quote.Price, lo, hi)
	}

	if quote.High.LessThan(quote.Low) {
		t.Errorf("high %s below low %s", quote.High, quote.Low)
	}
	expectedChange := quote.Price.Sub(quote.PrevClose)
	if !quote.Change.Equal(expectedChange) {
		t.Errorf("expected change %s, got %s", expectedChange, quote.Change)
	}
}

func TestQuoteUnknownSymbol(t *testing.T) {
	source := market.NewMockSource()

	_, err := source.Quote("NOPE")
	if !errors.Is(err, market.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestUniverseIsSeededIntoStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := database.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	store := market.NewDatabase(db)
	securities, err := store.ListSecurities()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	universe := market.Universe()
	if len(securities) != len(universe) {
		t.Fatalf("expected %d securities, got %d", len(universe), len(securities))
	}
	for _, sec := range securities {
		if _, ok := universe[sec.Symbol]; !ok {
			t.Errorf("unexpected symbol %s in store", sec.Symbol)
		}
		if sec.SecurityID == "" || !sec.IsActive {
			t.Errorf("expected active security with ID, got %+v", sec)
		}
	}
}

func TestRefreshPricesUpdatesHoldings(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := database.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	var sec types.Security
	if err := db.Where("symbol = ?", "AAPL").First(&sec).Error; err != nil {
		t.Fatalf("failed to look up security: %v", err)
	}

	account := &types.Account{
		AccountID:     "ACC_" + uuid.New().String(),
		UserID:        "USR_refresh",
		AccountType:   "individual",
		AccountNumber: uuid.New().String()[:12],
		Balance:       decimal.NewFromInt(1000),
		Currency:      "USD",
		Status:        types.AccountActive,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	holding := &types.Holding{
		HoldingID:    "HLD_" + uuid.New().String(),
		AccountID:    account.AccountID,
		SecurityID:   sec.SecurityID,
		Quantity:     decimal.NewFromInt(10),
		AverageCost:  decimal.NewFromInt(1),
		CurrentPrice: decimal.NewFromInt(1),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to seed holding: %v", err)
	}

	source := market.NewMockSourceAt(fixedClock)
	processor := market.NewProcessor(db, source)
	if err := processor.RefreshPrices(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	quote, err := source.Quote("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var refreshed types.Holding
	if err := db.Where("holding_id = ?", holding.HoldingID).First(&refreshed).Error; err != nil {
		t.Fatalf("failed to reload holding: %v", err)
	}
	if !refreshed.CurrentPrice.Equal(quote.Price) {
		t.Errorf("expected current price %s, got %s", quote.Price, refreshed.CurrentPrice)
	}
	// The refresh is advisory only
	if !refreshed.AverageCost.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected average cost untouched, got %s", refreshed.AverageCost)
	}
}

func TestRefreshPricesSkipsExitedPositions(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := database.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	var sec types.Security
	if err := db.Where("symbol = ?", "MSFT").First(&sec).Error; err != nil {
		t.Fatalf("failed to look up security: %v", err)
	}

	account := &types.Account{
		AccountID:     "ACC_" + uuid.New().String(),
		UserID:        "USR_exited",
		AccountType:   "individual",
		AccountNumber: uuid.New().String()[:12],
		Balance:       decimal.NewFromInt(1000),
		Currency:      "USD",
		Status:        types.AccountActive,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	holding := &types.Holding{
		HoldingID:    "HLD_" + uuid.New().String(),
		AccountID:    account.AccountID,
		SecurityID:   sec.SecurityID,
		Quantity:     decimal.NewFromInt(5),
		AverageCost:  decimal.NewFromInt(1),
		CurrentPrice: decimal.NewFromInt(1),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to seed holding: %v", err)
	}
	if err := db.Delete(holding).Error; err != nil {
		t.Fatalf("failed to soft-delete holding: %v", err)
	}

	processor := market.NewProcessor(db, market.NewMockSourceAt(fixedClock))
	if err := processor.RefreshPrices(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var exited types.Holding
	if err := db.Unscoped().Where("holding_id = ?", holding.HoldingID).First(&exited).Error; err != nil {
		t.Fatalf("failed to reload holding: %v", err)
	}
	if !exited.CurrentPrice.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected exited position untouched, got %s", exited.CurrentPrice)
	}
}
