package transactions

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/audit"
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

func getBalance(t *testing.T, db *gorm.DB, accountID string) decimal.Decimal {
	t.Helper()
	var account types.Account
	if err := db.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		t.Fatalf("failed to reload account: %v", err)
	}
	return account.Balance
}

func TestCreateDeposit(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_dep", decimal.NewFromInt(100))
	service := NewService(db)

	txn, err := service.Create("USR_dep", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionDeposit,
		Amount:          decimal.NewFromInt(250),
		Description:     "payroll",
	}, audit.Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txn.Status != types.TransactionCompleted {
		t.Errorf("expected status completed, got %s", txn.Status)
	}
	if txn.ExecutedAt == nil {
		t.Error("expected executed_at to be set")
	}
	if txn.Currency != "USD" {
		t.Errorf("expected currency defaulted to USD, got %s", txn.Currency)
	}
	if got := getBalance(t, db, account.AccountID); !got.Equal(decimal.NewFromInt(350)) {
		t.Errorf("expected balance 350, got %s", got)
	}

	// Audit row committed with the balance change
	var auditCount int64
	db.Model(&types.AuditLog{}).
		Where("action = ? AND record_id = ?", "transaction_create", txn.TransactionID).
		Count(&auditCount)
	if auditCount != 1 {
		t.Errorf("expected 1 audit row, got %d", auditCount)
	}
}

func TestCreateWithdrawal(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_wd", decimal.NewFromInt(500))
	service := NewService(db)

	_, err := service.Create("USR_wd", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionWithdrawal,
		Amount:          decimal.NewFromInt(200),
	}, audit.Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := getBalance(t, db, account.AccountID); !got.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected balance 300, got %s", got)
	}
}

func TestCreateWithdrawalInsufficientFunds(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_broke", decimal.NewFromInt(50))
	service := NewService(db)

	_, err := service.Create("USR_broke", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionWithdrawal,
		Amount:          decimal.NewFromInt(100),
	}, audit.Meta{})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Nothing committed: balance, transaction rows, and audit rows untouched
	if got := getBalance(t, db, account.AccountID); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected balance unchanged at 50, got %s", got)
	}
	var txnCount int64
	db.Model(&types.Transaction{}).Where("account_id = ?", account.AccountID).Count(&txnCount)
	if txnCount != 0 {
		t.Errorf("expected no transaction rows, got %d", txnCount)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_bad", decimal.NewFromInt(100))
	service := NewService(db)

	_, err := service.Create("USR_bad", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionDeposit,
		Amount:          decimal.NewFromInt(-5),
	}, audit.Meta{})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative amount, got %v", err)
	}

	_, err = service.Create("USR_bad", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionDeposit,
		Amount:          decimal.Zero,
	}, audit.Meta{})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero amount, got %v", err)
	}

	_, err = service.Create("USR_bad", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: "transfer",
		Amount:          decimal.NewFromInt(10),
	}, audit.Meta{})
	if !errors.Is(err, ledger.ErrInvalidTransactionType) {
		t.Errorf("expected ErrInvalidTransactionType, got %v", err)
	}
}

func TestCreateEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_owner", decimal.NewFromInt(100))
	service := NewService(db)

	_, err := service.Create("USR_other", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionDeposit,
		Amount:          decimal.NewFromInt(10),
	}, audit.Meta{})
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for foreign account, got %v", err)
	}
}

func TestCreateRejectsDuplicateReference(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "USR_ref", decimal.NewFromInt(1000))
	service := NewService(db)

	ref := "WIRE-2024-001"
	_, err := service.Create("USR_ref", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionDeposit,
		Amount:          decimal.NewFromInt(100),
		ReferenceNumber: &ref,
	}, audit.Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = service.Create("USR_ref", CreateRequest{
		AccountID:       account.AccountID,
		TransactionType: types.TransactionDeposit,
		Amount:          decimal.NewFromInt(100),
		ReferenceNumber: &ref,
	}, audit.Meta{})
	if !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}

	// The rejected duplicate must not move money
	if got := getBalance(t, db, account.AccountID); !got.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("expected balance 1100, got %s", got)
	}
}

func TestListFiltersByAccount(t *testing.T) {
	db := newTestDB(t)
	first := seedAccount(t, db, "USR_list", decimal.NewFromInt(1000))
	second := seedAccount(t, db, "USR_list", decimal.NewFromInt(1000))
	service := NewService(db)

	for _, accountID := range []string{first.AccountID, first.AccountID, second.AccountID} {
		_, err := service.Create("USR_list", CreateRequest{
			AccountID:       accountID,
			TransactionType: types.TransactionDeposit,
			Amount:          decimal.NewFromInt(10),
		}, audit.Meta{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := service.List("USR_list", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 transactions, got %d", len(all))
	}

	filtered, err := service.List("USR_list", first.AccountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 transactions for first account, got %d", len(filtered))
	}

	// Other users see nothing
	foreign, err := service.List("USR_else", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(foreign) != 0 {
		t.Errorf("expected no transactions for foreign user, got %d", len(foreign))
	}
}
