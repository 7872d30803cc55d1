package database

import (
	"fmt"
	"strings"

	"github.com/tickertap/tickertap-api/internal/database/migrations"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Default sqlite DSN. _txlock=immediate makes every transaction take the
// write lock up front, which is what gives the account-lock primitive its
// exclusivity on sqlite; _busy_timeout turns lock contention into a bounded
// wait instead of an immediate SQLITE_BUSY.
const defaultSQLiteDSN = "tickertap.db?_busy_timeout=5000&_txlock=immediate"

// NewDatabase opens the ledger store and brings the schema up to date.
// A postgres:// URL selects the postgres driver; anything else (including
// empty) is treated as a sqlite DSN.
func NewDatabase(databaseURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		dialector = postgres.Open(databaseURL)
	case databaseURL == "":
		dialector = sqlite.Open(defaultSQLiteDSN)
	default:
		dialector = sqlite.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&types.User{},
		&types.Account{},
		&types.Security{},
		&types.Holding{},
		&types.Order{},
		&types.Transaction{},
		&types.AuditLog{},
	); err != nil {
		return nil, err
	}

	if err := migrations.AddLedgerIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.SeedSecurities(db); err != nil {
		return nil, fmt.Errorf("failed to seed securities: %w", err)
	}

	return db, nil
}
