package migrations

import (
	"github.com/google/uuid"
	"github.com/tickertap/tickertap-api/internal/market"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

// SeedSecurities inserts the mock market universe into the securities table.
// Symbols already present are left untouched, so re-running is safe.
func SeedSecurities(db *gorm.DB) error {
	for symbol, name := range market.Universe() {
		security := types.Security{
			SecurityID:   "SEC_" + uuid.New().String(),
			Symbol:       symbol,
			Name:         name,
			SecurityType: "equity",
			Exchange:     "NASDAQ",
			Currency:     "USD",
			IsActive:     true,
		}
		err := db.Where(types.Security{Symbol: symbol}).
			Attrs(security).
			FirstOrCreate(&types.Security{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
