package market

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

// Processor periodically folds fresh quotes into the current_price of held
// securities. current_price is advisory only (portfolio valuation); it never
// participates in order pricing, so these updates run outside the account
// lock and touch no balance or quantity.
type Processor struct {
	db       *gorm.DB
	source   PriceSource
	interval time.Duration
}

func NewProcessor(db *gorm.DB, source PriceSource) *Processor {
	return &Processor{
		db:       db,
		source:   source,
		interval: time.Minute,
	}
}

// Start begins the price refresh loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "price_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting price refresh processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down price refresh processor")
			return
		case <-ticker.C:
			if err := p.RefreshPrices(); err != nil {
				logger.Error().Err(err).Msg("failed to refresh prices")
			}
		}
	}
}

// RefreshPrices updates current_price on every holding whose security has a
// live quote. Unknown symbols are skipped.
func (p *Processor) RefreshPrices() error {
	logger := log.With().Str("component", "price_processor").Logger()

	var held []types.Security
	err := p.db.Model(&types.Security{}).
		Where("security_id IN (SELECT security_id FROM holdings WHERE deleted_at IS NULL)").
		Find(&held).Error
	if err != nil {
		return err
	}

	refreshed := 0
	for _, security := range held {
		quote, err := p.source.Quote(security.Symbol)
		if err != nil {
			logger.Debug().Str("symbol", security.Symbol).Err(err).Msg("no quote for held security")
			continue
		}

		err = p.db.Model(&types.Holding{}).
			Where("security_id = ?", security.SecurityID).
			Update("current_price", quote.Price).Error
		if err != nil {
			logger.Error().Err(err).Str("symbol", security.Symbol).Msg("failed to update holding prices")
			continue
		}
		refreshed++
	}

	logger.Debug().Int("securities_refreshed", refreshed).Msg("price refresh cycle complete")
	return nil
}
