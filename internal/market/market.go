package market

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/types"
	"github.com/tickertap/tickertap-api/pkg/response"
	"gorm.io/gorm"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

// Quote is a point-in-time market quote for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Volume    int64           `json:"volume"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceSource supplies current market prices. The engines never consult it
// for order pricing (orders trust the caller-supplied price); it feeds the
// advisory current_price on holdings and the quote endpoints.
type PriceSource interface {
	Quote(symbol string) (*Quote, error)
}

type listing struct {
	name string
	base float64
}

// universe is the fixed symbol set served by the mock source and seeded
// into the securities table at startup.
var universe = map[string]listing{
	"AAPL":  {"Apple Inc.", 189.45},
	"MSFT":  {"Microsoft Corp.", 378.90},
	"NVDA":  {"NVIDIA Corp.", 721.28},
	"TSLA":  {"Tesla Inc.", 213.65},
	"AMZN":  {"Amazon.com Inc.", 196.40},
	"GOOGL": {"Alphabet Inc.", 172.30},
	"META":  {"Meta Platforms Inc.", 492.80},
	"SPY":   {"SPDR S&P 500 ETF", 583.12},
	"QQQ":   {"Invesco QQQ Trust", 505.44},
	"AMD":   {"Advanced Micro Devices", 178.50},
}

// Universe returns the symbol -> name map of the mock price universe.
func Universe() map[string]string {
	out := make(map[string]string, len(universe))
	for symbol, l := range universe {
		out[symbol] = l.name
	}
	return out
}

// MockSource is a deterministic stand-in for a real market-data feed. Prices
// follow a hash-seeded daily walk around each symbol's base price, so the
// same symbol quoted twice on the same day yields identical values.
type MockSource struct {
	now func() time.Time
}

// NewMockSource creates a mock price source using the wall clock.
func NewMockSource() *MockSource {
	return &MockSource{now: time.Now}
}

// NewMockSourceAt creates a mock price source pinned to a fixed clock.
func NewMockSourceAt(now func() time.Time) *MockSource {
	return &MockSource{now: now}
}

// Quote returns the deterministic quote for symbol on the source's current
// day, or ErrUnknownSymbol for symbols outside the universe.
func (m *MockSource) Quote(symbol string) (*Quote, error) {
	l, ok := universe[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}

	now := m.now()
	day := now.Format("2006-01-02")
	prevDay := now.AddDate(0, 0, -1).Format("2006-01-02")

	price := dailyPrice(symbol, day, l.base)
	prevClose := dailyPrice(symbol, prevDay, l.base)
	open := prevClose.Add(price.Sub(prevClose).Div(decimal.NewFromInt(3))).Round(2)

	high := decimal.Max(open, price).Mul(decimal.NewFromFloat(1.004)).Round(2)
	low := decimal.Min(open, price).Mul(decimal.NewFromFloat(0.996)).Round(2)

	change := price.Sub(prevClose)
	changePct := decimal.Zero
	if !prevClose.IsZero() {
		changePct = change.Div(prevClose).Mul(decimal.NewFromInt(100)).Round(2)
	}

	volume := int64(seededFraction(symbol+day+"vol", 0.4, 1.6) * 2e7)

	return &Quote{
		Symbol:    symbol,
		Name:      l.name,
		Price:     price,
		Open:      open,
		High:      high,
		Low:       low,
		PrevClose: prevClose,
		Volume:    volume,
		Change:    change,
		ChangePct: changePct,
		Timestamp: now,
	}, nil
}

// dailyPrice derives the closing price for a symbol on a given day: the base
// price shifted by up to +-8%, seeded by symbol and date.
func dailyPrice(symbol, day string, base float64) decimal.Decimal {
	shift := seededFraction(symbol+day, -0.08, 0.08)
	return decimal.NewFromFloat(base * (1 + shift)).Round(2)
}

func seededFraction(seed string, lo, hi float64) float64 {
	sum := md5.Sum([]byte(seed))
	n := binary.BigEndian.Uint64(sum[:8])
	return lo + float64(n%1_000_000)/1_000_000*(hi-lo)
}

// Database wraps read access to the securities table.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) ListSecurities() ([]types.Security, error) {
	var securities []types.Security
	if err := d.db.Where("is_active = ?", true).Order("symbol").Find(&securities).Error; err != nil {
		return nil, err
	}
	return securities, nil
}

// GinHandlers contains HTTP handlers for market-data endpoints
type GinHandlers struct {
	source PriceSource
	db     *Database
}

func NewGinHandlers(source PriceSource, gormDB *gorm.DB) *GinHandlers {
	return &GinHandlers{
		source: source,
		db:     NewDatabase(gormDB),
	}
}

// ListSymbolsHandler handles GET requests for the tradeable security list
func (h *GinHandlers) ListSymbolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		securities, err := h.db.ListSecurities()
		response.Handle(c, securities, err)
	}
}

// GetQuoteHandler handles GET requests for a single symbol quote
// URL parameter: symbol
func (h *GinHandlers) GetQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, err := h.source.Quote(c.Param("symbol"))
		if errors.Is(err, ErrUnknownSymbol) {
			response.NotFound(c, err.Error())
			return
		}
		response.Handle(c, quote, err)
	}
}
