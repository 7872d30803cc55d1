package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tickertap/tickertap-api/internal/audit"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Service is the order engine. Market placement and limit execution share
// one accounting path (ledger.ApplyTrade) under the account lock; limit
// placement and cancellation never touch the ledger.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// PlaceRequest is the payload for placing an order. Market orders carry the
// caller-supplied execution price; there is no independent pricing engine.
type PlaceRequest struct {
	AccountID  string          `json:"account_id" binding:"required"`
	SecurityID string          `json:"security_id" binding:"required"`
	OrderType  string          `json:"order_type" binding:"required"`
	Side       string          `json:"side" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// Place creates a new order. Limit orders are inserted pending after an
// ownership check only. Market orders lock the account, run the accounting
// algorithm, and are inserted already filled; a rejection anywhere aborts
// the whole operation and no order row is created.
func (s *Service) Place(userID string, req PlaceRequest, meta audit.Meta) (*types.Order, error) {
	logger := log.With().
		Str("account_id", req.AccountID).
		Str("security_id", req.SecurityID).
		Str("service", "orders").
		Logger()

	if !req.Quantity.IsPositive() || !req.Price.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	side := strings.ToLower(req.Side)
	if side != types.SideBuy && side != types.SideSell {
		return nil, ledger.ErrInvalidSide
	}
	orderType := strings.ToLower(req.OrderType)
	if orderType != types.OrderTypeMarket && orderType != types.OrderTypeLimit {
		return nil, ledger.ErrInvalidOrderType
	}

	order := &types.Order{
		OrderID:        "ORD_" + uuid.New().String(),
		AccountID:      req.AccountID,
		SecurityID:     req.SecurityID,
		OrderType:      orderType,
		Side:           side,
		Quantity:       req.Quantity,
		Price:          req.Price,
		FilledQuantity: decimal.Zero,
		PlacedAt:       time.Now(),
	}

	var err error
	if orderType == types.OrderTypeLimit {
		err = ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
			// Ownership check only; no lock, nothing in the ledger moves
			// until the order is executed.
			if _, err := ledger.AccountOwned(tx, req.AccountID, userID); err != nil {
				return err
			}
			if err := ledger.SecurityExists(tx, req.SecurityID); err != nil {
				return err
			}

			order.Status = types.OrderPending
			if err := tx.Create(order).Error; err != nil {
				return err
			}
			return s.recordAudit(tx, userID, "order_place", order, nil, meta)
		})
	} else {
		err = ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
			account, err := ledger.LockAccount(tx, req.AccountID, userID)
			if err != nil {
				return err
			}
			if err := ledger.SecurityExists(tx, req.SecurityID); err != nil {
				return err
			}

			oldBalance := account.Balance
			if err := ledger.ApplyTrade(tx, account, req.SecurityID, side, req.Quantity, req.Price); err != nil {
				return err
			}

			now := time.Now()
			order.Status = types.OrderFilled
			order.FilledQuantity = req.Quantity
			order.FilledPrice = decimal.NewNullDecimal(req.Price)
			order.ExecutedAt = &now
			if err := tx.Create(order).Error; err != nil {
				return err
			}
			return s.recordAudit(tx, userID, "order_place", order,
				map[string]any{"balance": oldBalance.String()}, meta)
		})
	}
	if err != nil {
		logger.Debug().Err(err).Msg("order rejected")
		return nil, err
	}

	logger.Info().
		Str("order_id", order.OrderID).
		Str("order_type", order.OrderType).
		Str("side", order.Side).
		Str("status", order.Status).
		Msg("order placed")

	return order, nil
}

// Cancel transitions a pending limit order to cancelled. Limit orders never
// touched the ledger at placement, so there is no balance or holding effect.
func (s *Service) Cancel(userID, orderID string, meta audit.Meta) (*types.Order, error) {
	var order *types.Order
	err := ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		locked, _, err := ledger.LockOrder(tx, orderID, userID)
		if err != nil {
			return err
		}
		if locked.Status != types.OrderPending {
			return ledger.ErrOrderNotPending
		}

		now := time.Now()
		locked.Status = types.OrderCancelled
		locked.CancelledAt = &now
		if err := tx.Save(locked).Error; err != nil {
			return err
		}

		order = locked
		return s.recordAudit(tx, userID, "order_cancel", locked, nil, meta)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("service", "orders").
		Msg("order cancelled")

	return order, nil
}

// Execute fills a pending limit order using its stored side, quantity, and
// price. The order and its owning account are locked together; on a
// rejection (insufficient funds or quantity) the order stays pending and
// nothing is mutated.
func (s *Service) Execute(userID, orderID string, meta audit.Meta) (*types.Order, error) {
	var order *types.Order
	err := ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		locked, account, err := ledger.LockOrder(tx, orderID, userID)
		if err != nil {
			return err
		}
		if locked.Status != types.OrderPending {
			return ledger.ErrOrderNotPending
		}

		oldBalance := account.Balance
		if err := ledger.ApplyTrade(tx, account, locked.SecurityID, locked.Side, locked.Quantity, locked.Price); err != nil {
			return err
		}

		now := time.Now()
		locked.Status = types.OrderFilled
		locked.FilledQuantity = locked.Quantity
		locked.FilledPrice = decimal.NewNullDecimal(locked.Price)
		locked.ExecutedAt = &now
		if err := tx.Save(locked).Error; err != nil {
			return err
		}

		order = locked
		return s.recordAudit(tx, userID, "order_execute", locked,
			map[string]any{"balance": oldBalance.String()}, meta)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("filled_price", order.Price.String()).
		Str("service", "orders").
		Msg("order executed")

	return order, nil
}

// List returns the user's orders newest-first with the security symbol
// resolved. limit is clamped to 1..100, defaulting to 50.
func (s *Service) List(userID, accountID string, limit, offset int) ([]OrderView, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.db.GetOrdersByUser(userID, accountID, limit, offset)
}

func (s *Service) recordAudit(tx *gorm.DB, userID, action string, order *types.Order, oldValues map[string]any, meta audit.Meta) error {
	return audit.Record(tx, audit.Entry{
		UserID:    userID,
		Action:    action,
		TableName: "orders",
		RecordID:  order.OrderID,
		OldValues: oldValues,
		NewValues: map[string]any{
			"status":     order.Status,
			"order_type": order.OrderType,
			"side":       order.Side,
			"quantity":   order.Quantity.String(),
			"price":      order.Price.String(),
		},
		Meta: meta,
	})
}
