package orders

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tickertap/tickertap-api/internal/audit"
	"github.com/tickertap/tickertap-api/pkg/metrics"
	"github.com/tickertap/tickertap-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service   *Service
	collector *metrics.Collector
}

func NewGinHandlers(service *Service, collector *metrics.Collector) *GinHandlers {
	return &GinHandlers{
		service:   service,
		collector: collector,
	}
}

func requestMeta(c *gin.Context) audit.Meta {
	return audit.Meta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// PlaceOrderHandler handles POST requests to place market and limit orders
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PlaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.Place(c.GetString("userID"), req, requestMeta(c))
		if err != nil {
			h.collector.RecordOrderRejected()
			response.HandleError(c, err)
			return
		}

		h.collector.RecordOrderPlaced(order.OrderType, order.Side)
		response.Success(c, order)
	}
}

// CancelOrderHandler handles POST requests to cancel pending limit orders
// URL parameter: order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.Cancel(c.GetString("userID"), c.Param("order_id"), requestMeta(c))
		if err != nil {
			h.collector.RecordOrderRejected()
			response.HandleError(c, err)
			return
		}

		h.collector.RecordOrderCancelled()
		response.OK(c, order)
	}
}

// ExecuteOrderHandler handles POST requests to execute pending limit orders
// URL parameter: order_id
func (h *GinHandlers) ExecuteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.Execute(c.GetString("userID"), c.Param("order_id"), requestMeta(c))
		if err != nil {
			h.collector.RecordOrderRejected()
			response.HandleError(c, err)
			return
		}

		h.collector.RecordOrderExecuted()
		response.OK(c, order)
	}
}

// ListOrdersHandler handles GET requests for the user's orders
// Optional query parameters: account_id, limit, offset
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		views, err := h.service.List(c.GetString("userID"), c.Query("account_id"), limit, offset)
		response.Handle(c, views, err)
	}
}
