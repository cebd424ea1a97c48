package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketplace-core/internal/domain"
	ordersvc "marketplace-core/internal/service/order"

	"github.com/gin-gonic/gin"
)

type placeOrderRequest struct {
	StoreID         string               `json:"storeId"`
	Items           []ordersvc.PlaceItem `json:"items"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
	ShippingAddress domain.Address       `json:"shippingAddress"`
	BillingAddress  *domain.Address      `json:"billingAddress,omitempty"`
	CouponCode      string               `json:"couponCode,omitempty"`
	Notes           string               `json:"notes,omitempty"`
}

type transitionRequest struct {
	Status            domain.OrderStatus    `json:"status"`
	PaymentStatus     *domain.PaymentStatus `json:"paymentStatus,omitempty"`
	TrackingNumber    *string               `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time            `json:"estimatedDelivery,omitempty"`
}

type listResponse[T any] struct {
	Results []T `json:"results"`
	Count   int `json:"count"`
	Limit   int `json:"limit,omitempty"`
	Offset  int `json:"offset"`
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.Validationf("invalid body: %v", err))
		return
	}
	o, err := h.deps.OrderSvc.Place(c.Request.Context(), ordersvc.PlaceInput{
		Actor:           actorFrom(c),
		StoreID:         req.StoreID,
		Items:           req.Items,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *handlers) listOrders(c *gin.Context) {
	in := ordersvc.ListInput{StoreID: c.Query("storeId")}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			in.Statuses = append(in.Statuses, domain.OrderStatus(strings.TrimSpace(s)))
		}
	}
	var err error
	if in.From, err = timeQuery(c, "from"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.To, err = timeQuery(c, "to"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.Offset, err = intQuery(c, "offset"); err != nil {
		writeError(c, h.logger, err)
		return
	}

	orders, err := h.deps.OrderSvc.List(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listResponse[domain.Order]{Results: orders, Count: len(orders), Limit: in.Limit, Offset: in.Offset})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.deps.OrderSvc.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) transitionOrder(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.Validationf("invalid body: %v", err))
		return
	}
	if req.Status == "" {
		writeError(c, h.logger, domain.Validationf("status is required"))
		return
	}
	o, err := h.deps.OrderSvc.Transition(c.Request.Context(), ordersvc.TransitionInput{
		OrderID:           c.Param("id"),
		Target:            req.Status,
		Actor:             actorFrom(c),
		PaymentStatus:     req.PaymentStatus,
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) orderHistory(c *gin.Context) {
	history, err := h.deps.OrderSvc.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if history == nil {
		history = []domain.LifecycleEvent{}
	}
	c.JSON(http.StatusOK, listResponse[domain.LifecycleEvent]{Results: history, Count: len(history)})
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Validationf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// timeQuery accepts RFC 3339 timestamps or plain dates, read as UTC midnight.
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Validationf("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", key)
}
