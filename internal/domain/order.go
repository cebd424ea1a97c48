package domain

import "time"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// AllOrderStatuses lists every status in lifecycle order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded,
	}
}

// forward maps each status to the single next step of the happy path.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:        OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusPreparing,
	OrderStatusPreparing:      OrderStatusReady,
	OrderStatusReady:          OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// Voided reports whether the order no longer counts as a sale.
func (s OrderStatus) Voided() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// Next returns the forward successor of s, if any.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := forward[s]
	return next, ok
}

// CanTransitionTo reports whether moving from s to target is a legal edge.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.Terminal() || !target.Valid() {
		return false
	}
	if target.Voided() {
		return true
	}
	next, ok := forward[s]
	return ok && next == target
}

// PaymentStatus is independent from OrderStatus; it only changes when set explicitly.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodApplePay       PaymentMethod = "apple_pay"
	PaymentMethodGooglePay      PaymentMethod = "google_pay"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal, PaymentMethodApplePay,
		PaymentMethodGooglePay, PaymentMethodCashOnDelivery, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// Address is copied onto the order at checkout.
type Address struct {
	Street     string   `json:"street,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	Country    string   `json:"country,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// OrderItem is a purchase-time snapshot of a product or variant.
type OrderItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	VariantID      string `json:"variantId,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Name           string `json:"name"`
	Image          string `json:"image,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	TotalCents     int64  `json:"totalCents"`
}

type Order struct {
	ID                string        `json:"id"`
	OrderNumber       string        `json:"orderNumber"`
	CustomerID        string        `json:"customerId"`
	StoreID           string        `json:"storeId"`
	Items             []OrderItem   `json:"items"`
	SubtotalCents     int64         `json:"subtotalCents"`
	TaxCents          int64         `json:"taxCents"`
	ShippingCents     int64         `json:"shippingCents"`
	DiscountCents     int64         `json:"discountCents"`
	TotalCents        int64         `json:"totalCents"`
	Currency          string        `json:"currency"`
	Status            OrderStatus   `json:"status"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	ShippingAddress   Address       `json:"shippingAddress"`
	BillingAddress    Address       `json:"billingAddress"`
	Notes             string        `json:"notes,omitempty"`
	CouponCode        string        `json:"couponCode,omitempty"`
	TrackingNumber    *string       `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimatedDelivery,omitempty"`
	// InventoryApplied is set while stock for the items is decremented.
	InventoryApplied bool      `json:"inventoryApplied"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ComputeTotal recalculates TotalCents from its components, never below zero.
func (o *Order) ComputeTotal() int64 {
	total := o.SubtotalCents + o.TaxCents + o.ShippingCents - o.DiscountCents
	if total < 0 {
		total = 0
	}
	o.TotalCents = total
	return total
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = append([]OrderItem(nil), o.Items...)
	}
	if o.TrackingNumber != nil {
		v := *o.TrackingNumber
		out.TrackingNumber = &v
	}
	if o.EstimatedDelivery != nil {
		v := *o.EstimatedDelivery
		out.EstimatedDelivery = &v
	}
	return out
}

// LifecycleEvent records one committed status change.
type LifecycleEvent struct {
	ID          string      `json:"id" bson:"event_id"`
	OrderID     string      `json:"orderId" bson:"order_id"`
	OrderNumber string      `json:"orderNumber,omitempty" bson:"order_number,omitempty"`
	StoreID     string      `json:"storeId,omitempty" bson:"store_id,omitempty"`
	From        OrderStatus `json:"fromStatus" bson:"from_status"`
	To          OrderStatus `json:"toStatus" bson:"to_status"`
	ActorID     string      `json:"actorId,omitempty" bson:"actor_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp" bson:"timestamp"`
}
