package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-core/internal/domain"
	"marketplace-core/internal/repository/uow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlaceItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

type PlaceInput struct {
	Actor           domain.Actor
	StoreID         string
	Items           []PlaceItem
	PaymentMethod   domain.PaymentMethod
	ShippingAddress domain.Address
	BillingAddress  *domain.Address
	CouponCode      string
	Notes           string
}

// Place creates a pending order for the actor. Item names, SKUs, images and
// prices are copied from the catalog at this moment. Stock is checked but not
// taken; that happens on the first transition out of pending. A coupon is
// redeemed in the same unit of work that creates the order.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	if err := validatePlace(in); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var created *domain.Order
		err := s.runner.Do(ctx, func(ctx context.Context, r uow.Repos) error {
			o, err := s.buildOrder(ctx, r, in)
			if err != nil {
				return err
			}
			if err := r.Orders.Create(ctx, o); err != nil {
				return err
			}
			created = o
			return nil
		})
		switch {
		case err == nil:
			s.logger.Printf("order: placed id=%s number=%s store_id=%s customer_id=%s total_cents=%d",
				created.ID, created.OrderNumber, created.StoreID, created.CustomerID, created.TotalCents)
			return created, nil
		case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrAlreadyExists):
			s.logger.Printf("order: place store_id=%s attempt=%d retry: %v", in.StoreID, attempt, err)
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("place order: %w", domain.ErrConcurrentModification)
}

func validatePlace(in PlaceInput) error {
	if in.Actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(in.StoreID) == "" {
		return domain.Validationf("storeId required")
	}
	if len(in.Items) == 0 {
		return domain.Validationf("at least one item required")
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return domain.Validationf("productId required")
		}
		if it.Quantity <= 0 {
			return domain.Validationf("quantity of product %s must be positive", it.ProductID)
		}
	}
	if !in.PaymentMethod.Valid() {
		return domain.Validationf("unknown payment method %q", in.PaymentMethod)
	}
	return nil
}

func (s *Service) buildOrder(ctx context.Context, r uow.Repos, in PlaceInput) (*domain.Order, error) {
	o := &domain.Order{
		CustomerID:      in.Actor.ID,
		StoreID:         in.StoreID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.ShippingAddress,
		Notes:           strings.TrimSpace(in.Notes),
	}
	if in.BillingAddress != nil {
		o.BillingAddress = *in.BillingAddress
	}

	requested := map[string]int{}
	for _, it := range in.Items {
		p, err := r.Products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, err)
		}
		if p.StoreID != in.StoreID {
			return nil, domain.Validationf("product %s does not belong to store %s", p.ID, in.StoreID)
		}
		if !p.IsActive {
			return nil, domain.Validationf("product %s is not available", p.ID)
		}
		if o.Currency == "" {
			o.Currency = p.Currency
		}

		item := domain.OrderItem{
			ID:             uuid.NewString(),
			ProductID:      p.ID,
			SKU:            p.SKU,
			Name:           p.Name,
			Image:          p.Image,
			UnitPriceCents: p.PriceCents,
			Quantity:       it.Quantity,
		}
		inv := p.Inventory
		if it.VariantID != "" {
			v, ok := p.Variant(it.VariantID)
			if !ok {
				return nil, fmt.Errorf("variant %s of product %s: %w", it.VariantID, p.ID, domain.ErrNotFound)
			}
			item.VariantID = v.ID
			item.Name = p.Name + " - " + v.Name
			if v.SKU != "" {
				item.SKU = v.SKU
			}
			if v.PriceCents > 0 {
				item.UnitPriceCents = v.PriceCents
			}
			inv = v.Inventory
		}

		key := it.ProductID + "/" + it.VariantID
		requested[key] += it.Quantity
		if inv.TrackQuantity && !inv.AllowBackorder && requested[key] > inv.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				VariantID: it.VariantID,
				Delta:     -requested[key],
				Available: inv.Quantity,
			}
		}

		item.TotalCents = item.UnitPriceCents * int64(item.Quantity)
		o.SubtotalCents += item.TotalCents
		o.Items = append(o.Items, item)
	}
	if o.Currency == "" {
		o.Currency = s.pricing.DefaultCurrency
	}
	o.ShippingCents = s.pricing.ShippingFlatCents

	var itemDiscount int64
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		c, err := r.Coupons.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.Validationf("coupon %s is not valid", code)
			}
			return nil, err
		}
		discount, err := s.redeemCoupon(c, o)
		if err != nil {
			return nil, err
		}
		if c.Type != domain.CouponTypeFreeShipping {
			itemDiscount = discount
		}
		o.DiscountCents = discount
		o.CouponCode = c.Code

		c.UsedCount++
		if err := r.Coupons.Save(ctx, c, c.Version); err != nil {
			return nil, err
		}
	}

	taxable := o.SubtotalCents - itemDiscount
	if taxable < 0 {
		taxable = 0
	}
	o.TaxCents = decimal.NewFromInt(taxable).Mul(s.pricing.TaxRate).Round(0).IntPart()
	o.ComputeTotal()

	number, err := newOrderNumber()
	if err != nil {
		return nil, err
	}
	o.OrderNumber = number
	return o, nil
}

// redeemCoupon checks that c applies to o and returns the discount in cents.
func (s *Service) redeemCoupon(c *domain.Coupon, o *domain.Order) (int64, error) {
	if !c.ActiveAt(s.now()) || c.Exhausted() {
		return 0, domain.Validationf("coupon %s is not valid", c.Code)
	}
	if c.StoreID != "" && c.StoreID != o.StoreID {
		return 0, domain.Validationf("coupon %s is not valid for this store", c.Code)
	}
	if o.SubtotalCents < c.MinimumAmountCents {
		return 0, domain.Validationf("coupon %s requires a minimum order of %d cents", c.Code, c.MinimumAmountCents)
	}

	var discount int64
	switch c.Type {
	case domain.CouponTypePercentage:
		discount = decimal.NewFromInt(o.SubtotalCents).
			Mul(decimal.NewFromInt(c.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).IntPart()
	case domain.CouponTypeFixedAmount:
		discount = c.Value
	case domain.CouponTypeFreeShipping:
		return o.ShippingCents, nil
	default:
		return 0, domain.Validationf("coupon %s has unknown type %q", c.Code, c.Type)
	}
	if c.MaximumDiscountCents > 0 && discount > c.MaximumDiscountCents {
		discount = c.MaximumDiscountCents
	}
	if discount > o.SubtotalCents {
		discount = o.SubtotalCents
	}
	return discount, nil
}
