package domain

import "time"

// DefaultLowStockThreshold applies when a product is created without one.
const DefaultLowStockThreshold = 10

type Inventory struct {
	TrackQuantity     bool `json:"trackQuantity"`
	Quantity          int  `json:"quantity"`
	LowStockThreshold int  `json:"lowStockThreshold"`
	AllowBackorder    bool `json:"allowBackorder"`
}

// IsLow is the low-stock predicate. Untracked inventory is never low.
func (i Inventory) IsLow() bool {
	return i.TrackQuantity && i.Quantity <= i.LowStockThreshold
}

type ProductVariant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SKU        string    `json:"sku"`
	PriceCents int64     `json:"priceCents"`
	Inventory  Inventory `json:"inventory"`
}

type Product struct {
	ID                string           `json:"id"`
	StoreID           string           `json:"storeId"`
	SKU               string           `json:"sku"`
	Name              string           `json:"name"`
	Slug              string           `json:"slug,omitempty"`
	Description       string           `json:"description,omitempty"`
	Image             string           `json:"image,omitempty"`
	PriceCents        int64            `json:"priceCents"`
	ComparePriceCents *int64           `json:"comparePriceCents,omitempty"`
	Currency          string           `json:"currency"`
	Inventory         Inventory        `json:"inventory"`
	Variants          []ProductVariant `json:"variants,omitempty"`
	IsActive          bool             `json:"isActive"`
	Version           int              `json:"version"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Variant looks up a variant by id.
func (p *Product) Variant(id string) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// IsLowStock reports whether the product or any of its variants is low.
func (p Product) IsLowStock() bool {
	if p.Inventory.IsLow() {
		return true
	}
	for _, v := range p.Variants {
		if v.Inventory.IsLow() {
			return true
		}
	}
	return false
}

func (p Product) Clone() Product {
	out := p
	if p.Variants != nil {
		out.Variants = append([]ProductVariant(nil), p.Variants...)
	}
	if p.ComparePriceCents != nil {
		v := *p.ComparePriceCents
		out.ComparePriceCents = &v
	}
	return out
}

// StockLevel is the outcome of an inventory adjustment.
type StockLevel struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Tracked   bool   `json:"tracked"`
	Quantity  int    `json:"quantity"`
	LowStock  bool   `json:"lowStock"`
}
