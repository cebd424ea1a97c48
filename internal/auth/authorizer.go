// Package auth decides what an actor may do and turns bearer tokens into
// actors.
package auth

import "marketplace-core/internal/domain"

// Authorizer is the role-based capability check. It holds no state.
type Authorizer struct{}

func NewAuthorizer() Authorizer { return Authorizer{} }

// CanTransition reports whether actor may move o to target.
func (Authorizer) CanTransition(actor domain.Actor, o domain.Order, target domain.OrderStatus) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSuperAdmin:
		return true
	case domain.RoleMerchant:
		return actor.ManagesStore(o.StoreID)
	case domain.RoleDriver:
		return (o.Status == domain.OrderStatusReady && target == domain.OrderStatusOutForDelivery) ||
			(o.Status == domain.OrderStatusOutForDelivery && target == domain.OrderStatusDelivered)
	case domain.RoleCustomer:
		return actor.ID != "" && o.CustomerID == actor.ID &&
			target == domain.OrderStatusCancelled &&
			(o.Status == domain.OrderStatusPending || o.Status == domain.OrderStatusConfirmed)
	}
	return false
}

// DriverStatuses are the order states visible to drivers.
var DriverStatuses = []domain.OrderStatus{
	domain.OrderStatusReady,
	domain.OrderStatusOutForDelivery,
	domain.OrderStatusDelivered,
}

func (Authorizer) CanView(actor domain.Actor, o domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSuperAdmin:
		return true
	case domain.RoleMerchant:
		return actor.ManagesStore(o.StoreID)
	case domain.RoleDriver:
		for _, s := range DriverStatuses {
			if o.Status == s {
				return true
			}
		}
		return false
	case domain.RoleCustomer:
		return actor.ID != "" && o.CustomerID == actor.ID
	}
	return false
}

func (Authorizer) CanAdjustInventory(actor domain.Actor, p domain.Product) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == domain.RoleMerchant && actor.ManagesStore(p.StoreID)
}

// CanViewAnalytics checks access to a store's analytics. An empty storeID
// means platform-wide figures, which only admins may read.
func (Authorizer) CanViewAnalytics(actor domain.Actor, storeID string) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == domain.RoleMerchant && storeID != "" && actor.ManagesStore(storeID)
}
