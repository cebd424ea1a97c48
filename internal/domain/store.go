package domain

import "time"

type Store struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Category  string    `json:"category,omitempty"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role is the capability class of an authenticated caller.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleMerchant   Role = "merchant"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleDriver, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	ID       string   `json:"id"`
	Role     Role     `json:"role"`
	StoreIDs []string `json:"storeIds,omitempty"`
}

// ManagesStore reports whether storeID is one of the actor's stores.
func (a Actor) ManagesStore(storeID string) bool {
	for _, id := range a.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}
