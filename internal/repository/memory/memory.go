// Package memory is an in-process implementation of the repositories and the
// unit of work. It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-core/internal/domain"
	"marketplace-core/internal/repository/coupon"
	"marketplace-core/internal/repository/order"
	"marketplace-core/internal/repository/product"
	"marketplace-core/internal/repository/store"
	"marketplace-core/internal/repository/uow"

	"github.com/google/uuid"
)

// Store holds every entity. Units of work are serialized by txMu and undone
// from a snapshot when fn fails; writes outside Do also take txMu so they
// cannot be lost by a concurrent rollback.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	orders   map[string]domain.Order
	products map[string]domain.Product
	stores   map[string]domain.Store
	coupons  map[string]domain.Coupon

	now func() time.Time
}

func New() *Store {
	return &Store{
		orders:   map[string]domain.Order{},
		products: map[string]domain.Product{},
		stores:   map[string]domain.Store{},
		coupons:  map[string]domain.Coupon{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type snapshot struct {
	orders   map[string]domain.Order
	products map[string]domain.Product
	coupons  map[string]domain.Coupon
}

// Do implements uow.Runner.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := snapshot{
		orders:   maps.Clone(s.orders),
		products: maps.Clone(s.products),
		coupons:  maps.Clone(s.coupons),
	}
	s.mu.RUnlock()

	err := fn(ctx, uow.Repos{
		Orders:   &orderView{s: s, inTx: true},
		Products: &productView{s: s, inTx: true},
		Coupons:  &couponView{s: s, inTx: true},
	})
	if err != nil {
		s.mu.Lock()
		s.orders, s.products, s.coupons = snap.orders, snap.products, snap.coupons
		s.mu.Unlock()
	}
	return err
}

func (s *Store) Orders() order.Repository     { return &orderView{s: s} }
func (s *Store) Products() product.Repository { return &productView{s: s} }
func (s *Store) Coupons() coupon.Repository   { return &couponView{s: s} }
func (s *Store) Stores() store.Repository     { return &storeView{s: s} }

// lockWrite takes the locks a write needs and returns the matching unlock.
func (s *Store) lockWrite(inTx bool) func() {
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !inTx {
			s.txMu.Unlock()
		}
	}
}

type orderView struct {
	s    *Store
	inTx bool
}

func (v *orderView) GetByID(_ context.Context, id string) (*domain.Order, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	o, ok := v.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := o.Clone()
	return &out, nil
}

func (v *orderView) Create(_ context.Context, o *domain.Order) error {
	defer v.s.lockWrite(v.inTx)()
	for _, existing := range v.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return domain.ErrAlreadyExists
		}
	}
	now := v.s.now()
	o.ID = uuid.NewString()
	o.Version = 1
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	v.s.orders[o.ID] = o.Clone()
	return nil
}

func (v *orderView) Save(_ context.Context, o *domain.Order, expectedVersion int) error {
	defer v.s.lockWrite(v.inTx)()
	cur, ok := v.s.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	next := o.Clone()
	next.Version = expectedVersion + 1
	next.CreatedAt = cur.CreatedAt
	v.s.orders[o.ID] = next
	o.Version = next.Version
	return nil
}

func (v *orderView) List(_ context.Context, f order.Filter) ([]domain.Order, error) {
	v.s.mu.RLock()
	var result []domain.Order
	for _, o := range v.s.orders {
		if matchOrder(o, f) {
			result = append(result, o.Clone())
		}
	}
	v.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, f.Offset, f.Limit), nil
}

func matchOrder(o domain.Order, f order.Filter) bool {
	if len(f.StoreIDs) > 0 && !slices.Contains(f.StoreIDs, o.StoreID) {
		return false
	}
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !o.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	return true
}

type productView struct {
	s    *Store
	inTx bool
}

func (v *productView) GetByID(_ context.Context, id string) (*domain.Product, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	p, ok := v.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (v *productView) List(_ context.Context, f product.Filter) ([]domain.Product, error) {
	v.s.mu.RLock()
	var result []domain.Product
	for _, p := range v.s.products {
		if len(f.StoreIDs) > 0 && !slices.Contains(f.StoreIDs, p.StoreID) {
			continue
		}
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, p.ID) {
			continue
		}
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		result = append(result, p.Clone())
	}
	v.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return page(result, f.Offset, f.Limit), nil
}

func (v *productView) Save(_ context.Context, p *domain.Product, expectedVersion int) error {
	defer v.s.lockWrite(v.inTx)()
	cur, ok := v.s.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	next := p.Clone()
	next.Version = expectedVersion + 1
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = v.s.now()
	v.s.products[p.ID] = next
	p.Version, p.UpdatedAt = next.Version, next.UpdatedAt
	return nil
}

func (v *productView) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	defer v.s.lockWrite(v.inTx)()
	now := v.s.now()
	next := p.Clone()
	next.UpdatedAt = now
	for id, cur := range v.s.products {
		if cur.SKU == p.SKU {
			next.ID = id
			next.Version = cur.Version + 1
			next.CreatedAt = cur.CreatedAt
			v.s.products[id] = next
			out := next.Clone()
			return &out, nil
		}
	}
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	next.Version = 1
	next.CreatedAt = now
	v.s.products[next.ID] = next
	out := next.Clone()
	return &out, nil
}

type couponView struct {
	s    *Store
	inTx bool
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (v *couponView) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	code = normalizeCode(code)
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, c := range v.s.coupons {
		if c.Code == code {
			out := cloneCoupon(c)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (v *couponView) Save(_ context.Context, c *domain.Coupon, expectedVersion int) error {
	defer v.s.lockWrite(v.inTx)()
	cur, ok := v.s.coupons[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	if c.UsageLimit != nil && c.UsedCount > *c.UsageLimit {
		return domain.Validationf("coupon %s used beyond its limit", c.Code)
	}
	cur.UsedCount = c.UsedCount
	cur.IsActive = c.IsActive
	cur.Version = expectedVersion + 1
	v.s.coupons[c.ID] = cur
	c.Version = cur.Version
	return nil
}

func (v *couponView) Upsert(_ context.Context, c domain.Coupon) (*domain.Coupon, error) {
	defer v.s.lockWrite(v.inTx)()
	next := cloneCoupon(c)
	next.Code = normalizeCode(c.Code)
	if next.StartsAt.IsZero() {
		next.StartsAt = v.s.now()
	}
	for id, cur := range v.s.coupons {
		if cur.Code == next.Code {
			next.ID = id
			next.UsedCount = cur.UsedCount
			next.Version = cur.Version + 1
			next.CreatedAt = cur.CreatedAt
			v.s.coupons[id] = next
			out := cloneCoupon(next)
			return &out, nil
		}
	}
	next.ID = uuid.NewString()
	next.UsedCount = 0
	next.Version = 1
	next.CreatedAt = v.s.now()
	v.s.coupons[next.ID] = next
	out := cloneCoupon(next)
	return &out, nil
}

func cloneCoupon(c domain.Coupon) domain.Coupon {
	if c.UsageLimit != nil {
		l := *c.UsageLimit
		c.UsageLimit = &l
	}
	return c
}

type storeView struct {
	s *Store
}

func (v *storeView) GetByID(_ context.Context, id string) (*domain.Store, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	st, ok := v.s.stores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (v *storeView) Upsert(_ context.Context, st domain.Store) (*domain.Store, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if st.Category == "" {
		st.Category = "other"
	}
	for id, cur := range v.s.stores {
		if cur.Slug == st.Slug {
			st.ID = id
			st.CreatedAt = cur.CreatedAt
			v.s.stores[id] = st
			return &st, nil
		}
	}
	st.ID = uuid.NewString()
	st.CreatedAt = v.s.now()
	v.s.stores[st.ID] = st
	return &st, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
