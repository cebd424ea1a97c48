package order

import (
	"context"
	"io"
	"log"
	"time"

	"marketplace-core/internal/auth"
	"marketplace-core/internal/domain"
	"marketplace-core/internal/events"
	"marketplace-core/internal/metrics"
	orderrepo "marketplace-core/internal/repository/order"
	"marketplace-core/internal/repository/uow"
	"marketplace-core/internal/service/inventory"

	"github.com/shopspring/decimal"
)

const (
	defaultMaxAttempts = 3
	defaultListLimit   = 50
	maxListLimit       = 200
	publishTimeout     = 5 * time.Second
)

type orderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f orderrepo.Filter) ([]domain.Order, error)
}

type authorizer interface {
	CanTransition(actor domain.Actor, o domain.Order, target domain.OrderStatus) bool
	CanView(actor domain.Actor, o domain.Order) bool
}

type historyReader interface {
	History(ctx context.Context, orderID string) ([]domain.LifecycleEvent, error)
}

// Pricing holds the checkout charges applied on top of item prices.
type Pricing struct {
	TaxRate           decimal.Decimal
	ShippingFlatCents int64
	DefaultCurrency   string
}

// Deps are the collaborators of the order service. Runner, Orders,
// Inventory and Authorizer are required.
type Deps struct {
	Runner     uow.Runner
	Orders     orderReader
	Inventory  *inventory.Service
	Authorizer authorizer
	Publisher  events.Publisher
	History    historyReader
	Metrics    *metrics.Metrics
	Logger     *log.Logger
	Pricing    Pricing

	// MaxAttempts bounds the retries of a unit of work on a version conflict.
	MaxAttempts int
	Now         func() time.Time
}

type Service struct {
	runner      uow.Runner
	orders      orderReader
	inventory   *inventory.Service
	authz       authorizer
	publisher   events.Publisher
	history     historyReader
	metrics     *metrics.Metrics
	logger      *log.Logger
	pricing     Pricing
	maxAttempts int
	now         func() time.Time
	locks       *keyedMutex
}

func New(d Deps) *Service {
	s := &Service{
		runner:      d.Runner,
		orders:      d.Orders,
		inventory:   d.Inventory,
		authz:       d.Authorizer,
		publisher:   d.Publisher,
		history:     d.History,
		metrics:     d.Metrics,
		logger:      d.Logger,
		pricing:     d.Pricing,
		maxAttempts: d.MaxAttempts,
		now:         d.Now,
		locks:       newKeyedMutex(),
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.pricing.DefaultCurrency == "" {
		s.pricing.DefaultCurrency = "USD"
	}
	return s
}

// Get returns the order when actor may see it. Orders the actor may not see
// are reported as not found.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanView(actor, *o) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

type ListInput struct {
	StoreID  string
	Statuses []domain.OrderStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// List returns the orders visible to actor, newest first.
func (s *Service) List(ctx context.Context, actor domain.Actor, in ListInput) ([]domain.Order, error) {
	for _, st := range in.Statuses {
		if !st.Valid() {
			return nil, domain.Validationf("unknown order status %q", st)
		}
	}
	f := orderrepo.Filter{
		Statuses:    in.Statuses,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if in.StoreID != "" {
		f.StoreIDs = []string{in.StoreID}
	}

	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSuperAdmin:
	case domain.RoleMerchant:
		if in.StoreID != "" && !actor.ManagesStore(in.StoreID) {
			return nil, domain.ErrUnauthorized
		}
		if len(actor.StoreIDs) == 0 {
			return []domain.Order{}, nil
		}
		if in.StoreID == "" {
			f.StoreIDs = actor.StoreIDs
		}
	case domain.RoleDriver:
		f.Statuses = intersectStatuses(in.Statuses, auth.DriverStatuses)
		if len(f.Statuses) == 0 {
			return []domain.Order{}, nil
		}
	case domain.RoleCustomer:
		if actor.ID == "" {
			return nil, domain.ErrUnauthorized
		}
		f.CustomerID = actor.ID
	default:
		return nil, domain.ErrUnauthorized
	}

	list, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Order{}
	}
	return list, nil
}

// intersectStatuses keeps the requested statuses that are allowed; an empty
// request means every allowed status.
func intersectStatuses(requested, allowed []domain.OrderStatus) []domain.OrderStatus {
	if len(requested) == 0 {
		return append([]domain.OrderStatus(nil), allowed...)
	}
	var out []domain.OrderStatus
	for _, r := range requested {
		for _, a := range allowed {
			if r == a {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// History returns the recorded status changes of an order, oldest first.
func (s *Service) History(ctx context.Context, actor domain.Actor, id string) ([]domain.LifecycleEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.LifecycleEvent{}, nil
	}
	evs, err := s.history.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []domain.LifecycleEvent{}
	}
	return evs, nil
}
