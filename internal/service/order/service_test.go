package order

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"marketplace-core/internal/auth"
	"marketplace-core/internal/domain"
	"marketplace-core/internal/events"
	"marketplace-core/internal/repository/memory"
	orderrepo "marketplace-core/internal/repository/order"
	"marketplace-core/internal/repository/uow"
	"marketplace-core/internal/service/inventory"

	"github.com/shopspring/decimal"
)

var (
	admin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	merchant = domain.Actor{ID: "merchant-1", Role: domain.RoleMerchant, StoreIDs: []string{"store-1"}}
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	driver   = domain.Actor{ID: "driver-1", Role: domain.RoleDriver}
)

type fixture struct {
	store   *memory.Store
	rec     *events.MemoryRecorder
	svc     *Service
	product *domain.Product
	order   *domain.Order
	clock   time.Time
}

type fixtureOpts struct {
	stock     int
	publisher events.Publisher
	runner    func(uow.Runner) uow.Runner
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: memory.New(),
		rec:   events.NewMemoryRecorder(),
		clock: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	p, err := f.store.Products().Upsert(ctx, domain.Product{
		StoreID:    "store-1",
		SKU:        "WIDGET",
		Name:       "Widget",
		PriceCents: 1000,
		Currency:   "USD",
		IsActive:   true,
		Inventory:  domain.Inventory{TrackQuantity: true, Quantity: opts.stock, LowStockThreshold: 2},
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	f.product = p

	o := &domain.Order{
		OrderNumber:   "ORD-TEST0001",
		CustomerID:    customer.ID,
		StoreID:       "store-1",
		Items:         []domain.OrderItem{{ProductID: p.ID, Name: "Widget", UnitPriceCents: 1000, Quantity: 3, TotalCents: 3000}},
		SubtotalCents: 3000,
		TotalCents:    3000,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentMethod: domain.PaymentMethodCreditCard,
		CreatedAt:     f.clock.Add(-time.Hour),
	}
	if err := f.store.Orders().Create(ctx, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	f.order = o

	var runner uow.Runner = f.store
	if opts.runner != nil {
		runner = opts.runner(f.store)
	}
	var pub events.Publisher = f.rec
	if opts.publisher != nil {
		pub = events.Multi{opts.publisher, f.rec}
	}
	f.svc = New(Deps{
		Runner:     runner,
		Orders:     f.store.Orders(),
		Inventory:  inventory.New(runner, auth.NewAuthorizer(), nil, nil, 3),
		Authorizer: auth.NewAuthorizer(),
		Publisher:  pub,
		History:    f.rec,
		Pricing:    Pricing{TaxRate: decimal.RequireFromString("0.1"), ShippingFlatCents: 500},
		Now:        func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), f.product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Inventory.Quantity
}

func (f *fixture) stored(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().GetByID(context.Background(), f.order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o
}

func (f *fixture) transition(actor domain.Actor, target domain.OrderStatus) (*domain.Order, error) {
	return f.svc.Transition(context.Background(), TransitionInput{OrderID: f.order.ID, Target: target, Actor: actor})
}

func TestTransition_ConfirmDecrementsOnceOnReplay(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})

	o, err := f.transition(merchant, domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if o.Status != domain.OrderStatusConfirmed || !o.InventoryApplied {
		t.Fatalf("unexpected order %+v", o)
	}
	if !o.UpdatedAt.Equal(f.clock) {
		t.Fatalf("expected updatedAt %v, got %v", f.clock, o.UpdatedAt)
	}
	if got := f.stock(t); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}

	again, err := f.transition(merchant, domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := f.stock(t); got != 7 {
		t.Fatalf("replay changed stock to %d", got)
	}
	if again.Version != o.Version {
		t.Fatalf("replay wrote the order: version %d -> %d", o.Version, again.Version)
	}
	if n := len(f.rec.All()); n != 1 {
		t.Fatalf("expected exactly one event, got %d", n)
	}

	if _, err := f.transition(merchant, domain.OrderStatusPreparing); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if got := f.stock(t); got != 7 {
		t.Fatalf("later forward step changed stock to %d", got)
	}
}

func TestTransition_CancelRestoresOnce(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})

	if _, err := f.transition(merchant, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	o, err := f.transition(customer, domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.InventoryApplied {
		t.Fatalf("expected inventory flag cleared")
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}

	if _, err := f.transition(admin, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel replay: %v", err)
	}
	_, err = f.transition(admin, domain.OrderStatusRefunded)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected refund of cancelled order rejected, got %v", err)
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("expected stock to stay at 10, got %d", got)
	}
}

func TestTransition_CancelPendingLeavesStock(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	if _, err := f.transition(customer, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("expected stock 10, got %d", got)
	}
}

func TestTransition_InvalidLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	before := f.stored(t)

	_, err := f.transition(admin, domain.OrderStatusReady)
	var te *domain.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if te.From != domain.OrderStatusPending || te.To != domain.OrderStatusReady {
		t.Fatalf("unexpected error fields %+v", te)
	}

	after := f.stored(t)
	if after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) || after.Version != before.Version {
		t.Fatalf("order modified by invalid transition: %+v", after)
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("stock modified by invalid transition: %d", got)
	}
	if n := len(f.rec.All()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestTransition_UnknownStatusIsValidationError(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	_, err := f.transition(admin, "shipped")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransition_UnauthorizedBeforeMutation(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	other := domain.Actor{ID: "m2", Role: domain.RoleMerchant, StoreIDs: []string{"store-2"}}

	for _, actor := range []domain.Actor{other, customer, driver} {
		_, err := f.transition(actor, domain.OrderStatusConfirmed)
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("actor %s: expected unauthorized, got %v", actor.ID, err)
		}
	}
	if got := f.stored(t); got.Status != domain.OrderStatusPending || got.Version != 1 {
		t.Fatalf("order modified: %+v", got)
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("stock modified: %d", got)
	}
}

func TestTransition_DriverDelivers(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	for _, st := range []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusPreparing, domain.OrderStatusReady} {
		if _, err := f.transition(merchant, st); err != nil {
			t.Fatalf("to %s: %v", st, err)
		}
	}
	tracking := "TRK-9"
	o, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID: f.order.ID, Target: domain.OrderStatusOutForDelivery, Actor: driver, TrackingNumber: &tracking,
	})
	if err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if o.TrackingNumber == nil || *o.TrackingNumber != "TRK-9" {
		t.Fatalf("expected tracking number set, got %v", o.TrackingNumber)
	}
	if _, err := f.transition(driver, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := f.transition(admin, domain.OrderStatusCancelled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected delivered order to be terminal, got %v", err)
	}
}

func TestTransition_PaymentStatusOnlyWhenExplicit(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})

	o, err := f.transition(merchant, domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if o.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("payment status changed implicitly to %s", o.PaymentStatus)
	}

	paid := domain.PaymentStatusPaid
	o, err = f.svc.Transition(context.Background(), TransitionInput{
		OrderID: f.order.ID, Target: domain.OrderStatusPreparing, Actor: merchant, PaymentStatus: &paid,
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if o.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", o.PaymentStatus)
	}
}

func TestTransition_InsufficientStockKeepsPending(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 2})
	_, err := f.transition(merchant, domain.OrderStatusConfirmed)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := f.stored(t); got.Status != domain.OrderStatusPending || got.InventoryApplied {
		t.Fatalf("order modified: %+v", got)
	}
	if got := f.stock(t); got != 2 {
		t.Fatalf("stock modified: %d", got)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, domain.LifecycleEvent) error {
	return errors.New("broker unavailable")
}

func TestTransition_PublishFailureKeepsCommit(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10, publisher: failingPublisher{}})

	o, err := f.transition(merchant, domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if o.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status %s", o.Status)
	}
	if got := f.stored(t); got.Status != domain.OrderStatusConfirmed {
		t.Fatalf("commit rolled back: %s", got.Status)
	}
	if got := f.stock(t); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}
}

// alwaysConflict fails every order save inside a unit of work.
type alwaysConflict struct {
	inner uow.Runner
	saves int
}

type conflictingOrders struct {
	orderrepo.Repository
	r *alwaysConflict
}

func (c conflictingOrders) Save(context.Context, *domain.Order, int) error {
	c.r.saves++
	return domain.ErrVersionConflict
}

func (a *alwaysConflict) Do(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	return a.inner.Do(ctx, func(ctx context.Context, r uow.Repos) error {
		r.Orders = conflictingOrders{Repository: r.Orders, r: a}
		return fn(ctx, r)
	})
}

func TestTransition_RetryExhaustion(t *testing.T) {
	var wrapped *alwaysConflict
	f := newFixture(t, fixtureOpts{stock: 10, runner: func(inner uow.Runner) uow.Runner {
		wrapped = &alwaysConflict{inner: inner}
		return wrapped
	}})

	_, err := f.transition(merchant, domain.OrderStatusConfirmed)
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
	if wrapped.saves != 3 {
		t.Fatalf("expected 3 attempts, got %d", wrapped.saves)
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("inventory not rolled back: %d", got)
	}
	if n := len(f.rec.All()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestTransition_ConcurrentCallsDecrementOnce(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.transition(merchant, domain.OrderStatusConfirmed); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent confirm: %v", err)
	}

	if got := f.stock(t); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}
	if n := len(f.rec.All()); n != 1 {
		t.Fatalf("expected one event, got %d", n)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	if _, err := f.transition(merchant, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	f.clock = f.clock.Add(time.Minute)
	if _, err := f.transition(merchant, domain.OrderStatusPreparing); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	hist, err := f.svc.History(context.Background(), customer, f.order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].To != domain.OrderStatusConfirmed || hist[1].From != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected history %+v", hist)
	}
	if hist[0].ActorID != merchant.ID {
		t.Fatalf("expected actor recorded, got %q", hist[0].ActorID)
	}

	stranger := domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	if _, err := f.svc.History(context.Background(), stranger, f.order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
}

func TestList_ScopesByRole(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	ctx := context.Background()
	other := &domain.Order{OrderNumber: "ORD-TEST0002", CustomerID: "cust-2", StoreID: "store-2", Status: domain.OrderStatusReady}
	if err := f.store.Orders().Create(ctx, other); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name  string
		actor domain.Actor
		in    ListInput
		want  int
		err   error
	}{
		{"admin sees all", admin, ListInput{}, 2, nil},
		{"merchant sees own stores", merchant, ListInput{}, 1, nil},
		{"merchant foreign store", merchant, ListInput{StoreID: "store-2"}, 0, domain.ErrUnauthorized},
		{"customer sees own", customer, ListInput{}, 1, nil},
		{"driver sees deliverable", driver, ListInput{}, 1, nil},
		{"driver asking for pending", driver, ListInput{Statuses: []domain.OrderStatus{domain.OrderStatusPending}}, 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := f.svc.List(ctx, tc.actor, tc.in)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != tc.want {
				t.Fatalf("expected %d orders, got %d", tc.want, len(list))
			}
		})
	}
}

var orderNumberRe = regexp.MustCompile(`^ORD-[A-Z0-9]{8}$`)

func TestPlace_ComputesTotalsAndRedeemsCoupon(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 10})
	ctx := context.Background()
	limit := 1
	if _, err := f.store.Coupons().Upsert(ctx, domain.Coupon{
		Code: "SAVE10", Type: domain.CouponTypePercentage, Value: 10, UsageLimit: &limit, IsActive: true,
		StartsAt: f.clock.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	in := PlaceInput{
		Actor:           customer,
		StoreID:         "store-1",
		Items:           []PlaceItem{{ProductID: f.product.ID, Quantity: 2}},
		PaymentMethod:   domain.PaymentMethodCashOnDelivery,
		ShippingAddress: domain.Address{Street: "1 Main St", City: "Springfield"},
		CouponCode:      "save10",
	}
	o, err := f.svc.Place(ctx, in)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !orderNumberRe.MatchString(o.OrderNumber) {
		t.Fatalf("unexpected order number %q", o.OrderNumber)
	}
	// 2000 subtotal, 200 off, 10% tax on 1800, 500 shipping
	if o.SubtotalCents != 2000 || o.DiscountCents != 200 || o.TaxCents != 180 || o.ShippingCents != 500 || o.TotalCents != 2480 {
		t.Fatalf("unexpected totals %+v", o)
	}
	if o.Status != domain.OrderStatusPending || o.InventoryApplied || o.BillingAddress.City != "Springfield" {
		t.Fatalf("unexpected order %+v", o)
	}
	if got := f.stock(t); got != 10 {
		t.Fatalf("placing must not take stock, got %d", got)
	}

	c, err := f.store.Coupons().GetByCode(ctx, "SAVE10")
	if err != nil {
		t.Fatalf("get coupon: %v", err)
	}
	if c.UsedCount != 1 {
		t.Fatalf("expected coupon redeemed once, got %d", c.UsedCount)
	}

	if _, err := f.svc.Place(ctx, in); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected exhausted coupon rejected, got %v", err)
	}
}

func TestPlace_Rejects(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 3})
	ctx := context.Background()
	base := PlaceInput{
		Actor:         customer,
		StoreID:       "store-1",
		Items:         []PlaceItem{{ProductID: f.product.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCreditCard,
	}

	tooMany := base
	tooMany.Items = []PlaceItem{{ProductID: f.product.ID, Quantity: 2}, {ProductID: f.product.ID, Quantity: 2}}
	if _, err := f.svc.Place(ctx, tooMany); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	wrongStore := base
	wrongStore.StoreID = "store-2"
	if _, err := f.svc.Place(ctx, wrongStore); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	badPayment := base
	badPayment.PaymentMethod = "barter"
	if _, err := f.svc.Place(ctx, badPayment); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	missing := base
	missing.Items = []PlaceItem{{ProductID: "nope", Quantity: 1}}
	if _, err := f.svc.Place(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, _ := f.store.Orders().List(ctx, orderrepo.Filter{})
	if len(list) != 1 {
		t.Fatalf("rejected checkouts must not create orders, have %d", len(list))
	}
}
