package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-core/internal/domain"
	"marketplace-core/internal/repository/uow"
	"marketplace-core/internal/service/inventory"

	"github.com/google/uuid"
)

// TransitionInput requests a status change. PaymentStatus, TrackingNumber and
// EstimatedDelivery are applied together with the status when set; payment
// status is never derived from the order status.
type TransitionInput struct {
	OrderID           string
	Target            domain.OrderStatus
	Actor             domain.Actor
	PaymentStatus     *domain.PaymentStatus
	TrackingNumber    *string
	EstimatedDelivery *time.Time
}

// Transition moves an order to in.Target.
//
// The actor is checked before anything is written. Requesting the current
// status returns the stored order without writing or publishing. The first
// forward step out of pending takes the items out of stock; cancelling or
// refunding puts them back if they were taken. Stock and order are written in
// one unit of work, and exactly one lifecycle event is published after it
// commits.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*domain.Order, error) {
	if !in.Target.Valid() {
		return nil, domain.Validationf("unknown order status %q", in.Target)
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.Valid() {
		return nil, domain.Validationf("unknown payment status %q", *in.PaymentStatus)
	}

	unlock := s.locks.Lock(in.OrderID)
	defer unlock()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		res, err := s.transitionOnce(ctx, in)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.logger.Printf("order: transition id=%s to=%s attempt=%d version conflict", in.OrderID, in.Target, attempt)
			continue
		}
		if err != nil {
			s.metrics.Transition(string(res.from), string(in.Target), errorLabel(err))
			return nil, err
		}
		if res.noop {
			s.metrics.Transition(string(res.from), string(in.Target), "noop")
			return res.order, nil
		}

		s.inventory.Observe(res.batch)
		s.metrics.Transition(string(res.from), string(in.Target), "ok")
		s.logger.Printf("order: id=%s number=%s %s -> %s actor=%s", res.order.ID, res.order.OrderNumber, res.from, in.Target, in.Actor.ID)
		s.publish(ctx, res.event)
		return res.order, nil
	}

	s.metrics.Transition("", string(in.Target), "conflict")
	return nil, fmt.Errorf("transition order %s: %w", in.OrderID, domain.ErrConcurrentModification)
}

type transitionResult struct {
	order *domain.Order
	from  domain.OrderStatus
	noop  bool
	batch inventory.Batch
	event domain.LifecycleEvent
}

func (s *Service) transitionOnce(ctx context.Context, in TransitionInput) (transitionResult, error) {
	var res transitionResult
	err := s.runner.Do(ctx, func(ctx context.Context, r uow.Repos) error {
		o, err := r.Orders.GetByID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		res.from = o.Status

		if o.Status == in.Target {
			if !s.authz.CanView(in.Actor, *o) {
				return domain.ErrUnauthorized
			}
			res.order, res.noop = o, true
			return nil
		}
		if !s.authz.CanTransition(in.Actor, *o, in.Target) {
			return domain.ErrUnauthorized
		}
		if !o.Status.CanTransitionTo(in.Target) {
			return &domain.InvalidTransitionError{From: o.Status, To: in.Target}
		}

		expected := o.Version
		switch {
		case in.Target.Voided() && o.InventoryApplied:
			res.batch, err = s.inventory.ApplyLines(ctx, r.Products, lines(o.Items), 1)
			if err != nil {
				return err
			}
			o.InventoryApplied = false
		case !in.Target.Voided() && !o.InventoryApplied && o.Status == domain.OrderStatusPending:
			res.batch, err = s.inventory.ApplyLines(ctx, r.Products, lines(o.Items), -1)
			if err != nil {
				return err
			}
			o.InventoryApplied = true
		}

		now := s.now()
		o.Status = in.Target
		o.UpdatedAt = now
		if in.PaymentStatus != nil {
			o.PaymentStatus = *in.PaymentStatus
		}
		if in.TrackingNumber != nil {
			tn := *in.TrackingNumber
			o.TrackingNumber = &tn
		}
		if in.EstimatedDelivery != nil {
			ed := in.EstimatedDelivery.UTC()
			o.EstimatedDelivery = &ed
		}
		if err := r.Orders.Save(ctx, o, expected); err != nil {
			return err
		}

		res.order = o
		res.event = domain.LifecycleEvent{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			StoreID:     o.StoreID,
			From:        res.from,
			To:          in.Target,
			ActorID:     in.Actor.ID,
			Timestamp:   now,
		}
		return nil
	})
	return res, err
}

// publish delivers ev once. The transition is already committed, so a
// failure is only logged and counted.
func (s *Service) publish(ctx context.Context, ev domain.LifecycleEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		s.metrics.PublishFailed(string(ev.To))
		s.logger.Printf("order: publish event=%s order=%s %s -> %s error=%v", ev.ID, ev.OrderID, ev.From, ev.To, err)
	}
}

func lines(items []domain.OrderItem) []inventory.Line {
	out := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		out = append(out, inventory.Line{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return out
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}
