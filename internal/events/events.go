// Package events delivers committed order lifecycle events to the configured
// sinks and keeps the per-order status history.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"marketplace-core/internal/domain"
)

// Publisher delivers one lifecycle event. Delivery is at most once: callers
// do not retry and a failed publish never undoes the committed change.
type Publisher interface {
	Publish(ctx context.Context, ev domain.LifecycleEvent) error
}

// Recorder is a Publisher that also serves the stored history of an order.
type Recorder interface {
	Publisher
	History(ctx context.Context, orderID string) ([]domain.LifecycleEvent, error)
}

func encode(ev domain.LifecycleEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	return data, nil
}

// Multi publishes to every sink, attempting all of them even when one fails.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryRecorder keeps events in process. It is the history store when no
// MongoDB is configured.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events map[string][]domain.LifecycleEvent
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{events: map[string][]domain.LifecycleEvent{}}
}

func (r *MemoryRecorder) Publish(_ context.Context, ev domain.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.OrderID] = append(r.events[ev.OrderID], ev)
	return nil
}

func (r *MemoryRecorder) History(_ context.Context, orderID string) ([]domain.LifecycleEvent, error) {
	r.mu.RLock()
	out := append([]domain.LifecycleEvent(nil), r.events[orderID]...)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// All returns every recorded event across orders, oldest first.
func (r *MemoryRecorder) All() []domain.LifecycleEvent {
	r.mu.RLock()
	var out []domain.LifecycleEvent
	for _, evs := range r.events {
		out = append(out, evs...)
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
