package memory

import (
	"context"
	"sync"

	"github.com/erain9/swapbook/pkg/core"
)

// MemoryBackend implements OrderBookBackend interface with an in-memory slice
type MemoryBackend struct {
	sync.RWMutex
	orders []*core.Order
}

// NewMemoryBackend creates a new memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		orders: make([]*core.Order, 0),
	}
}

// Append stores a copy of order at the end of the book
func (b *MemoryBackend) Append(_ context.Context, order *core.Order) error {
	b.Lock()
	defer b.Unlock()
	b.orders = append(b.orders, order.Clone())
	return nil
}

// RemoveByID removes every order with the id
func (b *MemoryBackend) RemoveByID(_ context.Context, id string) (int, error) {
	b.Lock()
	defer b.Unlock()

	kept := make([]*core.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	removed := len(b.orders) - len(kept)
	b.orders = kept
	return removed, nil
}

// ReplaceByID replaces the first order with the id
func (b *MemoryBackend) ReplaceByID(_ context.Context, id string, order *core.Order) (bool, error) {
	b.Lock()
	defer b.Unlock()

	for i, o := range b.orders {
		if o.ID == id {
			b.orders[i] = order.Clone()
			return true, nil
		}
	}
	return false, nil
}

// SetLocked locks the first order of every id, or none of them
func (b *MemoryBackend) SetLocked(_ context.Context, ids ...string) (bool, error) {
	b.Lock()
	defer b.Unlock()

	targets := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		o := core.FindByID(b.orders, id)
		if o == nil {
			return false, nil
		}
		targets = append(targets, o)
	}
	for _, o := range targets {
		o.Locked = true
	}
	return true, nil
}

// Orders returns copies of every order in insertion order
func (b *MemoryBackend) Orders(_ context.Context) ([]*core.Order, error) {
	b.RLock()
	defer b.RUnlock()

	out := make([]*core.Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.Clone()
	}
	return out, nil
}

// Len returns the number of stored orders
func (b *MemoryBackend) Len(_ context.Context) (int, error) {
	b.RLock()
	defer b.RUnlock()
	return len(b.orders), nil
}

// Close implements OrderBookBackend
func (b *MemoryBackend) Close() error {
	return nil
}

var _ core.OrderBookBackend = (*MemoryBackend)(nil)
