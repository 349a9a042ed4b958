package core

import "context"

// OrderBookBackend defines the interface for different backend implementations.
// Implementations keep orders in insertion order and return copies, so callers
// may mutate what they read without touching the store.
type OrderBookBackend interface {
	// Append stores order at the end of the book
	Append(ctx context.Context, order *Order) error
	// RemoveByID removes every entry with the id and returns how many were removed
	RemoveByID(ctx context.Context, id string) (int, error)
	// ReplaceByID replaces the first entry with the id
	ReplaceByID(ctx context.Context, id string, order *Order) (bool, error)
	// SetLocked locks the first entry of every id in one write. When any id is
	// missing it returns false and locks nothing. Locks are never released.
	SetLocked(ctx context.Context, ids ...string) (bool, error)

	// Orders returns every stored order in insertion order
	Orders(ctx context.Context) ([]*Order, error)
	Len(ctx context.Context) (int, error)

	Close() error
}

// FilterByUser returns the orders owned by user
func FilterByUser(orders []*Order, user ActorID) []*Order {
	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		if o.User == user {
			out = append(out, o)
		}
	}
	return out
}

// FilterExcludingUser returns the orders not owned by user
func FilterExcludingUser(orders []*Order, user ActorID) []*Order {
	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		if o.User != user {
			out = append(out, o)
		}
	}
	return out
}

// FindByID returns the first order with the id, or nil
func FindByID(orders []*Order, id string) *Order {
	for _, o := range orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}
