// Package pebble stores the order book in an embedded Pebble database so a
// single instance keeps its book across restarts.
package pebble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/erain9/swapbook/pkg/core"
	"go.uber.org/zap"
)

// keys: o:<8-byte big-endian seq> -> JSON order, m:seq -> last seq
var (
	orderPrefix = []byte("o:")
	seqKey      = []byte("m:seq")
)

func orderKey(seq uint64) []byte {
	key := make([]byte, len(orderPrefix)+8)
	copy(key, orderPrefix)
	binary.BigEndian.PutUint64(key[len(orderPrefix):], seq)
	return key
}

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// PebbleBackend implements OrderBookBackend on a Pebble database
type PebbleBackend struct {
	mu     sync.Mutex
	db     *pebble.DB
	seq    uint64
	logger *zap.Logger
}

// NewPebbleBackend opens (or creates) the database at path
func NewPebbleBackend(path string, logger *zap.Logger) (*PebbleBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}

	b := &PebbleBackend{db: db, logger: logger}
	val, closer, err := db.Get(seqKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("read sequence: %w", err)
	default:
		b.seq = binary.BigEndian.Uint64(val)
		_ = closer.Close()
	}

	logger.Info("opened pebble order book", zap.String("path", path), zap.Uint64("seq", b.seq))
	return b, nil
}

type entry struct {
	key   []byte
	order *core.Order
}

// Append stores order at the end of the book
func (b *PebbleBackend) Append(_ context.Context, order *core.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	next := b.seq + 1
	var seqVal [8]byte
	binary.BigEndian.PutUint64(seqVal[:], next)

	batch := b.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(orderKey(next), data, nil); err != nil {
		return err
	}
	if err := batch.Set(seqKey, seqVal[:], nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		b.logger.Error("failed to append order", zap.String("orderID", order.ID), zap.Error(err))
		return fmt.Errorf("append order %s: %w", order.ID, err)
	}

	b.seq = next
	return nil
}

// RemoveByID removes every entry with the id
func (b *PebbleBackend) RemoveByID(_ context.Context, id string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.entries()
	if err != nil {
		return 0, err
	}

	batch := b.db.NewBatch()
	defer batch.Close()
	removed := 0
	for _, e := range entries {
		if e.order.ID != id {
			continue
		}
		if err := batch.Delete(e.key, nil); err != nil {
			return 0, err
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		b.logger.Error("failed to remove order", zap.String("orderID", id), zap.Error(err))
		return 0, fmt.Errorf("remove order %s: %w", id, err)
	}
	return removed, nil
}

// ReplaceByID replaces the first entry with the id
func (b *PebbleBackend) ReplaceByID(_ context.Context, id string, order *core.Order) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.first(id)
	if err != nil || e == nil {
		return false, err
	}
	return true, b.put(e.key, order)
}

// SetLocked locks the first entry of every id in one batch, or none of them
func (b *PebbleBackend) SetLocked(_ context.Context, ids ...string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.entries()
	if err != nil {
		return false, err
	}

	batch := b.db.NewBatch()
	defer batch.Close()
	for _, id := range ids {
		e := firstEntry(entries, id)
		if e == nil {
			return false, nil
		}
		e.order.Locked = true
		data, err := json.Marshal(e.order)
		if err != nil {
			return false, fmt.Errorf("marshal order %s: %w", id, err)
		}
		if err := batch.Set(e.key, data, nil); err != nil {
			return false, err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		b.logger.Error("failed to lock orders", zap.Strings("orderIDs", ids), zap.Error(err))
		return false, fmt.Errorf("lock orders %v: %w", ids, err)
	}
	return true, nil
}

// Orders returns every order in insertion order
func (b *PebbleBackend) Orders(_ context.Context) ([]*core.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.entries()
	if err != nil {
		return nil, err
	}
	orders := make([]*core.Order, len(entries))
	for i, e := range entries {
		orders[i] = e.order
	}
	return orders, nil
}

// Len returns the number of stored orders
func (b *PebbleBackend) Len(ctx context.Context) (int, error) {
	orders, err := b.Orders(ctx)
	if err != nil {
		return 0, err
	}
	return len(orders), nil
}

// Close closes the database
func (b *PebbleBackend) Close() error {
	return b.db.Close()
}

func (b *PebbleBackend) put(key []byte, order *core.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}
	if err := b.db.Set(key, data, pebble.Sync); err != nil {
		b.logger.Error("failed to update order", zap.String("orderID", order.ID), zap.Error(err))
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	return nil
}

func (b *PebbleBackend) first(id string) (*entry, error) {
	entries, err := b.entries()
	if err != nil {
		return nil, err
	}
	return firstEntry(entries, id), nil
}

func firstEntry(entries []entry, id string) *entry {
	for i := range entries {
		if entries[i].order.ID == id {
			return &entries[i]
		}
	}
	return nil
}

func (b *PebbleBackend) entries() ([]entry, error) {
	iter, err := b.db.NewIter(&pebble.IterOptions{
		LowerBound: orderPrefix,
		UpperBound: keyUpperBound(orderPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	defer iter.Close()

	var entries []entry
	for iter.First(); iter.Valid(); iter.Next() {
		var order core.Order
		if err := json.Unmarshal(iter.Value(), &order); err != nil {
			b.logger.Error("failed to unmarshal order", zap.Binary("key", iter.Key()), zap.Error(err))
			return nil, fmt.Errorf("decode order: %w", err)
		}
		key := append([]byte(nil), iter.Key()...)
		entries = append(entries, entry{key: key, order: &order})
	}
	return entries, iter.Error()
}

var _ core.OrderBookBackend = (*PebbleBackend)(nil)
