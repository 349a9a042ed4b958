package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/erain9/swapbook/pkg/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DefaultRedisOptions returns options for a local Redis
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{Addr: "localhost:6379"}
}

// NewRedisClient creates a Redis client from options
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// RedisBackend implements OrderBookBackend interface with Redis storage.
// Entries get a sequence number from a counter; a list of sequence numbers
// keeps insertion order and a hash maps each sequence number to the JSON
// encoded order.
type RedisBackend struct {
	sync.Mutex
	client     *redis.Client
	prefix     string
	seqKey     string
	entriesKey string
	ordersKey  string
	logger     *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackend{
		client:     client,
		prefix:     prefix,
		seqKey:     fmt.Sprintf("%s:seq", prefix),
		entriesKey: fmt.Sprintf("%s:entries", prefix),
		ordersKey:  fmt.Sprintf("%s:orders", prefix),
		logger:     logger,
	}
}

type entry struct {
	seq   string
	order *core.Order
}

// Append stores order at the end of the book
func (b *RedisBackend) Append(ctx context.Context, order *core.Order) error {
	b.Lock()
	defer b.Unlock()

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	seq, err := b.client.Incr(ctx, b.seqKey).Result()
	if err != nil {
		b.logger.Error("failed to allocate sequence", zap.String("orderID", order.ID), zap.Error(err))
		return fmt.Errorf("allocate sequence: %w", err)
	}
	field := strconv.FormatInt(seq, 10)

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.ordersKey, field, data)
		pipe.RPush(ctx, b.entriesKey, field)
		return nil
	})
	if err != nil {
		b.logger.Error("failed to append order", zap.String("orderID", order.ID), zap.Error(err))
		return fmt.Errorf("append order %s: %w", order.ID, err)
	}
	return nil
}

// RemoveByID removes every entry with the id
func (b *RedisBackend) RemoveByID(ctx context.Context, id string) (int, error) {
	b.Lock()
	defer b.Unlock()

	entries, err := b.entries(ctx)
	if err != nil {
		return 0, err
	}

	var seqs []string
	for _, e := range entries {
		if e.order.ID == id {
			seqs = append(seqs, e.seq)
		}
	}
	if len(seqs) == 0 {
		return 0, nil
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, seq := range seqs {
			pipe.LRem(ctx, b.entriesKey, 0, seq)
			pipe.HDel(ctx, b.ordersKey, seq)
		}
		return nil
	})
	if err != nil {
		b.logger.Error("failed to remove order", zap.String("orderID", id), zap.Error(err))
		return 0, fmt.Errorf("remove order %s: %w", id, err)
	}
	return len(seqs), nil
}

// ReplaceByID replaces the first entry with the id
func (b *RedisBackend) ReplaceByID(ctx context.Context, id string, order *core.Order) (bool, error) {
	b.Lock()
	defer b.Unlock()

	e, err := b.first(ctx, id)
	if err != nil || e == nil {
		return false, err
	}
	return true, b.put(ctx, e.seq, order)
}

// SetLocked locks the first entry of every id in one transaction, or none of them
func (b *RedisBackend) SetLocked(ctx context.Context, ids ...string) (bool, error) {
	b.Lock()
	defer b.Unlock()

	entries, err := b.entries(ctx)
	if err != nil {
		return false, err
	}

	values := make(map[string][]byte, len(ids))
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
		values[e.seq] = data
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for seq, data := range values {
			pipe.HSet(ctx, b.ordersKey, seq, data)
		}
		return nil
	})
	if err != nil {
		b.logger.Error("failed to lock orders", zap.Strings("orderIDs", ids), zap.Error(err))
		return false, fmt.Errorf("lock orders %v: %w", ids, err)
	}
	return true, nil
}

// Orders returns every order in insertion order
func (b *RedisBackend) Orders(ctx context.Context) ([]*core.Order, error) {
	b.Lock()
	defer b.Unlock()

	entries, err := b.entries(ctx)
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
func (b *RedisBackend) Len(ctx context.Context) (int, error) {
	n, err := b.client.LLen(ctx, b.entriesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return int(n), nil
}

// Clear deletes every key of this book
func (b *RedisBackend) Clear(ctx context.Context) error {
	return b.client.Del(ctx, b.seqKey, b.entriesKey, b.ordersKey).Err()
}

// Close closes the Redis client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) put(ctx context.Context, seq string, order *core.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}
	if err := b.client.HSet(ctx, b.ordersKey, seq, data).Err(); err != nil {
		b.logger.Error("failed to update order", zap.String("orderID", order.ID), zap.Error(err))
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	return nil
}

func (b *RedisBackend) first(ctx context.Context, id string) (*entry, error) {
	entries, err := b.entries(ctx)
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

func (b *RedisBackend) entries(ctx context.Context) ([]entry, error) {
	seqs, err := b.client.LRange(ctx, b.entriesKey, 0, -1).Result()
	if err != nil {
		b.logger.Error("failed to list entries", zap.Error(err))
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if len(seqs) == 0 {
		return nil, nil
	}

	values, err := b.client.HMGet(ctx, b.ordersKey, seqs...).Result()
	if err != nil {
		b.logger.Error("failed to load orders", zap.Error(err))
		return nil, fmt.Errorf("load orders: %w", err)
	}

	entries := make([]entry, 0, len(seqs))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			b.logger.Warn("dangling entry", zap.String("seq", seqs[i]))
			continue
		}
		var order core.Order
		if err := json.Unmarshal([]byte(raw), &order); err != nil {
			b.logger.Error("failed to unmarshal order", zap.String("seq", seqs[i]), zap.Error(err))
			return nil, fmt.Errorf("decode order at %s: %w", seqs[i], err)
		}
		entries = append(entries, entry{seq: seqs[i], order: &order})
	}
	return entries, nil
}

var _ core.OrderBookBackend = (*RedisBackend)(nil)
