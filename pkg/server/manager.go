package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erain9/swapbook/pkg/backend/memory"
	"github.com/erain9/swapbook/pkg/backend/pebble"
	"github.com/erain9/swapbook/pkg/backend/redis"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// Backend types
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

// ErrUnsupportedBackend is returned for an unknown backend type
var ErrUnsupportedBackend = errors.New("unsupported backend type")

// BackendOptions selects and configures the store behind the book
type BackendOptions struct {
	Type        string
	Redis       redis.RedisOptions
	RedisPrefix string
	PebblePath  string
	// Logger is handed to the backends that talk to external systems
	Logger *zap.Logger
}

// OrderBookInfo contains metadata about an order book
type OrderBookInfo struct {
	Name       string    `json:"name"`
	Backend    string    `json:"backend"`
	CreatedAt  time.Time `json:"created_at"`
	OrderCount int       `json:"order_count"`
}

// OrderBookManager owns the order book of this instance and the store
// behind it
type OrderBookManager struct {
	mu      sync.RWMutex
	book    *core.OrderBook
	backend core.OrderBookBackend
	info    OrderBookInfo
	closed  bool
}

// NewOrderBookManager opens the configured backend and builds the book on it
func NewOrderBookManager(ctx context.Context, name string, opts BackendOptions, bookOpts ...core.Option) (*OrderBookManager, error) {
	logger := logging.FromContext(ctx).With().
		Str("order_book", name).
		Str("backend", opts.Type).
		Logger()

	backend, err := openBackend(ctx, name, opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open order book backend")
		return nil, err
	}

	m := &OrderBookManager{
		book:    core.NewOrderBook(backend, bookOpts...),
		backend: backend,
		info: OrderBookInfo{
			Name:      name,
			Backend:   opts.Type,
			CreatedAt: time.Now(),
		},
	}
	if m.info.Backend == "" {
		m.info.Backend = BackendMemory
	}

	logger.Info().Msg("Created order book")
	return m, nil
}

func openBackend(ctx context.Context, name string, opts BackendOptions) (core.OrderBookBackend, error) {
	switch opts.Type {
	case "", BackendMemory:
		return memory.NewMemoryBackend(), nil
	case BackendRedis:
		client := redis.NewRedisClient(opts.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Redis.Addr, err)
		}
		prefix := opts.RedisPrefix
		if prefix == "" {
			prefix = name
		}
		return redis.NewRedisBackend(client, prefix, opts.Logger), nil
	case BackendPebble:
		if opts.PebblePath == "" {
			return nil, fmt.Errorf("%w: pebble backend needs a path", ErrUnsupportedBackend)
		}
		return pebble.NewPebbleBackend(opts.PebblePath, opts.Logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, opts.Type)
	}
}

// Book returns the managed order book
func (m *OrderBookManager) Book() *core.OrderBook {
	return m.book
}

// Info returns the book metadata with a fresh order count
func (m *OrderBookManager) Info(ctx context.Context) (OrderBookInfo, error) {
	count, err := m.backend.Len(ctx)
	if err != nil {
		return OrderBookInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.info.OrderCount = count
	return m.info, nil
}

// Close closes the backend. It is safe to call more than once.
func (m *OrderBookManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.backend.Close()
}

// LogOrderBookSummary logs summary information about an order book
func LogOrderBookSummary(logger zerolog.Logger, info OrderBookInfo) {
	logger.Info().
		Str("name", info.Name).
		Str("backend", info.Backend).
		Time("created_at", info.CreatedAt).
		Int("order_count", info.OrderCount).
		Msg("Order book summary")
}
