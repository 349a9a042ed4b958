package core

import (
	"context"
	"fmt"
	"time"

	"github.com/erain9/swapbook/pkg/logging"
	"github.com/erain9/swapbook/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxIDAttempts bounds how many fresh ids AddOrder tries before giving up
const maxIDAttempts = 3

// Option configures an OrderBook
type Option func(*OrderBook)

// WithIDGenerator sets the id source for new orders
func WithIDGenerator(ids IDGenerator) Option {
	return func(ob *OrderBook) { ob.ids = ids }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(ob *OrderBook) { ob.now = now }
}

// WithOrderTTL sets how long new orders stay valid
func WithOrderTTL(ttl time.Duration) Option {
	return func(ob *OrderBook) { ob.ttl = ttl }
}

// WithEnforceOwnership makes delete and modify reject callers that do not own
// the target order
func WithEnforceOwnership(enforce bool) Option {
	return func(ob *OrderBook) { ob.enforceOwnership = enforce }
}

// WithExcludeExpired keeps orders past their validity window out of matching
func WithExcludeExpired(exclude bool) Option {
	return func(ob *OrderBook) { ob.excludeExpired = exclude }
}

// OrderBook holds the orders of one service instance and runs the matching
// engine over them. It is not safe for concurrent use; callers serialize
// requests.
type OrderBook struct {
	backend          OrderBookBackend
	ids              IDGenerator
	now              func() time.Time
	ttl              time.Duration
	enforceOwnership bool
	excludeExpired   bool
}

// NewOrderBook creates Orderbook object with a backend
func NewOrderBook(backend OrderBookBackend, opts ...Option) *OrderBook {
	ob := &OrderBook{
		backend:          backend,
		ids:              NewRandomIDGenerator(),
		now:              time.Now,
		ttl:              DefaultOrderTTL,
		enforceOwnership: true,
		excludeExpired:   true,
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob
}

// Backend returns the underlying store
func (ob *OrderBook) Backend() OrderBookBackend {
	return ob.backend
}

// Now returns the book's current time
func (ob *OrderBook) Now() time.Time {
	return ob.now()
}

// AddOrder stores a new order built from draft. Only the asset, price,
// slippage and creator fields of draft are used; everything else is assigned
// here.
func (ob *OrderBook) AddOrder(ctx context.Context, caller ActorID, draft *Order) (*Order, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanAddOrder,
		attribute.String(otel.AttributeOrderUser, caller.String()),
	)
	defer span.End()

	if caller.IsZero() {
		return nil, ErrInvalidActor
	}
	if draft == nil {
		return nil, fmt.Errorf("%w: missing order", ErrInvalidArgument)
	}
	if err := draft.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid order")
		return nil, err
	}

	id, err := ob.freshID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "id generation failed")
		return nil, err
	}

	order := draft.Clone()
	order.ID = id
	order.User = caller
	order.ValidUntil = ob.now().Add(ob.ttl)
	order.Locked = false
	order.Inactive = false
	order.InactiveTimeStart = time.Time{}

	if err := ob.backend.Append(ctx, order.Clone()); err != nil {
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("store order: %w", err)
	}

	otel.AddAttributes(span,
		attribute.String(otel.AttributeOrderID, order.ID),
		attribute.String(otel.AttributeAlphaAsset, order.Alpha.Name),
		attribute.String(otel.AttributeBetaAsset, order.Beta.Name),
	)
	logger := logging.FromContext(ctx)
	logger.Debug().Str("order_id", order.ID).Msg("Order added")

	return order, nil
}

func (ob *OrderBook) freshID(ctx context.Context) (string, error) {
	orders, err := ob.backend.Orders(ctx)
	if err != nil {
		return "", fmt.Errorf("read orders: %w", err)
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := ob.ids.NextID(ctx)
		if err != nil {
			return "", err
		}
		if FindByID(orders, id) == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no unused id after %d attempts", ErrOrderExists, maxIDAttempts)
}

// DeleteOrder removes every order with the id and returns the id, whether or
// not anything was removed.
func (ob *OrderBook) DeleteOrder(ctx context.Context, caller ActorID, id string) (string, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanDeleteOrder,
		attribute.String(otel.AttributeOrderID, id),
		attribute.String(otel.AttributeOrderUser, caller.String()),
	)
	defer span.End()

	if caller.IsZero() {
		return "", ErrInvalidActor
	}

	if ob.enforceOwnership {
		orders, err := ob.backend.Orders(ctx)
		if err != nil {
			return "", fmt.Errorf("read orders: %w", err)
		}
		for _, o := range orders {
			if o.ID == id && o.User != caller {
				span.SetStatus(codes.Error, "unauthorized")
				return "", fmt.Errorf("%w: %s", ErrUnauthorized, id)
			}
		}
	}

	removed, err := ob.backend.RemoveByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "store failed")
		return "", fmt.Errorf("remove order: %w", err)
	}

	logger := logging.FromContext(ctx)
	logger.Debug().Str("order_id", id).Int("removed", removed).Msg("Order deleted")

	return id, nil
}

// ModifyOrder replaces the stored order with the same id. The id, owner,
// validity window and lock flag of the stored order are kept.
func (ob *OrderBook) ModifyOrder(ctx context.Context, caller ActorID, order *Order) (*Order, error) {
	if order == nil || order.ID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrInvalidArgument)
	}

	ctx, span := otel.StartOrderSpan(ctx, otel.SpanModifyOrder,
		attribute.String(otel.AttributeOrderID, order.ID),
		attribute.String(otel.AttributeOrderUser, caller.String()),
	)
	defer span.End()

	if caller.IsZero() {
		return nil, ErrInvalidActor
	}
	if err := order.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid order")
		return nil, err
	}

	orders, err := ob.backend.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	stored := FindByID(orders, order.ID)
	if stored == nil {
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("%w: %s", ErrNonexistentOrder, order.ID)
	}
	if ob.enforceOwnership && stored.User != caller {
		span.SetStatus(codes.Error, "unauthorized")
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, order.ID)
	}

	updated := order.Clone()
	updated.User = stored.User
	updated.ValidUntil = stored.ValidUntil
	updated.Locked = stored.Locked

	found, err := ob.backend.ReplaceByID(ctx, updated.ID, updated.Clone())
	if err != nil {
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("replace order: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNonexistentOrder, order.ID)
	}

	return updated, nil
}

// CheckOrders runs the matching engine for every unlocked order of caller.
// Each subject tries the exact, slippage and partial strategies in that order
// and takes the first counterpart in insertion order that satisfies one. Both
// orders of a match are locked before the match is returned. The flag is
// accepted for compatibility and has no effect.
func (ob *OrderBook) CheckOrders(ctx context.Context, caller ActorID, _ bool) ([]*Match, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanCheckOrders,
		attribute.String(otel.AttributeOrderUser, caller.String()),
	)
	defer span.End()

	if caller.IsZero() {
		return nil, ErrInvalidActor
	}

	// The working copy tracks locks set during this call so later subjects
	// never see a stale unlocked order.
	orders, err := ob.backend.Orders(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("read orders: %w", err)
	}
	otel.AddAttributes(span, attribute.Int(otel.AttributeBookSize, len(orders)))

	now := ob.now()
	var matches []*Match
	for _, subject := range FilterByUser(orders, caller) {
		if subject.Locked || ob.expired(subject, now) {
			continue
		}

		match, err := ob.matchOrder(ctx, subject, orders, now)
		if err != nil {
			span.SetStatus(codes.Error, "match failed")
			return matches, err
		}
		if match != nil {
			matches = append(matches, match)
		}
	}

	otel.AddAttributes(span, attribute.Int(otel.AttributeMatchCount, len(matches)))
	return matches, nil
}

func (ob *OrderBook) matchOrder(ctx context.Context, subject *Order, orders []*Order, now time.Time) (*Match, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanMatchOrder,
		attribute.String(otel.AttributeOrderID, subject.ID),
		attribute.String(otel.AttributeAlphaAsset, subject.Alpha.Name),
		attribute.String(otel.AttributeBetaAsset, subject.Beta.Name),
	)
	defer span.End()

	for _, strategy := range strategies {
		for _, cp := range orders {
			if !ob.isCandidate(subject, cp, now) || !strategy.match(subject, cp) {
				continue
			}

			if err := ob.lock(ctx, subject, cp); err != nil {
				span.SetStatus(codes.Error, "lock failed")
				return nil, err
			}

			otel.AddAttributes(span,
				attribute.String(otel.AttributeCounterpart, cp.ID),
				attribute.String(otel.AttributeMatchType, strategy.kind.String()),
			)
			otel.GetOrderBookMetrics().RecordMatchedOrders(ctx, strategy.kind.String(), 2)

			logger := logging.FromContext(ctx)
			logger.Info().
				Str("order_id", subject.ID).
				Str("counterpart_id", cp.ID).
				Str("match_type", strategy.kind.String()).
				Msg("Orders matched")

			return &Match{
				Subject:     subject.Clone(),
				Counterpart: cp.Clone(),
				Type:        strategy.kind,
			}, nil
		}
	}
	return nil, nil
}

// isCandidate holds the rules shared by every strategy
func (ob *OrderBook) isCandidate(subject, cp *Order, now time.Time) bool {
	return cp.User != subject.User &&
		!cp.Locked &&
		!ob.expired(cp, now) &&
		subject.IsReciprocal(cp)
}

func (ob *OrderBook) expired(o *Order, now time.Time) bool {
	return ob.excludeExpired && o.IsExpired(now)
}

func (ob *OrderBook) lock(ctx context.Context, orders ...*Order) error {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	found, err := ob.backend.SetLocked(ctx, ids...)
	if err != nil {
		return fmt.Errorf("lock orders %v: %w", ids, err)
	}
	if !found {
		return fmt.Errorf("%w: %v", ErrNonexistentOrder, ids)
	}
	for _, o := range orders {
		o.Locked = true
	}
	return nil
}

// State returns every stored order not owned by caller
func (ob *OrderBook) State(ctx context.Context, caller ActorID) ([]*Order, error) {
	orders, err := ob.backend.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return FilterExcludingUser(orders, caller), nil
}

// Orders returns every stored order
func (ob *OrderBook) Orders(ctx context.Context) ([]*Order, error) {
	return ob.backend.Orders(ctx)
}

// GetOrder returns the stored order with the id
func (ob *OrderBook) GetOrder(ctx context.Context, id string) (*Order, error) {
	orders, err := ob.backend.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	o := FindByID(orders, id)
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrNonexistentOrder, id)
	}
	return o, nil
}
