package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/erain9/swapbook/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ActionKind tags the request carried by an Action
type ActionKind int

const (
	ActionAddOrder ActionKind = iota
	ActionDeleteOrder
	ActionModifyOrder
	ActionCheckOrders
)

func (k ActionKind) String() string {
	switch k {
	case ActionAddOrder:
		return "add_order"
	case ActionDeleteOrder:
		return "delete_order"
	case ActionModifyOrder:
		return "modify_order"
	case ActionCheckOrders:
		return "check_orders"
	default:
		return "unknown"
	}
}

// Action is one mutating request against the book. Only the fields of its
// Kind are read.
type Action struct {
	Kind  ActionKind
	Order *core.Order
	ID    string
	Flag  bool
}

// AddOrderAction builds an AddOrder request from a draft
func AddOrderAction(draft *core.Order) Action {
	return Action{Kind: ActionAddOrder, Order: draft}
}

// DeleteOrderAction builds a DeleteOrder request
func DeleteOrderAction(id string) Action {
	return Action{Kind: ActionDeleteOrder, ID: id}
}

// ModifyOrderAction builds a ModifyOrder request
func ModifyOrderAction(order *core.Order) Action {
	return Action{Kind: ActionModifyOrder, Order: order}
}

// CheckOrdersAction builds a CheckOrders request
func CheckOrdersAction(flag bool) Action {
	return Action{Kind: ActionCheckOrders, Flag: flag}
}

// EventKind tags a Result
type EventKind int

const (
	EventOrderAdded EventKind = iota
	EventOrderDeleted
	EventOrderModified
	EventOrdersChecked
)

// Result is the outcome of a dispatched Action. Order is set for added and
// modified orders, ID for deletions and Matches for checks.
type Result struct {
	Kind    EventKind
	Order   *core.Order
	ID      string
	Matches []*core.Match
}

// Dispatcher serialises every request against a single order book and
// delivers match notifications once the book is released.
type Dispatcher struct {
	mu     sync.Mutex
	book   *core.OrderBook
	sender messaging.MessageSender
}

// NewDispatcher creates a dispatcher owning book. A nil sender disables
// notifications.
func NewDispatcher(book *core.OrderBook, sender messaging.MessageSender) *Dispatcher {
	if sender == nil {
		sender = messaging.NewMultiSender()
	}
	return &Dispatcher{
		book:   book,
		sender: sender,
	}
}

// Book returns the dispatched order book
func (d *Dispatcher) Book() *core.OrderBook {
	return d.book
}

// Handle dispatches action on behalf of caller
func (d *Dispatcher) Handle(ctx context.Context, caller core.ActorID, action Action) (*Result, error) {
	switch action.Kind {
	case ActionAddOrder:
		return d.AddOrder(ctx, caller, action.Order)
	case ActionDeleteOrder:
		return d.DeleteOrder(ctx, caller, action.ID)
	case ActionModifyOrder:
		return d.ModifyOrder(ctx, caller, action.Order)
	case ActionCheckOrders:
		return d.CheckOrders(ctx, caller, action.Flag)
	default:
		return nil, fmt.Errorf("%w: unknown action %d", core.ErrInvalidArgument, action.Kind)
	}
}

// AddOrder stores a new order built from draft
func (d *Dispatcher) AddOrder(ctx context.Context, caller core.ActorID, draft *core.Order) (*Result, error) {
	d.mu.Lock()
	order, err := d.book.AddOrder(ctx, caller, draft)
	d.mu.Unlock()

	d.record(ctx, ActionAddOrder, err)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: EventOrderAdded, Order: order}, nil
}

// DeleteOrder removes every order with id
func (d *Dispatcher) DeleteOrder(ctx context.Context, caller core.ActorID, id string) (*Result, error) {
	d.mu.Lock()
	deleted, err := d.book.DeleteOrder(ctx, caller, id)
	d.mu.Unlock()

	d.record(ctx, ActionDeleteOrder, err)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: EventOrderDeleted, ID: deleted}, nil
}

// ModifyOrder replaces the caller-owned fields of an existing order
func (d *Dispatcher) ModifyOrder(ctx context.Context, caller core.ActorID, order *core.Order) (*Result, error) {
	d.mu.Lock()
	modified, err := d.book.ModifyOrder(ctx, caller, order)
	d.mu.Unlock()

	d.record(ctx, ActionModifyOrder, err)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: EventOrderModified, Order: modified}, nil
}

// CheckOrders matches the caller's orders and notifies both owners of every
// match. Notification failures are logged and counted; the matches stand.
// Matches locked before a failure are still notified.
func (d *Dispatcher) CheckOrders(ctx context.Context, caller core.ActorID, flag bool) (*Result, error) {
	d.mu.Lock()
	matches, err := d.book.CheckOrders(ctx, caller, flag)
	d.mu.Unlock()

	d.record(ctx, ActionCheckOrders, err)
	d.notify(ctx, matches)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: EventOrdersChecked, Matches: matches}, nil
}

// State returns every order not owned by caller
func (d *Dispatcher) State(ctx context.Context, caller core.ActorID) ([]*core.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.book.State(ctx, caller)
}

// GetOrder returns the first order with id
func (d *Dispatcher) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.book.GetOrder(ctx, id)
}

// notify runs detached from the request's cancellation: the locks are
// already committed, so the owners must hear about them.
func (d *Dispatcher) notify(ctx context.Context, matches []*core.Match) {
	if len(matches) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx)
	matchedAt := d.book.Now()

	for _, m := range matches {
		for _, msg := range m.ToMessagingMatchMessages(matchedAt) {
			spanCtx, span := otel.StartOrderSpan(ctx, otel.SpanSendNotification,
				attribute.String(otel.AttributeRecipient, msg.Recipient),
				attribute.String(otel.AttributeSwapRole, msg.Role),
				attribute.String(otel.AttributeMatchType, msg.MatchType),
			)

			err := d.sender.SendMatchMessage(spanCtx, msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "notification failed")
				otel.GetOrderBookMetrics().RecordNotificationFailure(ctx, msg.Role)

				event := logger.Error()
				if errors.Is(err, messaging.ErrNoSubscriber) {
					event = logger.Warn()
				}
				event.Err(err).
					Str("recipient", msg.Recipient).
					Str("role", msg.Role).
					Str("order_id", msg.N2.ID).
					Str("counterpart_id", msg.N1.ID).
					Msg("Failed to deliver match notification")
			}
			span.End()
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, action ActionKind, err error) {
	otel.GetOrderBookMetrics().RecordRequest(ctx, action.String(), err == nil)
}

// Close releases the notification senders
func (d *Dispatcher) Close() error {
	return d.sender.Close()
}
