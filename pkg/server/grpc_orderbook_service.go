// Package server contains the order book service implementation.
package server

import (
	"context"
	"errors"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errMissingCaller = errors.New("missing caller identity")

// GRPCOrderBookService implements the OrderBookService gRPC interface
type GRPCOrderBookService struct {
	api.UnimplementedOrderBookServiceServer
	dispatcher *Dispatcher
}

// NewGRPCOrderBookService creates a new GRPCOrderBookService
func NewGRPCOrderBookService(dispatcher *Dispatcher) *GRPCOrderBookService {
	return &GRPCOrderBookService{
		dispatcher: dispatcher,
	}
}

// toStatus maps a core error to its gRPC status
func toStatus(logger zerolog.Logger, err error, msg string) error {
	switch {
	case errors.Is(err, errMissingCaller), errors.Is(err, core.ErrInvalidActor):
		return status.Errorf(codes.Unauthenticated, "%s: %v", msg, err)
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, core.ErrInvalidSlippage),
		errors.Is(err, core.ErrInvalidArgument):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case errors.Is(err, core.ErrNonexistentOrder):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case errors.Is(err, core.ErrUnauthorized):
		return status.Errorf(codes.PermissionDenied, "%s: %v", msg, err)
	case errors.Is(err, core.ErrOrderExists):
		return status.Errorf(codes.AlreadyExists, "%s: %v", msg, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", msg, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", msg, err)
	default:
		logger.Error().Err(err).Msg(msg)
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}

// AddOrder implements the AddOrder RPC method
func (s *GRPCOrderBookService) AddOrder(ctx context.Context, req *api.OrderDraft) (*api.OrderEvent, error) {
	logger := logging.FromContext(ctx).With().Str("method", "AddOrder").Logger()

	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, toStatus(logger, err, "add order")
	}
	draft, err := draftFromAPI(req)
	if err != nil {
		return nil, toStatus(logger, err, "invalid order")
	}

	logger.Debug().
		Str("alpha", draft.Alpha.Name).
		Str("alpha_amount", draft.Alpha.NominalAmount.String()).
		Str("beta", draft.Beta.Name).
		Str("beta_amount", draft.Beta.NominalAmount.String()).
		Msg("Request received")

	res, err := s.dispatcher.AddOrder(ctx, caller, draft)
	if err != nil {
		return nil, toStatus(logger, err, "add order")
	}

	logger.Info().Str("order_id", res.Order.ID).Msg("Order added")
	return &api.OrderEvent{
		Type:  api.EventOrderAdded,
		Order: orderToAPI(res.Order),
	}, nil
}

// DeleteOrder implements the DeleteOrder RPC method
func (s *GRPCOrderBookService) DeleteOrder(ctx context.Context, req *api.DeleteOrderRequest) (*api.OrderEvent, error) {
	logger := logging.FromContext(ctx).With().
		Str("method", "DeleteOrder").
		Str("order_id", req.ID).
		Logger()

	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, toStatus(logger, err, "delete order")
	}

	res, err := s.dispatcher.DeleteOrder(ctx, caller, req.ID)
	if err != nil {
		return nil, toStatus(logger, err, "delete order")
	}

	logger.Info().Msg("Order deleted")
	return &api.OrderEvent{
		Type: api.EventOrderDeleted,
		ID:   res.ID,
	}, nil
}

// ModifyOrder implements the ModifyOrder RPC method
func (s *GRPCOrderBookService) ModifyOrder(ctx context.Context, req *api.Order) (*api.OrderEvent, error) {
	logger := logging.FromContext(ctx).With().Str("method", "ModifyOrder").Logger()

	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, toStatus(logger, err, "modify order")
	}
	order, err := orderFromAPI(req)
	if err != nil {
		return nil, toStatus(logger, err, "invalid order")
	}
	logger = logger.With().Str("order_id", order.ID).Logger()

	res, err := s.dispatcher.ModifyOrder(ctx, caller, order)
	if err != nil {
		return nil, toStatus(logger, err, "modify order")
	}

	logger.Info().Msg("Order modified")
	return &api.OrderEvent{
		Type:  api.EventOrderModified,
		Order: orderToAPI(res.Order),
	}, nil
}

// CheckOrders implements the CheckOrders RPC method. Matches reach both
// owners as notifications; the caller only gets an acknowledgement.
func (s *GRPCOrderBookService) CheckOrders(ctx context.Context, req *api.CheckOrdersRequest) (*api.CheckOrdersResponse, error) {
	logger := logging.FromContext(ctx).With().Str("method", "CheckOrders").Logger()

	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, toStatus(logger, err, "check orders")
	}

	res, err := s.dispatcher.CheckOrders(ctx, caller, req.Flag)
	if err != nil {
		return nil, toStatus(logger, err, "check orders")
	}

	logger.Info().Int("matches", len(res.Matches)).Msg("Orders checked")
	return &api.CheckOrdersResponse{}, nil
}

// GetState implements the GetState RPC method
func (s *GRPCOrderBookService) GetState(ctx context.Context, _ *api.GetStateRequest) (*api.StateResponse, error) {
	logger := logging.FromContext(ctx).With().Str("method", "GetState").Logger()

	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, toStatus(logger, err, "get state")
	}

	orders, err := s.dispatcher.State(ctx, caller)
	if err != nil {
		return nil, toStatus(logger, err, "get state")
	}

	logger.Debug().Int("orders", len(orders)).Msg("Returning order book state")
	return &api.StateResponse{Orders: ordersToAPI(orders)}, nil
}

var _ api.OrderBookServiceServer = (*GRPCOrderBookService)(nil)
