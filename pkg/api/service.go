package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// ServiceName is the fully qualified gRPC service name
	ServiceName = "swapbook.v1.OrderBookService"
	// ActorMetadataKey carries the caller identity on every call
	ActorMetadataKey = "x-actor-id"
)

// Full method names
const (
	AddOrderMethod    = "/" + ServiceName + "/AddOrder"
	DeleteOrderMethod = "/" + ServiceName + "/DeleteOrder"
	ModifyOrderMethod = "/" + ServiceName + "/ModifyOrder"
	CheckOrdersMethod = "/" + ServiceName + "/CheckOrders"
	GetStateMethod    = "/" + ServiceName + "/GetState"
)

// OrderBookServiceServer is the server API of the order book service
type OrderBookServiceServer interface {
	AddOrder(context.Context, *OrderDraft) (*OrderEvent, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*OrderEvent, error)
	ModifyOrder(context.Context, *Order) (*OrderEvent, error)
	CheckOrders(context.Context, *CheckOrdersRequest) (*CheckOrdersResponse, error)
	GetState(context.Context, *GetStateRequest) (*StateResponse, error)
}

// UnimplementedOrderBookServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedOrderBookServiceServer struct{}

func (UnimplementedOrderBookServiceServer) AddOrder(context.Context, *OrderDraft) (*OrderEvent, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AddOrder not implemented")
}

func (UnimplementedOrderBookServiceServer) DeleteOrder(context.Context, *DeleteOrderRequest) (*OrderEvent, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteOrder not implemented")
}

func (UnimplementedOrderBookServiceServer) ModifyOrder(context.Context, *Order) (*OrderEvent, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModifyOrder not implemented")
}

func (UnimplementedOrderBookServiceServer) CheckOrders(context.Context, *CheckOrdersRequest) (*CheckOrdersResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CheckOrders not implemented")
}

func (UnimplementedOrderBookServiceServer) GetState(context.Context, *GetStateRequest) (*StateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetState not implemented")
}

// RegisterOrderBookServiceServer registers srv with s
func RegisterOrderBookServiceServer(s grpc.ServiceRegistrar, srv OrderBookServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unaryHandler adapts a typed service method to a grpc.MethodDesc handler
func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(OrderBookServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderBookServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderBookServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the order book service for grpc.Server
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderBookServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddOrder",
			Handler:    unaryHandler(AddOrderMethod, OrderBookServiceServer.AddOrder),
		},
		{
			MethodName: "DeleteOrder",
			Handler:    unaryHandler(DeleteOrderMethod, OrderBookServiceServer.DeleteOrder),
		},
		{
			MethodName: "ModifyOrder",
			Handler:    unaryHandler(ModifyOrderMethod, OrderBookServiceServer.ModifyOrder),
		},
		{
			MethodName: "CheckOrders",
			Handler:    unaryHandler(CheckOrdersMethod, OrderBookServiceServer.CheckOrders),
		},
		{
			MethodName: "GetState",
			Handler:    unaryHandler(GetStateMethod, OrderBookServiceServer.GetState),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swapbook/v1/orderbook.proto",
}

// Client is a typed client of the order book service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client on top of an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithActor attaches the caller identity to an outgoing context
func WithActor(ctx context.Context, actor string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, actor)
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// AddOrder submits a new order
func (c *Client) AddOrder(ctx context.Context, in *OrderDraft, opts ...grpc.CallOption) (*OrderEvent, error) {
	out := new(OrderEvent)
	if err := c.invoke(ctx, AddOrderMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOrder removes the order with the given id
func (c *Client) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*OrderEvent, error) {
	out := new(OrderEvent)
	if err := c.invoke(ctx, DeleteOrderMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ModifyOrder replaces the caller-owned fields of an existing order
func (c *Client) ModifyOrder(ctx context.Context, in *Order, opts ...grpc.CallOption) (*OrderEvent, error) {
	out := new(OrderEvent)
	if err := c.invoke(ctx, ModifyOrderMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckOrders asks the book to match the caller's orders
func (c *Client) CheckOrders(ctx context.Context, in *CheckOrdersRequest, opts ...grpc.CallOption) (*CheckOrdersResponse, error) {
	out := new(CheckOrdersResponse)
	if err := c.invoke(ctx, CheckOrdersMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetState lists the orders of every other user
func (c *Client) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, GetStateMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
