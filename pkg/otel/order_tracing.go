package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanAddOrder         = "add_order"
	SpanDeleteOrder      = "delete_order"
	SpanModifyOrder      = "modify_order"
	SpanCheckOrders      = "check_orders"
	SpanMatchOrder       = "match_order"
	SpanSendNotification = "send_notification"

	// Attribute keys
	AttributeOrderID     = "order.id"
	AttributeOrderUser   = "order.user"
	AttributeAlphaAsset  = "order.alpha_asset"
	AttributeBetaAsset   = "order.beta_asset"
	AttributeCounterpart = "match.counterpart_id"
	AttributeMatchType   = "match.type"
	AttributeMatchCount  = "match.count"
	AttributeRecipient   = "notification.recipient"
	AttributeSwapRole    = "notification.role"
	AttributeBookSize    = "orderbook.size"
)

// StartOrderSpan starts a span on the order book tracer. Without a
// configured tracer a no-op span is returned so callers may always End it.
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetOrderBookTracer()
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
