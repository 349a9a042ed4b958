package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	orderBookMetrics     *OrderBookMetrics
	orderBookMetricsOnce sync.Once
)

// OrderBookMetrics holds metrics for order book operations
type OrderBookMetrics struct {
	// Matches by match type
	matchedOrdersTotal metric.Int64Counter
	// Dispatched requests by action and outcome
	requestsTotal metric.Int64Counter
	// Notifications that could not be delivered
	notificationsFailed metric.Int64Counter
}

// GetOrderBookMetrics returns the OrderBookMetrics singleton. Instruments that
// fail to register are left nil and their recorders become no-ops.
func GetOrderBookMetrics() *OrderBookMetrics {
	orderBookMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(instrumentationName)
		m := &OrderBookMetrics{}

		if c, err := meter.Int64Counter(
			"swapbook.orders.matched",
			metric.WithDescription("Total number of orders matched"),
			metric.WithUnit("{order}"),
		); err == nil {
			m.matchedOrdersTotal = c
		}
		if c, err := meter.Int64Counter(
			"swapbook.requests",
			metric.WithDescription("Total number of dispatched order book requests"),
			metric.WithUnit("{request}"),
		); err == nil {
			m.requestsTotal = c
		}
		if c, err := meter.Int64Counter(
			"swapbook.notifications.failed",
			metric.WithDescription("Total number of match notifications that failed to deliver"),
			metric.WithUnit("{notification}"),
		); err == nil {
			m.notificationsFailed = c
		}

		orderBookMetrics = m
	})

	return orderBookMetrics
}

// RecordMatchedOrders increments the matched orders counter
func (m *OrderBookMetrics) RecordMatchedOrders(ctx context.Context, matchType string, count int64) {
	if m == nil || m.matchedOrdersTotal == nil {
		return
	}
	m.matchedOrdersTotal.Add(ctx, count, metric.WithAttributes(attribute.String(AttributeMatchType, matchType)))
}

// RecordRequest counts one dispatched request
func (m *OrderBookMetrics) RecordRequest(ctx context.Context, action string, ok bool) {
	if m == nil || m.requestsTotal == nil {
		return
	}
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request.action", action),
		attribute.Bool("request.ok", ok),
	))
}

// RecordNotificationFailure counts a notification that was not delivered
func (m *OrderBookMetrics) RecordNotificationFailure(ctx context.Context, role string) {
	if m == nil || m.notificationsFailed == nil {
		return
	}
	m.notificationsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeSwapRole, role)))
}
