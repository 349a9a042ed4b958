// Package api defines the wire messages, service descriptor and client of
// the swapbook OrderBookService. Decimals travel as strings and timestamps as
// unix milliseconds.
package api

import "github.com/erain9/swapbook/pkg/messaging"

// The record types are shared with the notification payloads so an order
// looks the same on every surface.
type (
	Order           = messaging.Order
	Asset           = messaging.Asset
	Ledger          = messaging.Ledger
	Participant     = messaging.Participant
	NetworkIdentity = messaging.NetworkIdentity
	MatchMessage    = messaging.MatchMessage
)

// EventType tags an OrderEvent
type EventType string

const (
	EventOrderAdded    EventType = "ORDER_ADDED"
	EventOrderDeleted  EventType = "ORDER_DELETED"
	EventOrderModified EventType = "ORDER_MODIFIED"
	EventOrderMatched  EventType = "ORDER_MATCHED"
)

// OrderDraft carries the caller-owned fields of a new order. The server
// assigns id, user, validity and the status flags.
type OrderDraft struct {
	UserSlippage    string      `json:"user_slippage"`
	AlphaAsset      Asset       `json:"alpha_asset"`
	BetaAsset       Asset       `json:"beta_asset"`
	AlphaAssetPrice string      `json:"alpha_asset_price"`
	BetaAssetPrice  string      `json:"beta_asset_price"`
	Creator         Participant `json:"creator"`
}

// OrderEvent is the reply to a mutating request. Order is set for added and
// modified orders, ID for deletions and Match for match notifications.
type OrderEvent struct {
	Type  EventType     `json:"type"`
	Order *Order        `json:"order,omitempty"`
	ID    string        `json:"id,omitempty"`
	Match *MatchMessage `json:"match,omitempty"`
}

type DeleteOrderRequest struct {
	ID string `json:"id"`
}

// CheckOrdersRequest asks the book to match the caller's orders. Flag is
// reserved.
type CheckOrdersRequest struct {
	Flag bool `json:"flag"`
}

// CheckOrdersResponse acknowledges a check. Matches are delivered as
// notifications, not in the response.
type CheckOrdersResponse struct{}

type GetStateRequest struct{}

// StateResponse lists every order in the book that the caller does not own
type StateResponse struct {
	Orders []*Order `json:"orders"`
}
