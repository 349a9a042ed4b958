// Package messaging defines the match notification model and the senders
// that deliver it to counterparties.
package messaging

import (
	"context"
	"errors"
)

// ErrNoSubscriber is returned by point-to-point senders that have no live
// connection for the recipient.
var ErrNoSubscriber = errors.New("no subscriber for recipient")

// MessageSender delivers match notifications. Implementations must be safe
// for concurrent use.
type MessageSender interface {
	SendMatchMessage(ctx context.Context, msg *MatchMessage) error
	Close() error
}

// MatchMessage tells one side of a match about its counterpart. N1 is the
// counterpart order and N2 the order that was checked, both as they were
// after locking.
type MatchMessage struct {
	Recipient string `json:"recipient"`
	Role      string `json:"role"`
	MatchType string `json:"match_type"`
	N1        Order  `json:"n1"`
	N2        Order  `json:"n2"`
	MatchedAt int64  `json:"matched_at"`
}

// Order is the wire snapshot of an order with decimals rendered as strings
// and timestamps as unix milliseconds.
type Order struct {
	ID                string      `json:"id"`
	User              string      `json:"user"`
	UserSlippage      string      `json:"user_slippage"`
	AlphaAsset        Asset       `json:"alpha_asset"`
	BetaAsset         Asset       `json:"beta_asset"`
	AlphaAssetPrice   string      `json:"alpha_asset_price"`
	BetaAssetPrice    string      `json:"beta_asset_price"`
	IsLocked          bool        `json:"is_locked"`
	IsInactive        bool        `json:"is_inactive"`
	InactiveTimeStart int64       `json:"inactive_time_start"`
	ValidUntil        int64       `json:"valid_until"`
	Creator           Participant `json:"creator"`
}

// Ledger identifies the settlement network backing an asset
type Ledger struct {
	Name    string `json:"name"`
	Network string `json:"network"`
	ChainID int64  `json:"chain_id"`
}

// Asset is the wire snapshot of an asset amount on a ledger
type Asset struct {
	Ledger        Ledger `json:"ledger"`
	Name          string `json:"name"`
	NominalAmount string `json:"nominal_amount"`
}

// NetworkIdentity tells how a participant can be reached
type NetworkIdentity struct {
	NetworkType string `json:"network_type"`
	Identity    string `json:"identity"`
}

// Participant is the wire snapshot of an order creator
type Participant struct {
	WalletUUID      string          `json:"wallet_uuid"`
	NetworkIdentity NetworkIdentity `json:"network_identity"`
}
