package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
)

// DefaultOrderTTL is how long a new order stays valid
const DefaultOrderTTL = 24 * time.Hour

// Order is a standing offer to exchange the alpha asset (offered) for the
// beta asset (wanted).
type Order struct {
	ID                string
	User              ActorID
	Slippage          fpdecimal.Decimal
	Alpha             Asset
	Beta              Asset
	AlphaPrice        fpdecimal.Decimal
	BetaPrice         fpdecimal.Decimal
	Locked            bool
	Inactive          bool
	InactiveTimeStart time.Time
	ValidUntil        time.Time
	Creator           Participant
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// IsExpired reports whether the validity window has passed at now.
// Orders without a validity window never expire.
func (o *Order) IsExpired(now time.Time) bool {
	return !o.ValidUntil.IsZero() && !now.Before(o.ValidUntil)
}

// PriceBand returns the band of prices the owner accepts for the alpha asset
func (o *Order) PriceBand() PriceBand {
	return NewPriceBand(o.AlphaPrice, o.Slippage)
}

// IsReciprocal reports whether other offers what o wants and wants what o offers
func (o *Order) IsReciprocal(other *Order) bool {
	return other.Alpha.Name == o.Beta.Name && other.Beta.Name == o.Alpha.Name
}

// Validate checks the caller-supplied fields of an order
func (o *Order) Validate() error {
	if o.Alpha.Name == "" || o.Beta.Name == "" {
		return fmt.Errorf("%w: asset names are required", ErrInvalidArgument)
	}
	if !o.Alpha.NominalAmount.IsPositive() {
		return fmt.Errorf("%w: alpha amount %s must be positive", ErrInvalidAmount, o.Alpha.NominalAmount)
	}
	if !o.Beta.NominalAmount.IsPositive() {
		return fmt.Errorf("%w: beta amount %s must be positive", ErrInvalidAmount, o.Beta.NominalAmount)
	}
	if o.AlphaPrice.LessThan(fpdecimal.Zero) || o.BetaPrice.LessThan(fpdecimal.Zero) {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidPrice)
	}
	if o.AlphaPrice.GreaterThan(MaxPrice) || o.BetaPrice.GreaterThan(MaxPrice) {
		return fmt.Errorf("%w: prices must not exceed %s", ErrInvalidPrice, MaxPrice)
	}
	if o.Slippage.LessThan(fpdecimal.Zero) || o.Slippage.GreaterThan(maxSlippage) {
		return fmt.Errorf("%w: %s out of range [0, 100]", ErrInvalidSlippage, o.Slippage)
	}
	return nil
}

// String implements Stringer interface
func (o *Order) String() string {
	return fmt.Sprintf("%s: %s %s -> %s %s (user %s, locked %t)",
		o.ID, o.Alpha.NominalAmount, o.Alpha.Name, o.Beta.NominalAmount, o.Beta.Name, o.User, o.Locked)
}

// ToMessagingOrder converts the order to its wire snapshot with decimal strings
func (o *Order) ToMessagingOrder() messaging.Order {
	return messaging.Order{
		ID:                o.ID,
		User:              o.User.String(),
		UserSlippage:      o.Slippage.String(),
		AlphaAsset:        toMessagingAsset(o.Alpha),
		BetaAsset:         toMessagingAsset(o.Beta),
		AlphaAssetPrice:   o.AlphaPrice.String(),
		BetaAssetPrice:    o.BetaPrice.String(),
		IsLocked:          o.Locked,
		IsInactive:        o.Inactive,
		InactiveTimeStart: toMillis(o.InactiveTimeStart),
		ValidUntil:        toMillis(o.ValidUntil),
		Creator: messaging.Participant{
			WalletUUID: o.Creator.WalletUUID,
			NetworkIdentity: messaging.NetworkIdentity{
				NetworkType: o.Creator.NetworkIdentity.Type.String(),
				Identity:    o.Creator.NetworkIdentity.Identity,
			},
		},
	}
}

// OrderFromMessaging parses a wire snapshot, rejecting malformed decimals
func OrderFromMessaging(m messaging.Order) (*Order, error) {
	alpha, err := assetFromMessaging(m.AlphaAsset)
	if err != nil {
		return nil, fmt.Errorf("alpha asset: %w", err)
	}
	beta, err := assetFromMessaging(m.BetaAsset)
	if err != nil {
		return nil, fmt.Errorf("beta asset: %w", err)
	}
	slippage, err := ParseSlippage(m.UserSlippage)
	if err != nil {
		return nil, err
	}
	alphaPrice, err := ParsePrice(m.AlphaAssetPrice)
	if err != nil {
		return nil, fmt.Errorf("alpha price: %w", err)
	}
	betaPrice, err := ParsePrice(m.BetaAssetPrice)
	if err != nil {
		return nil, fmt.Errorf("beta price: %w", err)
	}
	networkType, err := ParseNetworkIdentityType(m.Creator.NetworkIdentity.NetworkType)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:                m.ID,
		User:              ActorID(m.User),
		Slippage:          slippage,
		Alpha:             alpha,
		Beta:              beta,
		AlphaPrice:        alphaPrice,
		BetaPrice:         betaPrice,
		Locked:            m.IsLocked,
		Inactive:          m.IsInactive,
		InactiveTimeStart: fromMillis(m.InactiveTimeStart),
		ValidUntil:        fromMillis(m.ValidUntil),
		Creator: Participant{
			WalletUUID: m.Creator.WalletUUID,
			NetworkIdentity: NetworkIdentity{
				Type:     networkType,
				Identity: m.Creator.NetworkIdentity.Identity,
			},
		},
	}, nil
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ToMessagingOrder())
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var m messaging.Order
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := OrderFromMessaging(m)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}

func toMessagingAsset(a Asset) messaging.Asset {
	return messaging.Asset{
		Ledger: messaging.Ledger{
			Name:    a.Ledger.Name,
			Network: a.Ledger.Network,
			ChainID: a.Ledger.ChainID,
		},
		Name:          a.Name,
		NominalAmount: a.NominalAmount.String(),
	}
}

func assetFromMessaging(m messaging.Asset) (Asset, error) {
	amount, err := ParseAmount(m.NominalAmount)
	if err != nil {
		return Asset{}, err
	}
	return Asset{
		Ledger: Ledger{
			Name:    m.Ledger.Name,
			Network: m.Ledger.Network,
			ChainID: m.Ledger.ChainID,
		},
		Name:          m.Name,
		NominalAmount: amount,
	}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
