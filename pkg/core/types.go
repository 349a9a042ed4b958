package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Ledger identifies the settlement network backing an asset
type Ledger struct {
	Name    string `json:"name"`
	Network string `json:"network"`
	ChainID int64  `json:"chain_id"`
}

// Asset is an amount of a named asset on a ledger
type Asset struct {
	Ledger        Ledger          `json:"ledger"`
	Name          string          `json:"name"`
	NominalAmount decimal.Decimal `json:"nominal_amount"`
}

// NetworkIdentityType tags how a participant can be reached
type NetworkIdentityType int

// Network identity types
const (
	NetworkEmpty NetworkIdentityType = iota
	NetworkSOCKS5
	NetworkOrderService
	NetworkIPv4
	NetworkIPv6
	NetworkVara
)

var networkIdentityNames = map[NetworkIdentityType]string{
	NetworkEmpty:        "EMPTY",
	NetworkSOCKS5:       "SOCKS5",
	NetworkOrderService: "ORDER_SERVICE",
	NetworkIPv4:         "IPV4",
	NetworkIPv6:         "IPV6",
	NetworkVara:         "VARA",
}

// String returns the network identity type as string
func (t NetworkIdentityType) String() string {
	if name, ok := networkIdentityNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseNetworkIdentityType parses a type name. An empty name is ORDER_SERVICE,
// the default reachability of a participant.
func ParseNetworkIdentityType(s string) (NetworkIdentityType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return NetworkOrderService, nil
	}
	for t, name := range networkIdentityNames {
		if name == s {
			return t, nil
		}
	}
	return NetworkEmpty, fmt.Errorf("%w: network identity type %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler
func (t NetworkIdentityType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *NetworkIdentityType) UnmarshalText(text []byte) error {
	parsed, err := ParseNetworkIdentityType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NetworkIdentity describes where a participant can be reached
type NetworkIdentity struct {
	Type     NetworkIdentityType `json:"network_type"`
	Identity string              `json:"identity"`
}

// Participant is the counterparty behind an order
type Participant struct {
	WalletUUID      string          `json:"wallet_uuid"`
	NetworkIdentity NetworkIdentity `json:"network_identity"`
}

// SwapRole tells a notified participant which side of the swap it plays
type SwapRole int

// Swap roles
const (
	RoleEmpty SwapRole = iota
	RoleAlice
	RoleBob
)

// String returns the role as string
func (r SwapRole) String() string {
	switch r {
	case RoleAlice:
		return "ALICE"
	case RoleBob:
		return "BOB"
	default:
		return "EMPTY"
	}
}

// MatchType tells which strategy produced a match
type MatchType int

// Match types. OneToMany is reserved and never produced.
const (
	MatchNone MatchType = iota
	MatchExact
	MatchPartial
	MatchWithSlippage
	MatchOneToMany
)

// String returns the match type as string
func (m MatchType) String() string {
	switch m {
	case MatchExact:
		return "EXACT"
	case MatchPartial:
		return "PARTIAL"
	case MatchWithSlippage:
		return "WITH_SLIPPAGE"
	case MatchOneToMany:
		return "ONE_TO_MANY"
	default:
		return "NONE"
	}
}

// OrderPair is the payload of a match notification. N1 is the counterpart
// order, N2 the order whose owner requested the check.
type OrderPair struct {
	N1        *Order
	N2        *Order
	Role      SwapRole
	MatchType MatchType
}
