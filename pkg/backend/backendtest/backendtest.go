// Package backendtest holds the behaviour every core.OrderBookBackend must
// show, run against each implementation from its own tests.
package backendtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erain9/swapbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty backend; cleanup is registered on t
type Factory func(t *testing.T) core.OrderBookBackend

// NewOrder builds a stored-shape order for backend tests
func NewOrder(id string, user core.ActorID) *core.Order {
	return &core.Order{
		ID:         id,
		User:       user,
		Slippage:   fpdecimal.FromInt(2),
		Alpha:      core.Asset{Ledger: core.Ledger{Name: "eth", Network: "mainnet", ChainID: 1}, Name: "ETH", NominalAmount: decimal.RequireFromString("1.25")},
		Beta:       core.Asset{Name: "DOT", NominalAmount: decimal.RequireFromString("300")},
		AlphaPrice: fpdecimal.FromInt(2500),
		BetaPrice:  fpdecimal.FromInt(8),
		ValidUntil: time.UnixMilli(1767225600000).UTC(),
		Creator: core.Participant{
			WalletUUID:      "wallet-" + id,
			NetworkIdentity: core.NetworkIdentity{Type: core.NetworkOrderService, Identity: string(user)},
		},
	}
}

func ids(orders []*core.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

// Run exercises the full backend contract
func Run(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	t.Run("append keeps insertion order", func(t *testing.T) {
		b := newBackend(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, b.Append(ctx, NewOrder(fmt.Sprintf("o%d", i), "0xa")))
		}

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"o0", "o1", "o2", "o3", "o4"}, ids(orders))

		n, err := b.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("orders round trip", func(t *testing.T) {
		b := newBackend(t)
		want := NewOrder("o1", "0xa")
		require.NoError(t, b.Append(ctx, want))

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, want, orders[0])
	})

	t.Run("orders returns copies", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Append(ctx, NewOrder("o1", "0xa")))

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		orders[0].Locked = true
		orders[0].Alpha.Name = "changed"

		again, err := b.Orders(ctx)
		require.NoError(t, err)
		assert.False(t, again[0].Locked)
		assert.Equal(t, "ETH", again[0].Alpha.Name)
	})

	t.Run("remove by id removes every entry", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Append(ctx, NewOrder("o1", "0xa")))
		require.NoError(t, b.Append(ctx, NewOrder("dup", "0xa")))
		require.NoError(t, b.Append(ctx, NewOrder("o2", "0xb")))
		require.NoError(t, b.Append(ctx, NewOrder("dup", "0xb")))

		removed, err := b.RemoveByID(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"o1", "o2"}, ids(orders))

		removed, err = b.RemoveByID(ctx, "missing")
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("replace by id", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Append(ctx, NewOrder("o1", "0xa")))
		require.NoError(t, b.Append(ctx, NewOrder("o2", "0xa")))

		replacement := NewOrder("o1", "0xa")
		replacement.Beta.NominalAmount = decimal.RequireFromString("42")
		found, err := b.ReplaceByID(ctx, "o1", replacement)
		require.NoError(t, err)
		assert.True(t, found)

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"o1", "o2"}, ids(orders))
		assert.Equal(t, "42", orders[0].Beta.NominalAmount.String())

		found, err = b.ReplaceByID(ctx, "missing", NewOrder("missing", "0xa"))
		require.NoError(t, err)
		assert.False(t, found)
		n, err := b.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("set locked", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Append(ctx, NewOrder("o1", "0xa")))
		require.NoError(t, b.Append(ctx, NewOrder("o2", "0xa")))

		found, err := b.SetLocked(ctx, "o2")
		require.NoError(t, err)
		assert.True(t, found)

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		assert.False(t, orders[0].Locked)
		assert.True(t, orders[1].Locked)

		found, err = b.SetLocked(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set locked pair", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Append(ctx, NewOrder("o1", "0xa")))
		require.NoError(t, b.Append(ctx, NewOrder("o2", "0xb")))
		require.NoError(t, b.Append(ctx, NewOrder("o3", "0xc")))

		found, err := b.SetLocked(ctx, "o1", "missing")
		require.NoError(t, err)
		assert.False(t, found)

		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		for _, o := range orders {
			assert.False(t, o.Locked, "order %s locked by a failed pair lock", o.ID)
		}

		found, err = b.SetLocked(ctx, "o1", "o3")
		require.NoError(t, err)
		assert.True(t, found)

		orders, err = b.Orders(ctx)
		require.NoError(t, err)
		assert.True(t, orders[0].Locked)
		assert.False(t, orders[1].Locked)
		assert.True(t, orders[2].Locked)
	})

	t.Run("empty book", func(t *testing.T) {
		b := newBackend(t)
		orders, err := b.Orders(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)
		n, err := b.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
