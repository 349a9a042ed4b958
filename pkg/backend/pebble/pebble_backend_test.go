package pebble

import (
	"context"
	"testing"

	"github.com/erain9/swapbook/pkg/backend/backendtest"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBackend(t *testing.T, path string) *PebbleBackend {
	t.Helper()
	b, err := NewPebbleBackend(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return b
}

func TestPebbleBackend_Contract(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) core.OrderBookBackend {
		b := newTestBackend(t, t.TempDir())
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestPebbleBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := newTestBackend(t, dir)
	require.NoError(t, b.Append(ctx, backendtest.NewOrder("o1", "0xa")))
	require.NoError(t, b.Append(ctx, backendtest.NewOrder("o2", "0xb")))
	_, err := b.SetLocked(ctx, "o1")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened := newTestBackend(t, dir)
	defer reopened.Close()
	assert.Equal(t, uint64(2), reopened.seq)

	// new entries keep sorting after the old ones
	require.NoError(t, reopened.Append(ctx, backendtest.NewOrder("o3", "0xa")))

	orders, err := reopened.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "o1", orders[0].ID)
	assert.True(t, orders[0].Locked)
	assert.Equal(t, "o2", orders[1].ID)
	assert.Equal(t, "o3", orders[2].ID)
}

func TestOrderKeyOrdering(t *testing.T) {
	assert.Less(t, string(orderKey(255)), string(orderKey(256)))
	assert.Equal(t, []byte("o;"), keyUpperBound(orderPrefix))
}
