package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/backend/memory"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBook() *core.OrderBook {
	return core.NewOrderBook(memory.NewMemoryBackend(),
		core.WithIDGenerator(core.NewSequenceIDGenerator("order")),
		core.WithClock(func() time.Time { return testNow }),
	)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *messaging.MockMessageSender) {
	t.Helper()
	sender := messaging.NewMockMessageSender()
	d := NewDispatcher(newTestBook(), sender)
	t.Cleanup(func() { _ = d.Close() })
	return d, sender
}

// apiDraft builds a draft offering alphaAmount of alpha for betaAmount of beta
func apiDraft(alpha, alphaAmount, beta, betaAmount, price, slippage string) *api.OrderDraft {
	return &api.OrderDraft{
		UserSlippage:    slippage,
		AlphaAsset:      api.Asset{Name: alpha, NominalAmount: alphaAmount, Ledger: api.Ledger{Name: "ledger-" + alpha}},
		BetaAsset:       api.Asset{Name: beta, NominalAmount: betaAmount, Ledger: api.Ledger{Name: "ledger-" + beta}},
		AlphaAssetPrice: price,
		BetaAssetPrice:  price,
		Creator: api.Participant{
			WalletUUID:      "wallet",
			NetworkIdentity: api.NetworkIdentity{NetworkType: "IPV4", Identity: "127.0.0.1"},
		},
	}
}

// coreDraft is apiDraft parsed into a core order
func coreDraft(t *testing.T, alpha, alphaAmount, beta, betaAmount, price, slippage string) *core.Order {
	t.Helper()
	o, err := draftFromAPI(apiDraft(alpha, alphaAmount, beta, betaAmount, price, slippage))
	require.NoError(t, err)
	return o
}

// startGRPC serves service over an in-memory listener and returns a client
func startGRPC(t *testing.T, service *GRPCOrderBookService, limiter *RateLimiter) *api.Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	grpcServer := NewGRPCServer(service, limiter)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return api.NewClient(conn)
}
