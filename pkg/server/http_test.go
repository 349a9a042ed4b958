package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/erain9/swapbook/pkg/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpFixture struct {
	server     *httptest.Server
	dispatcher *Dispatcher
	hub        *Hub
}

func newHTTPFixture(t *testing.T, limiter *RateLimiter) *httpFixture {
	t.Helper()

	manager, err := NewOrderBookManager(context.Background(), "http-test", BackendOptions{Type: BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	hub := NewHub()
	dispatcher := NewDispatcher(manager.Book(), hub)
	t.Cleanup(func() { _ = dispatcher.Close() })

	srv := httptest.NewServer(NewHTTPServer(dispatcher, manager, hub, limiter, nil).Handler())
	t.Cleanup(srv.Close)

	return &httpFixture{server: srv, dispatcher: dispatcher, hub: hub}
}

func (f *httpFixture) get(t *testing.T, path, actor string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	if actor != "" {
		req.Header.Set(logging.ActorHeader, actor)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHTTPServer_Health(t *testing.T) {
	f := newHTTPFixture(t, nil)
	ctx := context.Background()
	_, err := f.dispatcher.AddOrder(ctx, testutil.NewActor(t), coreDraft(t, "X", "10", "Y", "5", "1", "0"))
	require.NoError(t, err)

	resp := f.get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "http-test", health.Book.Name)
	assert.Equal(t, BackendMemory, health.Book.Backend)
	assert.Equal(t, 1, health.Book.OrderCount)
}

func TestHTTPServer_Orders(t *testing.T) {
	f := newHTTPFixture(t, nil)
	ctx := context.Background()
	alice, bob := testutil.NewActor(t), testutil.NewActor(t)

	res, err := f.dispatcher.AddOrder(ctx, alice, coreDraft(t, "X", "10", "Y", "5", "1", "0"))
	require.NoError(t, err)
	aliceID := res.Order.ID

	t.Run("missing actor", func(t *testing.T) {
		resp := f.get(t, "/api/v1/orders", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("state excludes caller", func(t *testing.T) {
		resp := f.get(t, "/api/v1/orders", alice.String())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var state api.StateResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
		assert.Empty(t, state.Orders)

		resp = f.get(t, "/api/v1/orders", bob.String())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
		require.Len(t, state.Orders, 1)
		assert.Equal(t, aliceID, state.Orders[0].ID)
	})

	t.Run("actor query parameter", func(t *testing.T) {
		resp := f.get(t, "/api/v1/orders?actor="+bob.String(), "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("single order", func(t *testing.T) {
		resp := f.get(t, "/api/v1/orders/"+aliceID, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var order api.Order
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
		assert.Equal(t, alice.String(), order.User)

		resp = f.get(t, "/api/v1/orders/missing", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHTTPServer_CORS(t *testing.T) {
	f := newHTTPFixture(t, nil)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/v1/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTPServer_RateLimit(t *testing.T) {
	f := newHTTPFixture(t, NewRateLimiter(0.001, 1))
	actor := testutil.NewActor(t).String()

	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/orders", actor).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, f.get(t, "/api/v1/orders", actor).StatusCode)
}

func TestHTTPServer_WebsocketNotifications(t *testing.T) {
	f := newHTTPFixture(t, nil)
	ctx := context.Background()
	alice, bob := testutil.NewActor(t), testutil.NewActor(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?actor=" + alice.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.Subscribers(alice.String()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = f.dispatcher.AddOrder(ctx, alice, coreDraft(t, "X", "10", "Y", "5", "1", "0"))
	require.NoError(t, err)
	_, err = f.dispatcher.AddOrder(ctx, bob, coreDraft(t, "Y", "20", "X", "8", "1", "0"))
	require.NoError(t, err)

	// bob has no connection: the match still stands
	res, err := f.dispatcher.CheckOrders(ctx, alice, false)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var event api.OrderEvent
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, api.EventOrderMatched, event.Type)
	require.NotNil(t, event.Match)
	assert.Equal(t, alice.String(), event.Match.Recipient)
	assert.Equal(t, "ALICE", event.Match.Role)
	assert.Equal(t, res.Matches[0].Counterpart.ID, event.Match.N1.ID)
	assert.Equal(t, res.Matches[0].Subject.ID, event.Match.N2.ID)
}

func TestHTTPServer_WebsocketRequiresActor(t *testing.T) {
	f := newHTTPFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_SendWithoutSubscriber(t *testing.T) {
	hub := NewHub()
	err := hub.SendMatchMessage(context.Background(), &messaging.MatchMessage{Recipient: "0xnobody"})
	assert.ErrorIs(t, err, messaging.ErrNoSubscriber)
	assert.NoError(t, hub.Close())
}
