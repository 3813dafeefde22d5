package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
)

func newHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastDeliversToAllClients(t *testing.T) {
	hub, url := newHubServer(t)

	first := dial(t, url)
	second := dial(t, url)
	waitForClients(t, hub, 2)

	delivered := hub.Broadcast(NewMessage(TypeReload, nil))
	assert.Equal(t, 2, delivered)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, TypeReload, msg["type"])
	}
}

func TestBroadcastDropsClosedConnections(t *testing.T) {
	hub, url := newHubServer(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)
	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	delivered := hub.Broadcast(NewMessage(TypeReload, nil))
	assert.Equal(t, 0, delivered)
}

func TestQueryStateNoClientsReturnsImmediately(t *testing.T) {
	hub := NewHub()

	start := time.Now()
	_, err := hub.QueryState(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, xerrors.CodeNoClients, xerrors.CodeOf(err))
	assert.Less(t, elapsed, time.Second)
}

func TestQueryStateRoundTrip(t *testing.T) {
	hub, url := newHubServer(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	// The client answers the state_request with a state_response.
	go func() {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg["type"] != TypeStateRequest {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"type":  TypeStateResponse,
			"tasks": []string{"task-1"},
		})
	}()

	payload, err := hub.QueryState(context.Background())
	require.NoError(t, err)

	var decoded struct {
		Type  string   `json:"type"`
		Tasks []string `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, TypeStateResponse, decoded.Type)
	assert.Equal(t, []string{"task-1"}, decoded.Tasks)
}

func TestQueryStateTimesOut(t *testing.T) {
	hub, url := newHubServer(t)
	hub.queryTimeout = 100 * time.Millisecond

	dial(t, url)
	waitForClients(t, hub, 1)

	_, err := hub.QueryState(context.Background())
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))
}

// A second query overwrites the pending resolver: the response reaches the
// second caller, while the first caller only resolves through its own
// timeout path.
func TestQueryStateOverwritesPendingResolver(t *testing.T) {
	hub, url := newHubServer(t)
	hub.queryTimeout = 500 * time.Millisecond

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	firstErr := make(chan error, 1)
	go func() {
		_, err := hub.QueryState(context.Background())
		firstErr <- err
	}()

	// Wait for the first query's state_request to land, then issue the
	// second query before any response is sent.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, TypeStateRequest, msg["type"])

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		payload, err := hub.QueryState(context.Background())
		assert.NoError(t, err)
		assert.Contains(t, string(payload), "state_response")
	}()

	// Drain the second state_request and answer it once.
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, TypeStateRequest, msg["type"])
	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeStateResponse}))

	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second query did not resolve")
	}

	// The first caller is starved and resolves via its timeout.
	select {
	case err := <-firstErr:
		require.Error(t, err)
		assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("first query did not time out")
	}
}
