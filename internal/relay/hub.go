package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
	"github.com/StacksTasker/x402-stacks-agent-console/pkg/logger"
)

// stateQueryTimeout bounds how long a browser-state query waits for a client.
const stateQueryTimeout = 5 * time.Second

// Hub is the push-channel fan-out: every connected client receives every
// broadcast. Delivery is at-most-once with no replay buffer; a client that
// connects after a broadcast has missed it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	// pending is the single-slot resolver for the synchronous state query.
	// A second query overwrites it; the displaced caller resolves via its
	// own timeout.
	pendingMu sync.Mutex
	pending   chan json.RawMessage

	queryTimeout time.Duration
	upgrader     websocket.Upgrader
	log          *slog.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serialises writes to conn
}

func (c *client) write(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*client),
		queryTimeout: stateQueryTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.Named("hub"),
	}
}

// HandleWS upgrades an HTTP request to a push-channel connection and runs its
// read loop until the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	h.addClient(c)
	h.log.Info("client connected", slog.String("client_id", c.id))

	defer func() {
		h.removeClient(c)
		_ = conn.Close()
		h.log.Info("client disconnected", slog.String("client_id", c.id))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		// state_response is the only inbound message type the relay
		// interprets; everything else is ignored.
		if envelope.Type == TypeStateResponse {
			h.resolveStateQuery(raw)
		}
	}
}

// Broadcast delivers one message to every connected client and returns the
// delivery count. A connection whose write fails is dropped silently.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []*client
	for _, c := range targets {
		if err := c.write(msg); err != nil {
			failed = append(failed, c)
			continue
		}
		delivered++
	}

	for _, c := range failed {
		h.removeClient(c)
		_ = c.conn.Close()
	}
	return delivered
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// QueryState asks exactly one connected client for its state and waits for
// the correlating state_response or the query timeout. Only one query is in
// flight at a time: a newer query overwrites the pending resolver, starving
// the earlier caller into its timeout path.
func (h *Hub) QueryState(ctx context.Context) (json.RawMessage, error) {
	h.mu.RLock()
	var target *client
	for _, c := range h.clients {
		target = c
		break
	}
	h.mu.RUnlock()

	if target == nil {
		return nil, xerrors.New(xerrors.CodeNoClients, "")
	}

	resolver := make(chan json.RawMessage, 1)
	h.pendingMu.Lock()
	h.pending = resolver
	h.pendingMu.Unlock()

	if err := target.write(NewMessage(TypeStateRequest, nil)); err != nil {
		h.removeClient(target)
		_ = target.conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeNoClients, err, "state request write failed")
	}

	select {
	case payload := <-resolver:
		return payload, nil
	case <-time.After(h.queryTimeout):
		return nil, xerrors.New(xerrors.CodeTimeout, "state query timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) resolveStateQuery(payload json.RawMessage) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	if h.pending == nil {
		return
	}
	select {
	case h.pending <- payload:
	default:
	}
	h.pending = nil
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
}
