package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"northstar/internal/kvstore"
	"northstar/internal/metrics"
)

const (
	sendBuffer  = 256
	opTimeout   = 10 * time.Second
	readLimitMB = 4
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu     sync.Mutex
	closed bool
	subs   map[string]func()
}

// NewClient wraps conn. A nil conn is allowed for tests that only inspect Send.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		subs: make(map[string]func()),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// send queues msg. A client that cannot keep up is disconnected rather than
// silently missing subscription updates; it resubscribes on reconnect.
func (c *Client) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Relay] Marshal error: %v\n", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Relay] Client %s send buffer full, disconnecting\n", c.ID)
		if c.Conn != nil {
			go c.Conn.Close(websocket.StatusPolicyViolation, "send buffer full")
		}
	}
}

func (c *Client) addSub(id string, unsub func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.subs[id]; ok {
		prev()
	}
	c.subs[id] = unsub
}

func (c *Client) dropSub(id string) bool {
	c.mu.Lock()
	unsub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		unsub()
	}
	return ok
}

// Hub serves one kvstore.Store to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	store   kvstore.Store
}

// NewHub creates a new Hub.
func NewHub(store kvstore.Store) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		store:   store,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	metrics.RelayConnections.Set(float64(len(h.clients)))
}

// Unregister removes a client, releases its subscriptions and closes its
// Send channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	metrics.RelayConnections.Set(float64(len(h.clients)))
	h.mu.Unlock()
	if !ok {
		return
	}

	c.mu.Lock()
	c.closed = true
	close(c.Send)
	subs := c.subs
	c.subs = make(map[string]func())
	c.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

// Count reports connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and relays store operations until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("[Relay] Accept error: %v\n", err)
		return
	}
	conn.SetReadLimit(readLimitMB << 20)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := NewClient(uuid.New().String(), conn)
	h.Register(c)
	defer h.Unregister(c.ID)
	log.Printf("[Relay] Client %s connected\n", c.ID)

	go c.WritePump(ctx)

	stopConn := h.store.SubscribeConnectionState(func(up bool) {
		c.send(ServerMessage{Type: TypeConn, OK: up})
	})
	defer stopConn()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Printf("[Relay] Client %s read error: %v\n", c.ID, err)
			}
			log.Printf("[Relay] Client %s disconnected\n", c.ID)
			conn.CloseNow()
			return
		}
		c.send(h.Handle(ctx, c, msg))
	}
}

// Handle executes one client operation and builds its reply.
func (h *Hub) Handle(ctx context.Context, c *Client, msg ClientMessage) ServerMessage {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	reply := ServerMessage{Type: TypeReply, ID: msg.ID}
	var err error
	switch msg.Op {
	case OpGet:
		reply.Value, err = h.store.Get(opCtx, msg.Path)
	case OpSet:
		err = h.store.Set(opCtx, msg.Path, msg.Value)
	case OpUpdate:
		err = h.store.Update(opCtx, msg.Path, msg.Updates)
	case OpMulti:
		err = h.store.MultiPathUpdate(opCtx, msg.Updates)
	case OpRemove:
		err = h.store.Remove(opCtx, msg.Path)
	case OpSub:
		if msg.Sub == "" {
			reply.Code, reply.Err = CodeBadRequest, "missing subscription id"
			return reply
		}
		subID := msg.Sub
		var unsub func()
		unsub, err = h.store.Subscribe(msg.Path, func(v any) {
			c.send(ServerMessage{Type: TypeValue, Sub: subID, Value: v})
		})
		if err == nil {
			c.addSub(subID, unsub)
		}
	case OpUnsub:
		if !c.dropSub(msg.Sub) {
			reply.Code, reply.Err = CodeUnknownSubID, "unknown subscription"
			return reply
		}
	default:
		reply.Code, reply.Err = CodeBadRequest, "unknown op "+msg.Op
		return reply
	}
	if err != nil {
		reply.Code, reply.Err = ErrorCode(err), err.Error()
		return reply
	}
	reply.OK = true
	return reply
}
