// Package wskv implements kvstore.Store against the websocket relay.
//
// The client keeps one connection, reconnects with exponential backoff when
// it drops, and re-establishes every live subscription afterwards. Requests
// in flight when the connection drops fail with kvstore.ErrUnavailable so
// that callers can retry them.
package wskv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"northstar/internal/kvstore"
	"northstar/internal/wshub"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxReconnectInterval  = 5 * time.Second
	readLimitMB           = 4
)

type subscription struct {
	path    string
	watchID uint64
}

type Client struct {
	url string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	conn        *websocket.Conn
	pending     map[string]chan wshub.ServerMessage
	subs        map[string]subscription
	fanout      *kvstore.Fanout
	closeOnce   sync.Once
	dialTimeout time.Duration
}

var _ kvstore.Store = (*Client)(nil)

// Dial connects to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial relay: %v", kvstore.ErrUnavailable, err)
	}
	conn.SetReadLimit(readLimitMB << 20)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:         url,
		ctx:         runCtx,
		cancel:      cancel,
		conn:        conn,
		pending:     make(map[string]chan wshub.ServerMessage),
		subs:        make(map[string]subscription),
		fanout:      kvstore.NewFanout(true),
		dialTimeout: defaultRequestTimeout,
	}
	c.wg.Add(1)
	go c.run(conn)
	return c, nil
}

func (c *Client) run(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		err := c.readLoop(conn)
		c.dropConnection(conn, err)
		if conn = c.reconnect(); conn == nil {
			return
		}
		c.resubscribe()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var msg wshub.ServerMessage
		if err := wsjson.Read(c.ctx, conn, &msg); err != nil {
			return err
		}
		switch msg.Type {
		case wshub.TypeReply:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case wshub.TypeValue:
			c.mu.Lock()
			sub, ok := c.subs[msg.Sub]
			c.mu.Unlock()
			if ok {
				c.fanout.Offer(sub.watchID, msg.Value)
			}
		case wshub.TypeConn:
			c.fanout.SetConnected(msg.OK)
		}
	}
}

func (c *Client) dropConnection(conn *websocket.Conn, err error) {
	conn.CloseNow()
	c.mu.Lock()
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]chan wshub.ServerMessage)
	c.mu.Unlock()

	c.fanout.SetConnected(false)
	for id, ch := range pending {
		ch <- wshub.ServerMessage{Type: wshub.TypeReply, ID: id, Code: wshub.CodeUnavailable, Err: "connection lost"}
	}
	if c.ctx.Err() == nil {
		log.Printf("[KV] Relay connection lost: %v\n", err)
	}
}

func (c *Client) reconnect() *websocket.Conn {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = maxReconnectInterval
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(b.NextBackOff()):
		}
		dialCtx, cancel := context.WithTimeout(c.ctx, c.dialTimeout)
		conn, _, err := websocket.Dial(dialCtx, c.url, nil)
		cancel()
		if err != nil {
			continue
		}
		conn.SetReadLimit(readLimitMB << 20)
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.fanout.SetConnected(true)
		log.Println("[KV] Relay connection re-established")
		return conn
	}
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for id, s := range c.subs {
		subs[id] = s
	}
	c.mu.Unlock()
	for id, s := range subs {
		ctx, cancel := context.WithTimeout(c.ctx, defaultRequestTimeout)
		if _, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpSub, Path: s.path, Sub: id}); err != nil {
			log.Printf("[KV] Resubscribe %q failed: %v\n", s.path, err)
		}
		cancel()
	}
}

func (c *Client) request(ctx context.Context, msg wshub.ClientMessage) (wshub.ServerMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}
	msg.ID = uuid.New().String()
	ch := make(chan wshub.ServerMessage, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		if c.ctx.Err() != nil {
			return wshub.ServerMessage{}, kvstore.ErrClosed
		}
		return wshub.ServerMessage{}, fmt.Errorf("%w: not connected to relay", kvstore.ErrUnavailable)
	}
	c.pending[msg.ID] = ch
	c.mu.Unlock()

	if err := wsjson.Write(ctx, conn, msg); err != nil {
		c.forget(msg.ID)
		return wshub.ServerMessage{}, fmt.Errorf("%w: %v", kvstore.ErrUnavailable, err)
	}
	select {
	case reply := <-ch:
		if !reply.OK {
			return reply, wshub.CodeError(reply.Code, reply.Err)
		}
		return reply, nil
	case <-ctx.Done():
		c.forget(msg.ID)
		return wshub.ServerMessage{}, fmt.Errorf("%w: %v", kvstore.ErrUnavailable, ctx.Err())
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Get(ctx context.Context, path string) (any, error) {
	if _, err := kvstore.Split(path); err != nil {
		return nil, err
	}
	reply, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpGet, Path: path})
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *Client) Set(ctx context.Context, path string, value any) error {
	if _, err := kvstore.Split(path); err != nil {
		return err
	}
	_, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpSet, Path: path, Value: value})
	return err
}

func (c *Client) Update(ctx context.Context, path string, fields kvstore.Object) error {
	if _, err := kvstore.Expand(path, fields); err != nil {
		return err
	}
	_, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpUpdate, Path: path, Updates: fields})
	return err
}

func (c *Client) MultiPathUpdate(ctx context.Context, updates map[string]any) error {
	if _, err := kvstore.SortedPaths(updates); err != nil {
		return err
	}
	_, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpMulti, Updates: updates})
	return err
}

func (c *Client) Remove(ctx context.Context, path string) error {
	if _, err := kvstore.Split(path); err != nil {
		return err
	}
	_, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpRemove, Path: path})
	return err
}

// Subscribe registers fn locally first, so the subscription survives a
// failed initial request and is re-established after the next reconnect.
func (c *Client) Subscribe(path string, fn kvstore.ValueFunc) (func(), error) {
	if _, err := kvstore.Split(path); err != nil {
		return nil, err
	}
	if c.ctx.Err() != nil {
		return nil, kvstore.ErrClosed
	}
	subID := uuid.New().String()
	watchID := c.fanout.Watch(path, fn)
	c.mu.Lock()
	c.subs[subID] = subscription{path: kvstore.Clean(path), watchID: watchID}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, defaultRequestTimeout)
	defer cancel()
	_, err := c.request(ctx, wshub.ClientMessage{Op: wshub.OpSub, Path: path, Sub: subID})
	if err != nil && !errors.Is(err, kvstore.ErrUnavailable) {
		c.release(subID, watchID)
		return nil, err
	}

	return func() {
		c.release(subID, watchID)
		ctx, cancel := context.WithTimeout(c.ctx, defaultRequestTimeout)
		defer cancel()
		c.request(ctx, wshub.ClientMessage{Op: wshub.OpUnsub, Sub: subID})
	}, nil
}

func (c *Client) release(subID string, watchID uint64) {
	c.mu.Lock()
	delete(c.subs, subID)
	c.mu.Unlock()
	c.fanout.Unwatch(watchID)
}

// SubscribeConnectionState reports whether both the relay connection and
// the backend behind it are up.
func (c *Client) SubscribeConnectionState(fn kvstore.ConnectionFunc) func() {
	return c.fanout.WatchConnection(fn)
}

// Close disconnects and stops reconnecting.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client closing")
		}
		c.wg.Wait()
		c.fanout.Close()
	})
	return nil
}
