// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryaw001/dbtm-station/pkg/bodyproto"
)

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("channel: not connected")

const (
	handshakeTimeout = 10 * time.Second
	dialTimeout      = 15 * time.Second
)

// Events is the callback surface of a Channel. OnMessage and OnError fire
// from the channel's reader goroutine. Callbacks belonging to a connection
// stop firing once that connection has been superseded or closed.
type Events struct {
	OnOpen    func()
	OnMessage func(raw []byte)
	OnError   func(err error)
	OnClose   func()
}

// Channel owns the single WebSocket connection to the rig. It performs no
// protocol logic; it moves frames and reports connection transitions.
type Channel struct {
	mu     sync.Mutex
	events Events
	conn   *websocket.Conn
	addr   string
	gen    int // bumped on every teardown; stale readers check it
}

// NewChannel creates an unbound, disconnected channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Bind installs the event callbacks. Call once, before Connect.
func (c *Channel) Bind(events Events) {
	c.events = events
}

// deviceURL builds the rig endpoint from an operator-supplied address.
// A bare host gets the rig's fixed port; a full ws:// URL passes through.
func deviceURL(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	host := address
	if !strings.Contains(host, ":") {
		host = fmt.Sprintf("%s:%d", host, bodyproto.DevicePort)
	}
	return "ws://" + host + "/"
}

// Connect dials the rig at the given address. Any prior connection is torn
// down first, along with its reader, so an address change never leaks a
// connection or doubles up listeners. On success OnOpen fires and a reader
// goroutine starts delivering inbound frames.
func (c *Channel) Connect(address string) error {
	c.mu.Lock()
	c.teardownLocked()
	gen := c.gen
	c.addr = address
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, deviceURL(address), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("channel: connect to %s failed (HTTP %d): %w", address, resp.StatusCode, err)
		}
		return fmt.Errorf("channel: connect to %s failed: %w", address, err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Superseded by another Connect or a Close while dialing.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	if c.events.OnOpen != nil {
		c.events.OnOpen()
	}
	go c.readLoop(conn, gen)
	return nil
}

// Address returns the address of the last Connect attempt.
func (c *Channel) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Send writes one frame to the rig. Returns ErrNotConnected when no
// connection is open so the caller can surface the condition to the
// operator instead of dropping the command silently.
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("channel: send failed: %w", err)
	}
	return nil
}

// Close tears down the connection. Callbacks for the torn-down connection
// are suppressed from this point on.
func (c *Channel) Close() {
	c.mu.Lock()
	c.teardownLocked()
	c.mu.Unlock()
}

func (c *Channel) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
}

// readLoop delivers inbound frames until the connection fails or is
// superseded. Frame content is not inspected here; unparseable payloads
// are the session layer's concern.
func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			if !stale {
				c.conn = nil
				c.gen++
			}
			c.mu.Unlock()
			if stale {
				return
			}
			if !isExpectedClose(err) && c.events.OnError != nil {
				c.events.OnError(err)
			}
			if c.events.OnClose != nil {
				c.events.OnClose()
			}
			return
		}

		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale {
			return
		}
		if c.events.OnMessage != nil {
			c.events.OnMessage(raw)
		}
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
