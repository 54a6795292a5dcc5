// Package stream maintains the single inbound Socket.IO connection carrying
// the server's multiplexed event feed.
//
// All session events arrive on one "event" channel whose payload is the JSON
// envelope; the connection layer does not interpret it beyond handing it to
// the registered handler.
package stream

import (
	"fmt"
	"sync"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/bhandras/warden/internal/logger"
)

// eventChannel is the single Socket.IO event name carrying envelope frames.
const eventChannel = "event"

// Handlers receives connection lifecycle callbacks and raw frames.
//
// Callbacks may fire from socket goroutines; implementations must be safe to
// call from any goroutine.
type Handlers struct {
	OnConnected    func()
	OnDisconnected func(reason string)
	OnError        func(err error)
	// OnFrame delivers one raw envelope frame. The payload is the decoded
	// JSON value as delivered by the socket library.
	OnFrame func(payload map[string]any)
}

// Conn is the client's inbound stream connection.
type Conn struct {
	serverURL string
	password  string

	mu        sync.RWMutex
	socket    *socket.Socket
	handlers  Handlers
	connected bool
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a stream connection. Connect must be called before frames flow.
func New(serverURL, password string, handlers Handlers) *Conn {
	return &Conn{
		serverURL: serverURL,
		password:  password,
		handlers:  handlers,
		done:      make(chan struct{}),
	}
}

// Connect establishes the Socket.IO connection.
func (c *Conn) Connect() error {
	logger.Debugf("stream: connecting to %s (path: /event)", c.serverURL)

	opts := socket.DefaultOptions()
	opts.SetPath("/event")
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	if c.password != "" {
		opts.SetAuth(map[string]interface{}{"password": c.password})
	}

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	sock.On(types.EventName("connect"), func(args ...any) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		logger.Debugf("stream: connected, id=%s", sock.Id())
		if c.handlers.OnConnected != nil {
			c.handlers.OnConnected()
		}
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		logger.Debugf("stream: disconnected: %s", reason)
		if c.handlers.OnDisconnected != nil {
			c.handlers.OnDisconnected(reason)
		}
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		if len(args) == 0 {
			return
		}
		logger.Warnf("stream: connection error: %v", args[0])
		if c.handlers.OnError != nil {
			c.handlers.OnError(fmt.Errorf("stream connection error: %v", args[0]))
		}
	})

	sock.On(types.EventName(eventChannel), func(args ...any) {
		if len(args) == 0 {
			return
		}
		payload, ok := args[0].(map[string]interface{})
		if !ok {
			logger.Warnf("stream: dropping non-object frame: %T", args[0])
			return
		}
		if c.handlers.OnFrame != nil {
			c.handlers.OnFrame(payload)
		}
	})

	return nil
}

// WaitForConnect waits for the socket to report connected or times out.
func (c *Conn) WaitForConnect(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return true
		}
		select {
		case <-c.done:
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
	return c.IsConnected()
}

// IsConnected returns whether the connection is established.
func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	sock := c.socket
	connected := c.connected
	c.mu.RUnlock()

	if connected {
		return true
	}
	if sock != nil && sock.Connected() {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		return true
	}
	return false
}

// Close tears down the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		c.socket.Disconnect()
		c.socket = nil
	}
	c.connected = false
	return nil
}
