// Package client implements the session runtime in front of a remote
// AI-agent session service.
//
// The client consumes the service's multiplexed push stream and REST control
// surface and exposes:
//   - typed per-session state transitions (status, activity, model binding)
//   - liveness monitoring of busy sessions with staleness detection
//   - autonomous abort-and-retry recovery with optional model failover
//   - bounded historical rehydration through the live signal surface
//
// All stream handling runs on a single serialized event queue; consumers
// observe the client only through emitted signals and read-only accessors.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bhandras/warden/internal/api"
	"github.com/bhandras/warden/internal/clock"
	"github.com/bhandras/warden/internal/dispatch"
	"github.com/bhandras/warden/internal/session"
	"github.com/bhandras/warden/internal/stream"
	"github.com/bhandras/warden/internal/wire"
)

const (
	// defaultCheckInterval is the liveness tick period.
	defaultCheckInterval = 1 * time.Second
	// defaultSessionTimeout is how long a busy session may stay silent before
	// it is considered stale.
	defaultSessionTimeout = 4 * time.Minute
	// defaultRetrySettleDelay is the pause between abort and resend on the
	// timeout-driven retry path.
	defaultRetrySettleDelay = 1 * time.Second
	// defaultFailoverSettleDelay is the pause between abort and resend on the
	// status-driven failover path.
	defaultFailoverSettleDelay = 500 * time.Millisecond
	// defaultQueueSize is the mailbox size of the event and callback queues.
	defaultQueueSize = 256
)

// Config carries construction-time settings.
type Config struct {
	// BaseURL is the server base URL, without a trailing slash.
	BaseURL string
	// Password, when set, is sent as a fixed-scheme basic-auth header on REST
	// calls and as stream auth.
	Password string
	// AutoConnect dials the stream during New.
	AutoConnect bool
	// CheckInterval is the liveness tick period (default 1s).
	CheckInterval time.Duration
	// SessionTimeout is the staleness threshold for busy sessions
	// (default 4m).
	SessionTimeout time.Duration
	// RetrySettleDelay is the abort-to-resend pause on timeout retries
	// (default 1s).
	RetrySettleDelay time.Duration
	// FailoverSettleDelay is the abort-to-resend pause on status-driven
	// failover (default 500ms).
	FailoverSettleDelay time.Duration
	// RequestTimeout bounds individual REST calls.
	RequestTimeout time.Duration
	// RawLogCapacity bounds the raw event log (default 2000).
	RawLogCapacity int
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	if c.RetrySettleDelay <= 0 {
		c.RetrySettleDelay = defaultRetrySettleDelay
	}
	if c.FailoverSettleDelay <= 0 {
		c.FailoverSettleDelay = defaultFailoverSettleDelay
	}
	if c.RawLogCapacity <= 0 {
		c.RawLogCapacity = wire.DefaultRawLogCapacity
	}
	return c
}

// SendOptions are the optional parameters of SendMessage.
type SendOptions struct {
	// Agent selects the remote agent profile.
	Agent string
	// Model overrides the session's current model binding for this send.
	Model *api.ModelRef
	// System overrides the system prompt.
	System string
}

// Client is the session runtime.
type Client struct {
	cfg      Config
	api      *api.Client
	stream   *stream.Conn
	registry *session.Registry
	rawLog   *wire.RawLog
	clock    clock.Clock

	// events serializes every inbound frame and liveness tick; all state
	// transitions happen on this queue.
	events *dispatch.Queue
	sig    *emitter

	hbMu          sync.Mutex
	lastHeartbeat time.Time
}

// New creates a Client. When cfg.AutoConnect is set the stream connection is
// dialed before returning.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL not set")
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:      cfg,
		api:      api.New(cfg.BaseURL, cfg.Password, cfg.RequestTimeout),
		registry: session.NewRegistry(),
		rawLog:   wire.NewRawLog(cfg.RawLogCapacity),
		clock:    clock.Real{},
		events:   dispatch.New(defaultQueueSize),
		sig:      newEmitter(defaultQueueSize),
	}
	c.stream = stream.New(cfg.BaseURL, cfg.Password, stream.Handlers{
		OnConnected:    func() { c.sig.emit(SignalConnected, map[string]any{"serverURL": cfg.BaseURL}) },
		OnDisconnected: func(reason string) { c.sig.emit(SignalDisconnected, map[string]any{"reason": reason}) },
		OnError:        func(err error) { c.sig.emit(SignalError, map[string]any{"error": err.Error()}) },
		OnFrame: func(payload map[string]any) {
			_ = c.events.Do(func() { c.handleFrame(payload) })
		},
	})

	if cfg.AutoConnect {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Connect dials the inbound event stream.
func (c *Client) Connect() error {
	return c.stream.Connect()
}

// IsConnected reports whether the stream connection is established.
func (c *Client) IsConnected() bool {
	return c.stream.IsConnected()
}

// Close tears down the stream, all liveness timers, and the work queues.
func (c *Client) Close() error {
	err := c.stream.Close()
	c.registry.StopAllMonitors()
	c.events.Close()
	c.sig.close()
	if apiErr := c.api.Close(); err == nil {
		err = apiErr
	}
	return err
}

// On registers a handler for one signal.
func (c *Client) On(signal Signal, handler Handler) {
	c.sig.on(signal, handler)
}

// OnAny registers a handler receiving every signal.
func (c *Client) OnAny(handler AnyHandler) {
	c.sig.onAny(handler)
}

// SendMessage submits a user prompt and records it as the session's pending
// prompt for recovery. When opts.Model is nil the session's current model
// binding (if any) is applied.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string, opts SendOptions) error {
	req := api.SendMessageRequest{
		MessageID: uuid.NewString(),
		Parts:     []api.TextPart{{Type: "text", Text: text}},
		Agent:     opts.Agent,
		System:    opts.System,
	}
	if opts.Model != nil {
		m := *opts.Model
		req.Model = &m
	} else if current, ok := c.registry.CurrentModel(sessionID); ok {
		req.Model = &current
	}
	if err := c.api.SendMessage(ctx, sessionID, req); err != nil {
		return err
	}
	c.registry.SetPrompt(sessionID, session.PendingPrompt{
		Text:   text,
		Agent:  opts.Agent,
		Model:  opts.Model,
		System: opts.System,
	})
	return nil
}

// ConfigureSessionModels installs the primary (and optional secondary) model
// binding for a session, resetting the current model to primary.
func (c *Client) ConfigureSessionModels(sessionID string, primary api.ModelRef, secondary *api.ModelRef) {
	c.registry.ConfigureModels(sessionID, primary, secondary)
}

// GetSessionStatus returns the tracked status for a session.
func (c *Client) GetSessionStatus(sessionID string) (session.Status, bool) {
	return c.registry.Status(sessionID)
}

// GetModelBinding returns a copy of the session's model binding.
func (c *Client) GetModelBinding(sessionID string) (session.ModelBinding, bool) {
	return c.registry.Binding(sessionID)
}

// RetryAttempts returns the session's consecutive timeout-retry count.
func (c *Client) RetryAttempts(sessionID string) int {
	return c.registry.Attempts(sessionID)
}

// SecondsSinceLastActivity returns whole seconds since the session's last
// recorded AI activity. ok is false when no activity was ever recorded.
func (c *Client) SecondsSinceLastActivity(sessionID string) (int, bool) {
	last, ok := c.registry.LastActivity(sessionID)
	if !ok {
		return 0, false
	}
	return int(c.clock.Now().Sub(last) / time.Second), true
}

// IsSessionResponsive reports whether a session is considered responsive: a
// non-busy session always is; a busy one must have produced activity within
// the session timeout.
func (c *Client) IsSessionResponsive(sessionID string) bool {
	status, ok := c.registry.Status(sessionID)
	if !ok || status != session.StatusBusy {
		return true
	}
	last, ok := c.registry.LastActivity(sessionID)
	if !ok {
		return true
	}
	return c.clock.Now().Sub(last) < c.cfg.SessionTimeout
}

// LastHeartbeat returns the time of the most recent server heartbeat (or
// server.connected event). Zero when none has arrived.
func (c *Client) LastHeartbeat() time.Time {
	c.hbMu.Lock()
	defer c.hbMu.Unlock()
	return c.lastHeartbeat
}

func (c *Client) setHeartbeat(t time.Time) {
	c.hbMu.Lock()
	defer c.hbMu.Unlock()
	c.lastHeartbeat = t
}

// RawEvents returns a snapshot of the bounded raw event log, oldest first.
func (c *Client) RawEvents() []wire.RawEntry {
	return c.rawLog.Snapshot()
}

// RemoveSession drops all tracked state for a session, stopping its liveness
// timer. The caller decides when a session is finished; the client never
// removes sessions on its own.
func (c *Client) RemoveSession(sessionID string) {
	c.registry.Remove(sessionID)
}

// API exposes the REST control surface for direct calls (session CRUD,
// replies, agents, config, providers).
func (c *Client) API() *api.Client {
	return c.api
}
