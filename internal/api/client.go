// Package api implements the REST control surface of the remote session
// service.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"
)

// ErrAuth marks authentication failures (HTTP 401) so callers can distinguish
// them from generic request failures.
var ErrAuth = errors.New("authentication failed")

const (
	// defaultRequestTimeout is the per-request timeout.
	defaultRequestTimeout = 15 * time.Second
	// basicAuthUser is the fixed username of the password scheme; the server
	// only checks the password half.
	basicAuthUser = "opencode"
)

// Client wraps the REST surface: session CRUD, message/diff history, message
// send, abort, question/permission replies, agents, config, providers.
type Client struct {
	http *resty.Client
}

// New creates a REST client for the given base URL. A non-empty password is
// converted into a fixed-scheme basic-auth header sent on every request.
func New(baseURL, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
	if password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(basicAuthUser + ":" + password))
		httpClient.SetHeader("Authorization", "Basic "+credentials)
	}
	return &Client{http: httpClient}
}

// Close releases transport resources held by the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// check converts a resty response/error pair into a single error, classifying
// 401s as ErrAuth.
func check(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if res.StatusCode() == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrAuth, strings.TrimSpace(res.String()))
	}
	if res.IsError() {
		return fmt.Errorf("request failed: %s: %s", res.Status(), strings.TrimSpace(res.String()))
	}
	return nil
}

// CreateSession creates a new remote session.
func (c *Client) CreateSession(ctx context.Context, title, directory string) (*Session, error) {
	var out Session
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"title": title, "directory": directory}).
		SetResult(&out).
		Post("/session")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &out, nil
}

// GetSession loads one session by id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var out Session
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/session/" + sessionID)
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &out, nil
}

// UpdateSession patches mutable session fields (currently the title).
func (c *Client) UpdateSession(ctx context.Context, sessionID, title string) (*Session, error) {
	var out Session
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"title": title}).
		SetResult(&out).
		Patch("/session/" + sessionID)
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return &out, nil
}

// ListSessions lists all sessions.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/session")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// GetMessages fetches message history for a session. limit <= 0 means no
// limit.
func (c *Client) GetMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	var out []Message
	req := c.http.R().
		SetContext(ctx).
		SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	res, err := req.Get("/session/" + sessionID + "/message")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return out, nil
}

// GetDiffs fetches the diff history for a session.
func (c *Client) GetDiffs(ctx context.Context, sessionID string) ([]Diff, error) {
	var out []Diff
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/session/" + sessionID + "/diff")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("get diffs: %w", err)
	}
	return out, nil
}

// SendMessage submits a user prompt to a session.
func (c *Client) SendMessage(ctx context.Context, sessionID string, req SendMessageRequest) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/session/" + sessionID + "/message")
	if err := check(res, err); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// AbortSession aborts the in-flight operation for a session.
func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	res, err := c.http.R().
		SetContext(ctx).
		Post("/session/" + sessionID + "/abort")
	if err := check(res, err); err != nil {
		return fmt.Errorf("abort session: %w", err)
	}
	return nil
}

// ReplyToQuestion answers a question raised over the stream.
func (c *Client) ReplyToQuestion(ctx context.Context, requestID, answer string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"answer": answer}).
		Post("/question/" + requestID + "/reply")
	if err := check(res, err); err != nil {
		return fmt.Errorf("reply to question: %w", err)
	}
	return nil
}

// ReplyToPermission responds to a permission request for a session.
func (c *Client) ReplyToPermission(ctx context.Context, sessionID, permissionID, response string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"response": response}).
		Post("/session/" + sessionID + "/permissions/" + permissionID)
	if err := check(res, err); err != nil {
		return fmt.Errorf("reply to permission: %w", err)
	}
	return nil
}

// ListAgents lists the remote agent profiles.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/agent")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return out, nil
}

// GetConfig fetches the global remote configuration.
func (c *Client) GetConfig(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/config")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return out, nil
}

// PatchConfig applies a partial update to the global remote configuration.
func (c *Client) PatchConfig(ctx context.Context, patch map[string]any) (map[string]any, error) {
	var out map[string]any
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(patch).
		SetResult(&out).
		Patch("/config")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("patch config: %w", err)
	}
	return out, nil
}

// ListProviders lists the configured model providers.
func (c *Client) ListProviders(ctx context.Context) ([]Provider, error) {
	var out []Provider
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/config/providers")
	if err := check(res, err); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return out, nil
}
