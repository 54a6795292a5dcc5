package client

import (
	"github.com/bhandras/warden/internal/logger"
	"github.com/bhandras/warden/internal/session"
	"github.com/bhandras/warden/internal/wire"
)

// handleFrame normalizes one raw stream frame. It runs on the event queue.
//
// Malformed frames are logged and dropped; they never terminate the stream or
// propagate to the caller.
func (c *Client) handleFrame(payload map[string]any) {
	ev, err := wire.Decode(payload)
	if err != nil {
		logger.Warnf("dropping malformed frame: %v", err)
		return
	}

	now := c.clock.Now()
	c.rawLog.Append(now, payload)
	c.sig.emit(SignalRawEvent, map[string]any{
		"type":      string(ev.Type),
		"sessionID": ev.SessionID,
		"payload":   payload,
	})

	switch ev.Type {
	case wire.EventServerConnected, wire.EventServerHeartbeat:
		c.setHeartbeat(now)

	case wire.EventSessionStatus:
		c.handleStatus(ev)

	case wire.EventMessagePartUpdated:
		c.handlePartUpdated(ev)

	case wire.EventMessageUpdated:
		c.handleMessageUpdated(ev)

	case wire.EventQuestionAsked:
		c.registry.TouchActivity(ev.SessionID, now)
		c.sig.emit(SignalQuestion, map[string]any{
			"sessionID":  ev.SessionID,
			"properties": ev.Properties,
		})

	case wire.EventPermissionAsked:
		c.registry.TouchActivity(ev.SessionID, now)
		c.sig.emit(SignalPermission, map[string]any{
			"sessionID":  ev.SessionID,
			"properties": ev.Properties,
		})

	case wire.EventSessionError:
		c.handleSessionError(ev)

	case wire.EventSessionDiff:
		c.sig.emit(SignalSessionDiff, map[string]any{
			"sessionID":  ev.SessionID,
			"properties": ev.Properties,
		})

	case wire.EventSessionUpdated:
		c.sig.emit(SignalSessionUpdated, map[string]any{
			"sessionID":  ev.SessionID,
			"properties": ev.Properties,
		})

	default:
		// Unrecognized types pass through under their own name so consumers
		// never lose events the client predates.
		c.sig.emit(Signal(ev.Type), map[string]any{
			"sessionID":  ev.SessionID,
			"properties": ev.Properties,
		})
	}
}

// handleStatus applies the session status state machine.
func (c *Client) handleStatus(ev *wire.Event) {
	if ev.Status == nil || ev.SessionID == "" {
		logger.Warnf("session.status without session id or status, dropping")
		return
	}
	status := session.Status(ev.Status.Status)
	previous := c.registry.SetStatus(ev.SessionID, status)

	if status == session.StatusBusy || status == session.StatusRetry {
		c.registry.TouchActivity(ev.SessionID, c.clock.Now())
	}
	if status == session.StatusBusy {
		if previous != session.StatusBusy {
			c.startMonitoring(ev.SessionID)
		}
	} else {
		c.stopMonitoring(ev.SessionID)
	}

	c.sig.emit(SignalSessionStatus, map[string]any{
		"sessionID":      ev.SessionID,
		"status":         string(status),
		"previousStatus": string(previous),
		"details":        ev.Status.Details,
	})

	if status == session.StatusError || status == session.StatusRetry {
		c.maybeFailover(ev.SessionID, string(status))
	}
}

// displayRule extracts one display field from a tool part. Rules run in
// order; the first non-empty result wins, otherwise the documented default
// applies.
type displayRule func(p *wire.Part) string

var (
	agentNameRules = []displayRule{
		func(p *wire.Part) string { return metadataString(p, "subagent_type") },
		func(p *wire.Part) string {
			if p.State != nil {
				return p.State.Agent
			}
			return ""
		},
	}
	taskRules = []displayRule{
		func(p *wire.Part) string { return metadataString(p, "description") },
		func(p *wire.Part) string {
			if p.State != nil {
				return p.State.Title
			}
			return ""
		},
		func(p *wire.Part) string { return p.Tool },
	}
	taskStatusRules = []displayRule{
		func(p *wire.Part) string {
			if p.State != nil {
				return p.State.Status
			}
			return ""
		},
	}
)

const (
	defaultAgentName  = "agent"
	defaultTask       = "working"
	defaultTaskStatus = "running"
)

func applyRules(rules []displayRule, p *wire.Part, fallback string) string {
	for _, rule := range rules {
		if v := rule(p); v != "" {
			return v
		}
	}
	return fallback
}

func metadataString(p *wire.Part, key string) string {
	if p.State == nil || p.State.Metadata == nil {
		return ""
	}
	s, _ := p.State.Metadata[key].(string)
	return s
}

func (c *Client) handlePartUpdated(ev *wire.Event) {
	if ev.Part == nil || ev.SessionID == "" {
		return
	}
	c.registry.TouchActivity(ev.SessionID, c.clock.Now())

	if ev.Part.IsToolUnit() {
		c.sig.emit(SignalSubagentProgress, map[string]any{
			"sessionID": ev.SessionID,
			"agent":     applyRules(agentNameRules, ev.Part, defaultAgentName),
			"task":      applyRules(taskRules, ev.Part, defaultTask),
			"status":    applyRules(taskStatusRules, ev.Part, defaultTaskStatus),
		})
	}

	c.sig.emit(SignalMessageDelta, map[string]any{
		"sessionID": ev.SessionID,
		"messageID": ev.Part.MessageID,
		"delta":     ev.Delta,
		"part":      ev.Part,
	})
}

func (c *Client) handleMessageUpdated(ev *wire.Event) {
	if ev.Info == nil || ev.SessionID == "" {
		return
	}
	if ev.Info.Role == "assistant" {
		c.registry.TouchActivity(ev.SessionID, c.clock.Now())
	}
	if ev.Info.Finished() {
		c.sig.emit(SignalMessageComplete, map[string]any{
			"sessionID": ev.SessionID,
			"messageID": ev.Info.ID,
			"info":      ev.Info,
		})
	}
}

func (c *Client) handleSessionError(ev *wire.Event) {
	payload := map[string]any{
		"sessionID":  ev.SessionID,
		"properties": ev.Properties,
	}
	if ev.Error != nil {
		payload["error"] = ev.Error
	}
	if ev.Error.IsAuth() {
		c.sig.emit(SignalSessionErrorAuth, payload)
	}
	c.sig.emit(SignalSessionError, payload)

	if ev.SessionID != "" {
		c.maybeFailover(ev.SessionID, "error")
	}
}
