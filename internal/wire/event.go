// Package wire defines the typed form of the server's push-stream envelope.
//
// Frames arrive as loosely-typed JSON `{type, properties}` objects, optionally
// wrapped in `{directory, payload: {...}}`. Decode turns one frame into an
// Event exactly once at the boundary; everything downstream dispatches on the
// typed variant fields instead of re-probing maps.
package wire

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a stream envelope type.
type EventType string

// Recognized envelope types. Frames with any other type still decode into an
// Event (with only Type/SessionID/Properties populated) so unknown types pass
// through unharmed.
const (
	EventServerConnected    EventType = "server.connected"
	EventServerHeartbeat    EventType = "server.heartbeat"
	EventSessionStatus      EventType = "session.status"
	EventMessagePartUpdated EventType = "message.part.updated"
	EventMessageUpdated     EventType = "message.updated"
	EventQuestionAsked      EventType = "question.asked"
	EventPermissionAsked    EventType = "permission.asked"
	EventSessionError       EventType = "session.error"
	EventSessionDiff        EventType = "session.diff"
	EventSessionUpdated     EventType = "session.updated"
)

// Event is one decoded stream frame.
//
// Exactly one of the variant pointers is non-nil for the envelope types that
// carry structured payloads; all of them are nil for passthrough and unknown
// types.
type Event struct {
	Type       EventType
	SessionID  string
	Properties map[string]any

	Status *StatusChange // EventSessionStatus
	Part   *Part         // EventMessagePartUpdated
	Delta  string        // EventMessagePartUpdated
	Info   *MessageInfo  // EventMessageUpdated
	Error  *ErrorInfo    // EventSessionError
}

// Known reports whether the event type is one of the recognized constants.
func (e *Event) Known() bool {
	switch e.Type {
	case EventServerConnected, EventServerHeartbeat, EventSessionStatus,
		EventMessagePartUpdated, EventMessageUpdated, EventQuestionAsked,
		EventPermissionAsked, EventSessionError, EventSessionDiff,
		EventSessionUpdated:
		return true
	default:
		return false
	}
}

// StatusChange is the payload of a session.status frame.
type StatusChange struct {
	Status string
	// Details is the full properties object, preserved for consumers.
	Details map[string]any
}

// Part is a single message part as carried by message.part.updated frames and
// message history responses.
type Part struct {
	ID        string     `json:"id,omitempty"`
	SessionID string     `json:"sessionID,omitempty"`
	MessageID string     `json:"messageID,omitempty"`
	Type      string     `json:"type,omitempty"`
	Text      string     `json:"text,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	State     *PartState `json:"state,omitempty"`
}

// PartState carries tool/subtask execution state nested inside a part.
type PartState struct {
	Status   string         `json:"status,omitempty"`
	Title    string         `json:"title,omitempty"`
	Agent    string         `json:"agent,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsToolUnit reports whether the part represents a tool or subtask execution
// unit (as opposed to plain streamed text).
func (p *Part) IsToolUnit() bool {
	if p == nil {
		return false
	}
	return p.Type == "tool" || p.Type == "agent" || p.Type == "subtask"
}

// MessageInfo is the message metadata carried by message.updated frames and
// message history responses.
type MessageInfo struct {
	ID        string      `json:"id,omitempty"`
	SessionID string      `json:"sessionID,omitempty"`
	Role      string      `json:"role,omitempty"`
	Finish    string      `json:"finish,omitempty"`
	Time      MessageTime `json:"time,omitempty"`
}

// MessageTime holds millisecond timestamps for a message.
type MessageTime struct {
	Created   int64 `json:"created,omitempty"`
	Completed int64 `json:"completed,omitempty"`
}

// Finished reports whether the message carries a finish marker or a completion
// timestamp.
func (m *MessageInfo) Finished() bool {
	if m == nil {
		return false
	}
	return m.Finish != "" || m.Time.Completed > 0
}

// ErrorInfo is the payload of a session.error frame.
type ErrorInfo struct {
	Name       string `json:"name,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// authErrorNames are server error names treated as authentication failures.
var authErrorNames = map[string]bool{
	"ProviderAuthError": true,
	"UnauthorizedError": true,
}

// IsAuth reports whether the error represents an authentication failure
// (HTTP 401 or a recognized auth-error name).
func (e *ErrorInfo) IsAuth() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == 401 || authErrorNames[e.Name]
}

type envelope struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Directory  string         `json:"directory"`
	Payload    *envelope      `json:"payload"`
}

// Decode parses one raw frame into an Event.
//
// The frame may be any JSON-compatible value (typically a map decoded from the
// socket); it is round-tripped through encoding/json so that nested payloads
// decode into their typed forms.
func Decode(v any) (*Event, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	// Relay deployments wrap the envelope in {directory, payload: {...}}.
	if env.Type == "" && env.Payload != nil {
		env = *env.Payload
	}
	if env.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}

	ev := &Event{
		Type:       EventType(env.Type),
		Properties: env.Properties,
		SessionID:  extractSessionID(env.Properties),
	}

	switch ev.Type {
	case EventSessionStatus:
		ev.Status = decodeStatus(env.Properties)
	case EventMessagePartUpdated:
		part := &Part{}
		if err := decodeField(env.Properties, "part", part); err != nil {
			return nil, fmt.Errorf("decode part: %w", err)
		}
		ev.Part = part
		ev.Delta = stringProp(env.Properties, "delta")
		if ev.Delta == "" {
			ev.Delta = part.Text
		}
	case EventMessageUpdated:
		info := &MessageInfo{}
		if err := decodeField(env.Properties, "info", info); err != nil {
			return nil, fmt.Errorf("decode message info: %w", err)
		}
		ev.Info = info
	case EventSessionError:
		ev.Error = decodeError(env.Properties)
	}
	return ev, nil
}

// extractSessionID resolves the session id from its possible property
// locations, in precedence order: sessionID, info.sessionID, part.sessionID.
func extractSessionID(props map[string]any) string {
	if s := stringProp(props, "sessionID"); s != "" {
		return s
	}
	for _, key := range []string{"info", "part"} {
		if nested, ok := props[key].(map[string]any); ok {
			if s := stringProp(nested, "sessionID"); s != "" {
				return s
			}
		}
	}
	return ""
}

// decodeStatus accepts both a plain string status and an object with a type
// field, which different server versions emit.
func decodeStatus(props map[string]any) *StatusChange {
	change := &StatusChange{Details: props}
	switch s := props["status"].(type) {
	case string:
		change.Status = s
	case map[string]any:
		change.Status = stringProp(s, "type")
	}
	return change
}

func decodeError(props map[string]any) *ErrorInfo {
	info := &ErrorInfo{}
	if err := decodeField(props, "error", info); err != nil || info.StatusCode == 0 {
		// Some servers nest the HTTP status under error.data.statusCode.
		if errObj, ok := props["error"].(map[string]any); ok {
			if data, ok := errObj["data"].(map[string]any); ok {
				if code, ok := data["statusCode"].(float64); ok {
					info.StatusCode = int(code)
				}
			}
			if info.Name == "" {
				info.Name = stringProp(errObj, "name")
			}
			if info.Message == "" {
				info.Message = stringProp(errObj, "message")
			}
		}
	}
	return info
}

// decodeField re-marshals props[key] into dst. A missing key leaves dst
// untouched.
func decodeField(props map[string]any, key string, dst any) error {
	v, ok := props[key]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func stringProp(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}
