package api

import "github.com/bhandras/warden/internal/wire"

// ModelRef identifies a provider/model pair.
//
// ModelRef is comparable; "distinct" models compare unequal field-wise.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// SessionTime holds millisecond timestamps for a session.
type SessionTime struct {
	Created int64 `json:"created,omitempty"`
	Updated int64 `json:"updated,omitempty"`
}

// Session is the server-owned session record. The client holds it by id and
// never mutates it outside the REST surface.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title,omitempty"`
	Directory string      `json:"directory,omitempty"`
	Model     *ModelRef   `json:"model,omitempty"`
	Time      SessionTime `json:"time,omitempty"`
}

// Message is one history entry: metadata plus its parts.
type Message struct {
	Info  wire.MessageInfo `json:"info"`
	Parts []wire.Part      `json:"parts,omitempty"`
}

// Diff is one file diff reported for a session.
type Diff struct {
	File    string `json:"file,omitempty"`
	Added   int    `json:"added,omitempty"`
	Removed int    `json:"removed,omitempty"`
	Patch   string `json:"patch,omitempty"`
}

// TextPart is the outbound text content unit of a send request.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendMessageRequest is the body of a send-message call.
type SendMessageRequest struct {
	MessageID string     `json:"messageID,omitempty"`
	Parts     []TextPart `json:"parts"`
	Agent     string     `json:"agent,omitempty"`
	Model     *ModelRef  `json:"model,omitempty"`
	System    string     `json:"system,omitempty"`
}

// Agent describes a remote agent profile.
type Agent struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Model       *ModelRef `json:"model,omitempty"`
}

// Provider describes a configured model provider.
type Provider struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Models map[string]any `json:"models,omitempty"`
}
