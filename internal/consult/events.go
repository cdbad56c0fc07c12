package consult

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound event names.
const (
	EventStartConsult         = "start-consult"
	EventConsultantJoin       = "consultant-join"
	EventSendMessage          = "send-message"
	EventTyping               = "typing"
	EventEndConsult           = "end-consult"
	EventGetWaitingSessions   = "get-waiting-sessions"
	EventGetCompletedSessions = "get-completed-sessions"
)

// Outbound event names.
const (
	EventSessionCreated           = "session-created"
	EventSessionError             = "session-error"
	EventConsultantConnected      = "consultant-connected"
	EventReceiveMessage           = "receive-message"
	EventConsultEnded             = "consult-ended"
	EventSessionsUpdated          = "sessions-updated"
	EventWaitingSessions          = "waiting-sessions"
	EventCompletedSessionsUpdated = "completed-sessions-updated"
	EventCompletedSessions        = "completed-sessions"
)

// Event is the wire envelope in both directions.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an envelope. data that cannot be marshaled is
// a programming error, so it panics.
func NewEvent(name string, data any) Event {
	if data == nil {
		return Event{Name: name}
	}
	b, err := json.Marshal(data)
	if err != nil {
		panic("consult: marshal " + name + ": " + err.Error())
	}
	return Event{Name: name, Data: b}
}

type StartRequest struct {
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

type MessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
}

type TypingRequest struct {
	SessionID string `json:"sessionId"`
	Sender    string `json:"sender"`
	IsTyping  bool   `json:"isTyping"`
}

type TypingNotice struct {
	Sender   string `json:"sender"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}

var ErrMissingSessionID = errors.New("sessionId is required")

// DecodeSessionID accepts either a bare JSON string or {"sessionId": "..."}.
func DecodeSessionID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	var id string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", err
		}
	} else {
		var obj struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		id = obj.SessionID
	}
	if id == "" {
		return "", ErrMissingSessionID
	}
	return id, nil
}
