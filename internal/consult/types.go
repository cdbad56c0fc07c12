package consult

import (
	"time"

	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

// Session is a point-in-time copy of a registry entry.
type Session struct {
	ID           string            `json:"sessionId"`
	RequesterID  uint64            `json:"-"`
	ConsultantID *uint64           `json:"-"`
	Status       transcript.Status `json:"status"`
	DisplayName  string            `json:"userName"`
	Role         string            `json:"userRole,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type WaitingSession struct {
	SessionID   string            `json:"sessionId"`
	DisplayName string            `json:"userName"`
	Status      transcript.Status `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type CompletedSession struct {
	SessionID   string    `json:"sessionId"`
	DisplayName string    `json:"userName"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Message is one entry of a live transcript. Seq, not Timestamp, orders it.
type Message struct {
	SessionID  string                `json:"sessionId"`
	Seq        int64                 `json:"seq"`
	Sender     string                `json:"sender"`
	SenderRole transcript.SenderRole `json:"senderRole"`
	Content    string                `json:"message"`
	Timestamp  time.Time             `json:"timestamp"`
}
