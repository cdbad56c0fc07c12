package transcript

import (
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusConnected Status = "CONNECTED"
	StatusEnded     Status = "ENDED"
)

// SenderRole is the durable author tag of a message. The requester side is
// stored as USER.
type SenderRole string

const (
	SenderUser       SenderRole = "USER"
	SenderConsultant SenderRole = "CONSULTANT"
)

type Audience string

const (
	AudienceUser       Audience = "USER"
	AudienceConsultant Audience = "CONSULTANT"
)

func ParseAudience(s string) (Audience, bool) {
	switch Audience(s) {
	case AudienceUser, "user":
		return AudienceUser, true
	case AudienceConsultant, "consultant":
		return AudienceConsultant, true
	}
	return "", false
}

type Session struct {
	ID           string    `gorm:"primaryKey;type:varchar(40)" json:"id"`
	UserID       uint64    `gorm:"index;not null" json:"user_id"`
	ConsultantID *uint64   `gorm:"index" json:"consultant_id"`
	Status       Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "consult_sessions" }

// HasParty reports whether userID is the requester or the assigned consultant.
func (s *Session) HasParty(userID uint64) bool {
	if s.UserID == userID {
		return true
	}
	return s.ConsultantID != nil && *s.ConsultantID == userID
}

type Message struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string     `gorm:"type:varchar(40);not null;index:uniq_consult_msg_seq,unique,priority:1" json:"session_id"`
	Seq        int64      `gorm:"not null;index:uniq_consult_msg_seq,unique,priority:2" json:"seq"`
	SenderRole SenderRole `gorm:"type:varchar(16);not null" json:"sender_role"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Message) TableName() string { return "consult_messages" }

type Summary struct {
	ID        uint64   `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string   `gorm:"type:varchar(40);not null;index:uniq_consult_summary,unique,priority:1" json:"session_id"`
	Audience  Audience `gorm:"type:varchar(16);not null;index:uniq_consult_summary,unique,priority:2" json:"audience"`
	Version   int      `gorm:"not null;index:uniq_consult_summary,unique,priority:3" json:"version"`
	PromptKey string   `gorm:"type:varchar(32);not null" json:"prompt_key"`
	Payload   string   `gorm:"type:text;not null" json:"-"`

	// denormalized from Payload for listing
	TicketID string `gorm:"type:varchar(128);index" json:"ticket_id"`
	Category string `gorm:"type:varchar(64);index" json:"category"`
	Summary  string `gorm:"type:varchar(255)" json:"summary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Summary) TableName() string { return "consult_summaries" }

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Session{}, &Message{}, &Summary{})
}
