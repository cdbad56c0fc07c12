package consult

import (
	"context"
	"sync"
	"time"
)

type transcriptBuf struct {
	mu       sync.Mutex
	seq      int64
	messages []Message
}

// Sequencer owns the live transcripts: per-session sequence counters and
// message buffers.
type Sequencer struct {
	mu   sync.Mutex
	bufs map[string]*transcriptBuf

	hub    *Hub
	mirror *mirror
	now    func() time.Time
}

func NewSequencer(hub *Hub, m *mirror) *Sequencer {
	return &Sequencer{
		bufs:   make(map[string]*transcriptBuf),
		hub:    hub,
		mirror: m,
		now:    time.Now,
	}
}

func (s *Sequencer) buf(sessionID string, create bool) *transcriptBuf {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bufs[sessionID]
	if b == nil && create {
		b = &transcriptBuf{}
		s.bufs[sessionID] = b
	}
	return b
}

// Append assigns the next seq, buffers the message and broadcasts it to the
// session channel as one step with respect to other appends on the same
// session. The durable mirror runs afterwards and cannot hold up delivery.
func (s *Sequencer) Append(ctx context.Context, sessionID, sender, content string) Message {
	b := s.buf(sessionID, true)

	b.mu.Lock()
	b.seq++
	msg := Message{
		SessionID:  sessionID,
		Seq:        b.seq,
		Sender:     sender,
		SenderRole: NormalizeSenderRole(sender),
		Content:    content,
		Timestamp:  s.now(),
	}
	b.messages = append(b.messages, msg)
	s.hub.Broadcast(sessionID, NewEvent(EventReceiveMessage, msg))
	b.mu.Unlock()

	s.mirror.write(ctx, "append_message", []any{"session_id", sessionID, "seq", msg.Seq},
		func(ctx context.Context, st Store) error {
			return st.AppendMessage(ctx, sessionID, msg.Seq, msg.SenderRole, msg.Content)
		})
	return msg
}

// Messages returns a copy of the live transcript in seq order.
func (s *Sequencer) Messages(sessionID string) []Message {
	b := s.buf(sessionID, false)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.messages...)
}

// LastSeq is 0 when the session has no messages.
func (s *Sequencer) LastSeq(sessionID string) int64 {
	b := s.buf(sessionID, false)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Purge drops the buffer and its counter.
func (s *Sequencer) Purge(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bufs, sessionID)
}
