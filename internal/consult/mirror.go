package consult

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

// Store is the durable mirror of live sessions. *transcript.Repo implements it.
type Store interface {
	CreateSession(ctx context.Context, id string, requesterID uint64) error
	UpdateSessionStatus(ctx context.Context, id string, status transcript.Status, consultantID *uint64) error
	AppendMessage(ctx context.Context, sessionID string, seq int64, role transcript.SenderRole, content string) error
}

var _ Store = (*transcript.Repo)(nil)

// mirror runs best-effort writes: each call gets its own timeout and a
// failure is logged, never returned.
type mirror struct {
	store   Store
	timeout time.Duration
	log     *log.Logger
}

func (m *mirror) write(ctx context.Context, op string, kv []any, fn func(ctx context.Context, s Store) error) {
	if m.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := fn(cctx, m.store); err != nil {
		m.log.Error("mirror write failed", append([]any{"op", op, "err", err}, kv...)...)
	}
}
