package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/suPer8Hu/consult-desk/internal/ai"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

const (
	CurrentVersion      = 1
	DefaultMessageLimit = 160
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSummaryNotFound = errors.New("summary not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidOutput   = errors.New("invalid json from generator")
)

type Store interface {
	GetSession(ctx context.Context, id string) (*transcript.Session, error)
	CountMessages(ctx context.Context, sessionID string) (int64, error)
	ListMessages(ctx context.Context, sessionID string, order transcript.Order, limit int) ([]transcript.Message, error)
	FindSummary(ctx context.Context, sessionID string, audience transcript.Audience, version int) (*transcript.Summary, error)
	UpsertSummary(ctx context.Context, s *transcript.Summary) error
}

// Cache is an optional read-through cache of stored summaries. GetSummary
// returns (nil, nil) on a miss.
type Cache interface {
	GetSummary(ctx context.Context, sessionID string, audience transcript.Audience, version int) (*transcript.Summary, error)
	SetSummary(ctx context.Context, s *transcript.Summary) error
}

type Service struct {
	store        Store
	gen          ai.Generator
	cache        Cache
	log          *log.Logger
	messageLimit int
}

func NewService(store Store, gen ai.Generator, logger *log.Logger, messageLimit int) *Service {
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}
	return &Service{store: store, gen: gen, log: logger, messageLimit: messageLimit}
}

func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

// authorize loads the durable session and checks that requester is one of
// its two parties.
func (s *Service) authorize(ctx context.Context, sessionID string, requester uint64) (*transcript.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !sess.HasParty(requester) {
		return nil, ErrForbidden
	}
	return sess, nil
}

// Get returns the stored summary. It never calls the generator.
func (s *Service) Get(ctx context.Context, sessionID string, audience transcript.Audience, requester uint64) (*transcript.Summary, error) {
	if _, err := s.authorize(ctx, sessionID, requester); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, sessionID, audience, CurrentVersion)
		if err != nil {
			s.log.Warn("summary cache read failed", "session_id", sessionID, "audience", audience, "err", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	row, err := s.store.FindSummary(ctx, sessionID, audience, CurrentVersion)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	s.fillCache(ctx, row)
	return row, nil
}

// Generate builds the summary from the session's transcript and stores it,
// replacing any earlier summary for the same session, audience and version.
// limit <= 0 uses the service default.
func (s *Service) Generate(ctx context.Context, sessionID string, audience transcript.Audience, requester uint64, limit int) (*transcript.Summary, error) {
	if _, err := s.authorize(ctx, sessionID, requester); err != nil {
		return nil, err
	}
	return s.generate(ctx, sessionID, audience, limit)
}

// Regenerate is Generate without the party check, for trusted callers such
// as the summary worker.
func (s *Service) Regenerate(ctx context.Context, sessionID string, audience transcript.Audience) (*transcript.Summary, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s.generate(ctx, sessionID, audience, 0)
}

func (s *Service) generate(ctx context.Context, sessionID string, audience transcript.Audience, limit int) (*transcript.Summary, error) {
	if limit <= 0 {
		limit = s.messageLimit
	}

	msgs, err := s.loadTranscript(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	system, promptKey := instructionFor(audience)
	raw, err := s.gen.Generate(ctx, system, userContent(RenderTranscript(msgs)))
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	obj, payload, err := ParseObject(raw)
	if err != nil {
		s.log.Error("summary output rejected", "session_id", sessionID, "audience", audience, "err", err, "raw", raw)
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	row := &transcript.Summary{
		SessionID: sessionID,
		Audience:  audience,
		Version:   CurrentVersion,
		PromptKey: promptKey,
		Payload:   payload,
		TicketID:  truncateRunes(stringField(obj, "id"), 128),
		Category:  truncateRunes(stringField(obj, "category"), 64),
		Summary:   truncateRunes(stringField(obj, "summary"), 255),
	}
	if err := s.store.UpsertSummary(ctx, row); err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	s.fillCache(ctx, row)

	s.log.Info("summary generated", "session_id", sessionID, "audience", audience,
		"messages", len(msgs), "category", row.Category)
	return row, nil
}

// loadTranscript returns at most limit messages in ascending seq order,
// dropping the oldest when the session is longer than limit.
func (s *Service) loadTranscript(ctx context.Context, sessionID string, limit int) ([]transcript.Message, error) {
	total, err := s.store.CountMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if total <= int64(limit) {
		msgs, err := s.store.ListMessages(ctx, sessionID, transcript.Ascending, 0)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		return msgs, nil
	}

	recentDesc, err := s.store.ListMessages(ctx, sessionID, transcript.Descending, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	// reverse to ASC (oldest -> newest)
	msgs := make([]transcript.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		msgs = append(msgs, recentDesc[i])
	}
	return msgs, nil
}

func (s *Service) fillCache(ctx context.Context, row *transcript.Summary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSummary(ctx, row); err != nil {
		s.log.Warn("summary cache write failed", "session_id", row.SessionID, "audience", row.Audience, "err", err)
	}
}
