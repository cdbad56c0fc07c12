package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func summaryKey(sessionID string, audience transcript.Audience, version int) string {
	return fmt.Sprintf("summary:%s:%s:v%d", sessionID, audience, version)
}

// GetSummary returns (nil, nil) when the key is absent.
func (s *Store) GetSummary(ctx context.Context, sessionID string, audience transcript.Audience, version int) (*transcript.Summary, error) {
	b, err := s.rdb.Get(ctx, summaryKey(sessionID, audience, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeSummary(b)
}

func (s *Store) SetSummary(ctx context.Context, row *transcript.Summary) error {
	b, err := encodeSummary(row)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, summaryKey(row.SessionID, row.Audience, row.Version), b, s.ttl).Err()
}

// cachedSummary keeps the fields the model hides from API JSON.
type cachedSummary struct {
	ID        uint64              `json:"id"`
	SessionID string              `json:"session_id"`
	Audience  transcript.Audience `json:"audience"`
	Version   int                 `json:"version"`
	PromptKey string              `json:"prompt_key"`
	Payload   string              `json:"payload"`
	TicketID  string              `json:"ticket_id"`
	Category  string              `json:"category"`
	Summary   string              `json:"summary"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func encodeSummary(row *transcript.Summary) ([]byte, error) {
	return json.Marshal(cachedSummary(*row))
}

func decodeSummary(b []byte) (*transcript.Summary, error) {
	var c cachedSummary
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	row := transcript.Summary(c)
	return &row, nil
}
