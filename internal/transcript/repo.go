package transcript

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type Order int

const (
	Ascending Order = iota
	Descending
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, id string, requesterID uint64) error {
	return r.db.WithContext(ctx).Create(&Session{
		ID:     id,
		UserID: requesterID,
		Status: StatusWaiting,
	}).Error
}

// UpdateSessionStatus leaves consultant_id untouched when consultantID is nil.
func (r *Repo) UpdateSessionStatus(ctx context.Context, id string, status Status, consultantID *uint64) error {
	updates := map[string]any{"status": status}
	if consultantID != nil {
		updates["consultant_id"] = *consultantID
	}
	res := r.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) AppendMessage(ctx context.Context, sessionID string, seq int64, role SenderRole, content string) error {
	return r.db.WithContext(ctx).Create(&Message{
		SessionID:  sessionID,
		Seq:        seq,
		SenderRole: role,
		Content:    content,
	}).Error
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// ListMessages returns messages ordered by seq. limit <= 0 means no limit.
func (r *Repo) ListMessages(ctx context.Context, sessionID string, order Order, limit int) ([]Message, error) {
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if order == Descending {
		q = q.Order("seq DESC")
	} else {
		q = q.Order("seq ASC")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) FindSummary(ctx context.Context, sessionID string, audience Audience, version int) (*Summary, error) {
	var s Summary
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND audience = ? AND version = ?", sessionID, audience, version).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSummary updates the row for (session, audience, version) in place or
// inserts it. A concurrent insert that loses the unique index race falls back
// to updating the winner's row.
func (r *Repo) UpsertSummary(ctx context.Context, s *Summary) error {
	fields := map[string]any{
		"prompt_key": s.PromptKey,
		"payload":    s.Payload,
		"ticket_id":  s.TicketID,
		"category":   s.Category,
		"summary":    s.Summary,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Summary
		err := tx.Where("session_id = ? AND audience = ? AND version = ?", s.SessionID, s.Audience, s.Version).
			First(&existing).Error
		switch {
		case err == nil:
			return updateAndReload(tx, &existing, fields, s)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		createErr := tx.Create(s).Error
		if createErr == nil {
			return nil
		}
		if err := tx.Where("session_id = ? AND audience = ? AND version = ?", s.SessionID, s.Audience, s.Version).
			First(&existing).Error; err != nil {
			return createErr
		}
		return updateAndReload(tx, &existing, fields, s)
	})
}

func updateAndReload(tx *gorm.DB, existing *Summary, fields map[string]any, out *Summary) error {
	if err := tx.Model(existing).Updates(fields).Error; err != nil {
		return err
	}
	var fresh Summary
	if err := tx.First(&fresh, existing.ID).Error; err != nil {
		return err
	}
	*out = fresh
	return nil
}
