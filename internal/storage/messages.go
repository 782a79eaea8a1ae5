package storage

import (
	"context"
	"errors"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// nextSeqSQL bumps the session counter. The row lock it takes serialises
// concurrent appends to the same session until the transaction commits.
const nextSeqSQL = `UPDATE chat_sessions SET message_seq = message_seq + 1 WHERE id = ? RETURNING message_seq`

// AppendMessage stores msg under the next sequence number of its session and
// publishes it to watchers once committed.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	var stored models.Message
	created := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if msg.ClientToken != nil {
			err := tx.Where("session_id = ? AND client_token = ?", msg.SessionID, *msg.ClientToken).
				First(&stored).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var seq int64
		res := tx.Raw(nextSeqSQL, msg.SessionID).Scan(&seq)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.ErrNotFound
		}

		stored = *msg
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		stored.Seq = seq
		if err := tx.Create(&stored).Error; err != nil {
			return err
		}
		created = true
		return nil
	})

	// Two retries of the same send raced; the other transaction won.
	if errors.Is(err, gorm.ErrDuplicatedKey) && msg.ClientToken != nil {
		existing, ferr := s.messageByToken(ctx, msg.SessionID, *msg.ClientToken)
		if ferr != nil {
			return nil, false, ferr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, mapErr("append message", err)
	}

	if created {
		if perr := s.publishMessage(ctx, stored); perr != nil {
			// The message is durable; subscribers catch up on the next commit.
			s.Log.Warn(ctx, "publish message failed", "session_id", stored.SessionID, "seq", stored.Seq, "error", perr)
		}
	}
	return &stored, created, nil
}

func (s *Service) messageByToken(ctx context.Context, sessionID, token string) (*models.Message, error) {
	var m models.Message
	err := s.DB.WithContext(ctx).
		Where("session_id = ? AND client_token = ?", sessionID, token).
		First(&m).Error
	if err != nil {
		return nil, mapErr("find message by token", err)
	}
	return &m, nil
}

// ListMessages returns messages after afterSeq ordered by sequence.
func (s *Service) ListMessages(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]models.Message, error) {
	var out []models.Message
	q := s.DB.WithContext(ctx).
		Where("session_id = ? AND seq > ?", sessionID, afterSeq).
		Order("seq asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, mapErr("list messages", err)
	}
	return out, nil
}

// LastMessage returns the newest message of the session or common.ErrNotFound.
func (s *Service) LastMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	var m models.Message
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq desc").
		First(&m).Error
	if err != nil {
		return nil, mapErr("last message", err)
	}
	return &m, nil
}
