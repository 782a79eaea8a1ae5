package models

import "time"

// Message is an immutable chat message owned by a session.
type Message struct {
	// ID is the unique identifier of the message (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// SessionID is the owning session.
	SessionID string `gorm:"type:text;not null;uniqueIndex:idx_session_seq,priority:1" json:"session_id"`
	// Seq is the per-session monotonic sequence number. Subscribers see messages in Seq order.
	Seq int64 `gorm:"not null;uniqueIndex:idx_session_seq,priority:2" json:"seq"`
	// SenderID is one of the session's two participants.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// Text is the trimmed, non-empty body.
	Text string `gorm:"type:text;not null" json:"text"`
	// ClientToken is an optional idempotency token chosen by the sender.
	ClientToken *string `gorm:"type:text" json:"client_token,omitempty"`
	// CreatedAt is assigned by the store at write time. It is not an ordering key.
	CreatedAt time.Time `json:"created_at"`
}
