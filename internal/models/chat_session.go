package models

import (
	"strconv"
	"time"
)

// ChatSession is the durable record of a one-to-one messaging relationship.
// At most one session exists per unordered pair of identities; PairKey is the
// store-enforced uniqueness key that guarantees it.
type ChatSession struct {
	// ID is the unique identifier of the session (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// PairKey is derived from both participants by PairKey().
	PairKey string `gorm:"type:text;not null;uniqueIndex" json:"-"`
	// User1ID and User2ID are the participants in lexicographic order.
	User1ID string `gorm:"type:text;not null;index" json:"user1_id"`
	User2ID string `gorm:"type:text;not null;index" json:"user2_id"`
	// MessageSeq is the last sequence number assigned to a message of this session.
	MessageSeq int64 `gorm:"not null;default:0" json:"message_seq"`
	// CreatedAt is assigned by the store at write time.
	CreatedAt time.Time `json:"created_at"`
}

// SortPair returns the two identities in lexicographic order.
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PairKey derives the uniqueness key of the unordered pair {a, b}: the sorted
// identities concatenated, prefixed with the length of the first one so that
// distinct pairs can never produce the same key.
func PairKey(a, b string) string {
	lo, hi := SortPair(a, b)
	return strconv.Itoa(len(lo)) + ":" + lo + "_" + hi
}

// Participants returns both identities in stored order.
func (s *ChatSession) Participants() [2]string {
	return [2]string{s.User1ID, s.User2ID}
}

// HasParticipant reports whether id is one of the two participants.
func (s *ChatSession) HasParticipant(id string) bool {
	return id != "" && (id == s.User1ID || id == s.User2ID)
}

// OtherParticipant returns the peer of id, or "" if id is not a participant.
func (s *ChatSession) OtherParticipant(id string) string {
	switch id {
	case s.User1ID:
		return s.User2ID
	case s.User2ID:
		return s.User1ID
	default:
		return ""
	}
}

// ChatSummary is a session as shown in a user's chat list.
type ChatSummary struct {
	SessionID   string    `json:"session_id"`
	PeerID      string    `json:"peer_id"`
	PeerName    string    `json:"peer_name"`
	PeerAvatar  *string   `json:"peer_avatar,omitempty"`
	LastMessage string    `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
}
