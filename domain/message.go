// Package domain contains core concepts of the chat system.
// This file defines Message records and the conversation identity rules.
// Messages are immutable except for the read flag, which only flips to true.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationKey identifies a two-party conversation by the unordered
// pair of user ids. Low/High hold the ids in lexicographic order so
// that {A,B} and {B,A} are the same key.
type ConversationKey struct {
	Low  string
	High string
}

func NewConversationKey(a, b string) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

// String renders the canonical storage form "low|high".
func (k ConversationKey) String() string {
	return k.Low + "|" + k.High
}

func (k ConversationKey) Contains(userID string) bool {
	return k.Low == userID || k.High == userID
}

// Other returns the counterpart of userID in the conversation.
// Returns "" if userID is not a participant.
func (k ConversationKey) Other(userID string) string {
	switch userID {
	case k.Low:
		return k.High
	case k.High:
		return k.Low
	default:
		return ""
	}
}

func (k ConversationKey) IsZero() bool {
	return k.Low == "" && k.High == ""
}

// Message represents one chat message between two marketplace users.
type Message struct {
	ID            uuid.UUID
	CorrelationID string // client-generated, threaded through push and persistence
	Conversation  ConversationKey
	SenderID      string
	Body          string
	IsRead        bool
	CreatedAt     time.Time
}

// TrimBody normalizes a raw message body. An all-whitespace body trims
// to "" and must be rejected by the caller.
func TrimBody(body string) string {
	return strings.TrimSpace(body)
}
