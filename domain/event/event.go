package event

import (
	"time"

	"github.com/google/uuid"

	"rentchat/domain"
)

type DomainEvent interface {
	Conversation() domain.ConversationKey
}

// MessageRouted is emitted by the router worker once a sending intent
// has been validated and stamped with a server id and timestamp.
type MessageRouted struct {
	ID            uuid.UUID
	CorrelationID string
	From          string
	To            string
	Body          string
	At            time.Time
}

func (m MessageRouted) Conversation() domain.ConversationKey {
	return domain.NewConversationKey(m.From, m.To)
}

// MessageDelivered carries the moderated body, ready for push and
// persistence. FromSelf is set on the copy echoed back to the sender.
type MessageDelivered struct {
	ID            uuid.UUID
	CorrelationID string
	From          string
	To            string
	Body          string
	At            time.Time
	FromSelf      bool
}

func (m MessageDelivered) Conversation() domain.ConversationKey {
	return domain.NewConversationKey(m.From, m.To)
}

// UnreadCountChanged notifies a single user that their unread badge
// changed. Count is the number of counterparts with unread messages.
type UnreadCountChanged struct {
	UserID string
	Count  int
	Key    domain.ConversationKey
}

func (u UnreadCountChanged) Conversation() domain.ConversationKey {
	return u.Key
}

// SessionEvicted tells a connection that a newer session claimed the
// same identity ("signed in elsewhere").
type SessionEvicted struct {
	UserID string
	Reason string
}

func (s SessionEvicted) Conversation() domain.ConversationKey {
	return domain.ConversationKey{}
}
