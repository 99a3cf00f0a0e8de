package domain

import "time"

type Command interface {
	Conversation() ConversationKey
}

// RouteMessageCommand is a sending intent entering the delivery pipeline.
type RouteMessageCommand struct {
	From          string
	To            string
	Body          string
	CorrelationID string
	At            time.Time
}

func (c RouteMessageCommand) Conversation() ConversationKey {
	return NewConversationKey(c.From, c.To)
}

// MarkReadCommand asks the receipts worker to flip every unread message
// sent by OtherPartyID in the conversation and to propagate new counts.
type MarkReadCommand struct {
	ReaderID     string
	OtherPartyID string
}

func (c MarkReadCommand) Conversation() ConversationKey {
	return NewConversationKey(c.ReaderID, c.OtherPartyID)
}

// RefreshUnreadCommand triggers an unread-count push for a single user,
// used right after identity binding so a fresh session starts with the
// current badge value.
type RefreshUnreadCommand struct {
	UserID string
}

func (c RefreshUnreadCommand) Conversation() ConversationKey {
	return ConversationKey{}
}
