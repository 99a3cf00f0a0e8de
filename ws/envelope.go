package ws

import (
	"time"

	"github.com/go-playground/validator/v10"

	"rentchat/domain/event"
)

// Frame types accepted from clients.
const (
	TypeDeclareIdentity = "declareIdentity"
	TypeRemoveIdentity  = "removeIdentity"
	TypeSendMessage     = "sendMessage"
	TypeMarkRead        = "markRead"
	TypeHeartbeat       = "heartbeat"
)

// Frame types pushed to clients.
const (
	TypeReceiveMessage = "receiveMessage"
	TypeUnreadCount    = "unreadCount"
	TypeEvicted        = "evicted"
	TypeHeartbeatAck   = "heartbeatAck"
	TypeError          = "error"
)

var validate = validator.New()

// ClientFrame is the single inbound shape; Type discriminates and the
// validate tags enforce the per-type required fields at the boundary.
type ClientFrame struct {
	Type          string `json:"type" validate:"required,oneof=declareIdentity removeIdentity sendMessage markRead heartbeat"`
	UserID        string `json:"userId,omitempty" validate:"required_if=Type declareIdentity,required_if=Type removeIdentity"`
	Token         string `json:"token,omitempty" validate:"required_if=Type declareIdentity"`
	To            string `json:"to,omitempty" validate:"required_if=Type sendMessage"`
	Body          string `json:"body,omitempty" validate:"required_if=Type sendMessage"`
	CorrelationID string `json:"correlationId,omitempty"`
	OtherPartyID  string `json:"otherPartyId,omitempty" validate:"required_if=Type markRead"`
}

func (f ClientFrame) Validate() error {
	return validate.Struct(f)
}

// Envelope is the in-flight representation of a message, distinct from
// its persisted record. One canonical shape at every boundary crossing.
type Envelope struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlationId,omitempty"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"createdAt"`
	IsRead        bool      `json:"isRead"`
	FromSelf      bool      `json:"fromSelf,omitempty"`
}

type ServerFrame struct {
	Type     string    `json:"type"`
	Envelope *Envelope `json:"envelope,omitempty"`
	Count    *int      `json:"count,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Code     string    `json:"code,omitempty"`
}

func errorFrame(code string) ServerFrame {
	return ServerFrame{Type: TypeError, Code: code}
}

// toServerFrame maps pipeline events onto wire frames. Returns false
// for events this connection does not surface.
func toServerFrame(e event.DomainEvent) (ServerFrame, bool) {
	switch evt := e.(type) {
	case event.MessageDelivered:
		return ServerFrame{
			Type: TypeReceiveMessage,
			Envelope: &Envelope{
				ID:            evt.ID.String(),
				CorrelationID: evt.CorrelationID,
				From:          evt.From,
				To:            evt.To,
				Body:          evt.Body,
				CreatedAt:     evt.At,
				IsRead:        evt.FromSelf, // mirror of the original: self-echo renders as read
				FromSelf:      evt.FromSelf,
			},
		}, true
	case event.UnreadCountChanged:
		count := evt.Count
		return ServerFrame{Type: TypeUnreadCount, Count: &count}, true
	case event.SessionEvicted:
		return ServerFrame{Type: TypeEvicted, Reason: evt.Reason}, true
	default:
		return ServerFrame{}, false
	}
}
