//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"rentchat/domain"
)

type IMessageRepository interface {
	// CreateMessage persists a message. If an identical message (same
	// conversation, sender and body) was stored within the duplicate
	// window, the original record is returned with duplicate=true and
	// nothing is written.
	CreateMessage(msg domain.Message) (stored domain.Message, duplicate bool, err error)
	// GetMessages returns the full conversation ascending by CreatedAt.
	GetMessages(key domain.ConversationKey) ([]domain.Message, error)
	// GetConversations returns, per counterpart of userID, the most
	// recent message plus the unread count, newest conversation first.
	GetConversations(userID string) ([]ConversationSummary, error)
	// MarkConversationRead flips every unread message sent by
	// otherPartyID in the conversation and reports how many it flipped.
	MarkConversationRead(readerID, otherPartyID string) (int, error)
	// UnreadCounts maps each counterpart of userID to the number of
	// their messages userID has not read yet.
	UnreadCounts(userID string) (map[string]int, error)
}

type ConversationSummary struct {
	CounterpartID string
	LastMessage   domain.Message
	UnreadCount   int
}

// UnreadBadge is the value pushed to clients: the number of
// counterparts with at least one unread message.
func UnreadBadge(counts map[string]int) int {
	badge := 0
	for _, c := range counts {
		if c > 0 {
			badge++
		}
	}
	return badge
}

type MessageRepository struct {
	db        *badger.DB
	log       *slog.Logger
	dupWindow time.Duration
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, dupWindow time.Duration) MessageRepository {
	return MessageRepository{db: db, log: log, dupWindow: dupWindow}
}

// Key layout:
//
//	msg:{conversation}:{timestamp_padded}:{uuid} -> record
//	conv:{user}:{counterpart}                    -> last record of that pair
//
// The 19-digit zero-padded UnixNano keeps prefix scans chronologically
// sorted; the trailing UUID disambiguates two messages stored in the
// same nanosecond.
func messageKey(key domain.ConversationKey, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", key, at.UnixNano(), id))
}

func messagePrefix(key domain.ConversationKey) []byte {
	return []byte(fmt.Sprintf("msg:%s:", key))
}

func conversationKey(userID, counterpartID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:%s", userID, counterpartID))
}

func conversationPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:", userID))
}

// record is the cbor shape stored in badger. Integer keys keep values
// compact; the struct never crosses a process boundary.
type record struct {
	ID            string `cbor:"1,keyasint"`
	CorrelationID string `cbor:"2,keyasint,omitempty"`
	Low           string `cbor:"3,keyasint"`
	High          string `cbor:"4,keyasint"`
	SenderID      string `cbor:"5,keyasint"`
	Body          string `cbor:"6,keyasint"`
	IsRead        bool   `cbor:"7,keyasint"`
	At            int64  `cbor:"8,keyasint"`
}

func (m MessageRepository) CreateMessage(msg domain.Message) (domain.Message, bool, error) {
	var stored domain.Message
	var duplicate bool
	err := m.db.Update(func(txn *badger.Txn) error {
		existing, found, err := m.findRecentDuplicate(txn, msg)
		if err != nil {
			return err
		}
		if found {
			stored, duplicate = existing, true
			return nil
		}

		value, err := cbor.Marshal(fromMessage(msg))
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(msg.Conversation, msg.CreatedAt, msg.ID), value); err != nil {
			return err
		}
		other := msg.Conversation.Other(msg.SenderID)
		if err := txn.Set(conversationKey(msg.SenderID, other), value); err != nil {
			return err
		}
		if err := txn.Set(conversationKey(other, msg.SenderID), value); err != nil {
			return err
		}
		stored = msg
		return nil
	})
	if err != nil {
		return domain.Message{}, false, err
	}
	if duplicate {
		m.log.Debug("Duplicate message suppressed",
			"conversation", msg.Conversation.String(),
			"sender", msg.SenderID)
	}
	return stored, duplicate, nil
}

// findRecentDuplicate walks the conversation backwards from the newest
// message and stops once it leaves the duplicate window. Both the HTTP
// send path and the socket persistence path go through this check, so
// a near-simultaneous double submission keeps a single record.
func (m MessageRepository) findRecentDuplicate(txn *badger.Txn, msg domain.Message) (domain.Message, bool, error) {
	prefix := messagePrefix(msg.Conversation)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	it := txn.NewIterator(options)
	defer it.Close()

	// Seek past the newest possible key, then walk backwards.
	seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
	oldest := msg.CreatedAt.Add(-m.dupWindow)

	for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
		var rec record
		err := it.Item().Value(func(value []byte) error {
			return cbor.Unmarshal(value, &rec)
		})
		if err != nil {
			return domain.Message{}, false, err
		}
		at := time.Unix(0, rec.At).UTC()
		if at.Before(oldest) {
			return domain.Message{}, false, nil
		}
		if rec.SenderID == msg.SenderID && rec.Body == msg.Body {
			existing, err := toMessage(rec)
			return existing, err == nil, err
		}
	}
	return domain.Message{}, false, nil
}

func (m MessageRepository) GetMessages(key domain.ConversationKey) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(key)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec record
			err := it.Item().Value(func(value []byte) error {
				return cbor.Unmarshal(value, &rec)
			})
			if err != nil {
				return err
			}
			msg, err := toMessage(rec)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

func (m MessageRepository) GetConversations(userID string) ([]ConversationSummary, error) {
	var summaries []ConversationSummary
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			counterpart := string(item.Key()[len(prefix):])
			var rec record
			err := item.Value(func(value []byte) error {
				return cbor.Unmarshal(value, &rec)
			})
			if err != nil {
				return err
			}
			last, err := toMessage(rec)
			if err != nil {
				return err
			}
			unread, err := m.countUnread(txn, domain.NewConversationKey(userID, counterpart), counterpart)
			if err != nil {
				return err
			}
			summaries = append(summaries, ConversationSummary{
				CounterpartID: counterpart,
				LastMessage:   last,
				UnreadCount:   unread,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries, nil
}

func (m MessageRepository) MarkConversationRead(readerID, otherPartyID string) (int, error) {
	key := domain.NewConversationKey(readerID, otherPartyID)
	flipped := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := messagePrefix(key)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		type pending struct {
			key   []byte
			value []byte
			id    string
		}
		var updates []pending

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var rec record
			err := item.Value(func(value []byte) error {
				return cbor.Unmarshal(value, &rec)
			})
			if err != nil {
				return err
			}
			if rec.SenderID != otherPartyID || rec.IsRead {
				continue
			}
			rec.IsRead = true
			value, err := cbor.Marshal(rec)
			if err != nil {
				return err
			}
			updates = append(updates, pending{
				key:   item.KeyCopy(nil),
				value: value,
				id:    rec.ID,
			})
		}
		// Writes happen after iteration; badger iterators must not
		// observe their own transaction's writes mid-scan.
		for _, u := range updates {
			if err := txn.Set(u.key, u.value); err != nil {
				return err
			}
			if err := m.refreshConversationIndex(txn, readerID, otherPartyID, u.id, u.value); err != nil {
				return err
			}
		}
		flipped = len(updates)
		return nil
	})
	return flipped, err
}

// refreshConversationIndex rewrites the last-message index entries when
// the flipped message is the one they point at, so conversation lists
// reflect the read flag.
func (m MessageRepository) refreshConversationIndex(txn *badger.Txn, readerID, otherPartyID, id string, value []byte) error {
	for _, k := range [][]byte{
		conversationKey(readerID, otherPartyID),
		conversationKey(otherPartyID, readerID),
	} {
		item, err := txn.Get(k)
		if err == badger.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return err
		}
		var rec record
		if err := item.Value(func(v []byte) error { return cbor.Unmarshal(v, &rec) }); err != nil {
			return err
		}
		if rec.ID != id {
			continue
		}
		if err := txn.Set(bytes.Clone(k), value); err != nil {
			return err
		}
	}
	return nil
}

func (m MessageRepository) UnreadCounts(userID string) (map[string]int, error) {
	counts := make(map[string]int)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var counterparts []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			counterparts = append(counterparts, string(it.Item().Key()[len(prefix):]))
		}
		for _, counterpart := range counterparts {
			unread, err := m.countUnread(txn, domain.NewConversationKey(userID, counterpart), counterpart)
			if err != nil {
				return err
			}
			counts[counterpart] = unread
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (m MessageRepository) countUnread(txn *badger.Txn, key domain.ConversationKey, senderID string) (int, error) {
	prefix := messagePrefix(key)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var rec record
		err := it.Item().Value(func(value []byte) error {
			return cbor.Unmarshal(value, &rec)
		})
		if err != nil {
			return 0, err
		}
		if rec.SenderID == senderID && !rec.IsRead {
			count++
		}
	}
	return count, nil
}

// DecodeValue decodes a raw stored value back into a message. Offline
// tooling scanning the database uses it.
func DecodeValue(value []byte) (domain.Message, error) {
	var rec record
	if err := cbor.Unmarshal(value, &rec); err != nil {
		return domain.Message{}, err
	}
	return toMessage(rec)
}

func fromMessage(msg domain.Message) record {
	return record{
		ID:            msg.ID.String(),
		CorrelationID: msg.CorrelationID,
		Low:           msg.Conversation.Low,
		High:          msg.Conversation.High,
		SenderID:      msg.SenderID,
		Body:          msg.Body,
		IsRead:        msg.IsRead,
		At:            msg.CreatedAt.UnixNano(),
	}
}

func toMessage(rec record) (domain.Message, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:            parsedID,
		CorrelationID: rec.CorrelationID,
		Conversation:  domain.ConversationKey{Low: rec.Low, High: rec.High},
		SenderID:      rec.SenderID,
		Body:          rec.Body,
		IsRead:        rec.IsRead,
		CreatedAt:     time.Unix(0, rec.At).UTC(),
	}, nil
}
