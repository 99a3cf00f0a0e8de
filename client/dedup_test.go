package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentchat/ws"
)

func TestDeduper_Drops_Echo_By_Correlation_ID(t *testing.T) {
	req := require.New(t)
	dedup := NewDeduper(2 * time.Second)
	now := time.Now().UTC()

	// Given an optimistic send
	dedup.MarkSent("corr-1", "hello", now)

	// Then its echo is recognized regardless of timing jitter
	echo := ws.Envelope{CorrelationID: "corr-1", Body: "hello", FromSelf: true, CreatedAt: now}
	req.True(dedup.IsDuplicate(echo, now.Add(100*time.Millisecond)))
}

func TestDeduper_Counterpart_Messages_Are_Never_Duplicates(t *testing.T) {
	req := require.New(t)
	dedup := NewDeduper(2 * time.Second)
	now := time.Now().UTC()

	dedup.MarkSent("corr-1", "hello", now)

	// The counterpart happening to send the same body must render
	incoming := ws.Envelope{CorrelationID: "corr-1", Body: "hello", FromSelf: false, CreatedAt: now}
	req.False(dedup.IsDuplicate(incoming, now))
}

func TestDeduper_Body_Heuristic_Covers_Missing_Correlation_ID(t *testing.T) {
	req := require.New(t)
	dedup := NewDeduper(2 * time.Second)
	now := time.Now().UTC()

	dedup.MarkSent("corr-1", "see you tomorrow", now)

	// An echo that lost its correlation id still matches inside the
	// window
	echo := ws.Envelope{Body: "see you tomorrow", FromSelf: true, CreatedAt: now.Add(time.Second)}
	req.True(dedup.IsDuplicate(echo, now.Add(time.Second)))

	// But not once the window has passed
	late := ws.Envelope{Body: "see you tomorrow", FromSelf: true, CreatedAt: now.Add(5 * time.Second)}
	req.False(dedup.IsDuplicate(late, now.Add(5*time.Second)))
}

func TestDeduper_Unknown_Correlation_ID_Is_Not_A_Duplicate(t *testing.T) {
	req := require.New(t)
	dedup := NewDeduper(2 * time.Second)
	now := time.Now().UTC()

	dedup.MarkSent("corr-1", "hello", now)

	other := ws.Envelope{CorrelationID: "corr-2", Body: "hello", FromSelf: true, CreatedAt: now}
	req.False(dedup.IsDuplicate(other, now))
}

func TestDeduper_Prunes_Old_Entries(t *testing.T) {
	req := require.New(t)
	dedup := NewDeduper(2 * time.Second)
	now := time.Now().UTC()

	dedup.MarkSent("corr-1", "hello", now)

	// After the window the tracked send is forgotten entirely
	echo := ws.Envelope{CorrelationID: "corr-1", Body: "hello", FromSelf: true, CreatedAt: now}
	req.False(dedup.IsDuplicate(echo, now.Add(10*time.Second)))
}
