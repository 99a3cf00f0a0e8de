package client

import (
	"sync"
	"time"

	"rentchat/ws"
)

// Deduper drops envelopes the client has already rendered. The primary
// check is the correlation id generated at send time and threaded
// through persistence and push; the body/time heuristic only covers
// envelopes that lost their correlation id along the way.
type Deduper struct {
	mu     sync.Mutex
	window time.Duration
	sent   map[string]time.Time // correlation id -> send time
	recent []sentBody
}

type sentBody struct {
	body string
	at   time.Time
}

func NewDeduper(window time.Duration) *Deduper {
	return &Deduper{
		window: window,
		sent:   make(map[string]time.Time),
	}
}

// MarkSent records an optimistic send so its echo can be recognized.
func (d *Deduper) MarkSent(correlationID, body string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prune(at)
	d.sent[correlationID] = at
	d.recent = append(d.recent, sentBody{body: body, at: at})
}

// IsDuplicate reports whether the envelope repeats something this
// client already shows. Only self-originated envelopes can be
// duplicates: the optimistic UI never renders the counterpart's
// messages before the push arrives.
func (d *Deduper) IsDuplicate(env ws.Envelope, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prune(now)

	if !env.FromSelf {
		return false
	}
	if env.CorrelationID != "" {
		_, ok := d.sent[env.CorrelationID]
		return ok
	}
	for _, entry := range d.recent {
		if entry.body == env.Body && absDiff(env.CreatedAt, entry.at) <= d.window {
			return true
		}
	}
	return false
}

func (d *Deduper) prune(now time.Time) {
	oldest := now.Add(-d.window)
	for id, at := range d.sent {
		if at.Before(oldest) {
			delete(d.sent, id)
		}
	}
	kept := d.recent[:0]
	for _, entry := range d.recent {
		if !entry.at.Before(oldest) {
			kept = append(kept, entry)
		}
	}
	d.recent = kept
}

func absDiff(a, b time.Time) time.Duration {
	diff := a.Sub(b)
	if diff < 0 {
		return -diff
	}
	return diff
}
