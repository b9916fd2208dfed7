// Package models defines the row models persisted by the nostrchat storage
// layer, plus decoding of the kind-specific metadata payloads carried in
// event content.
package models

import (
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Event is a received protocol event as stored locally. Rows are immutable
// after insert except for the confirmation fields.
type Event struct {
	// ID is the local surrogate rowid; Hash is the protocol identity.
	ID   int64
	Hash string

	Pubkey    string
	CreatedAt nostr.Timestamp
	Kind      int
	Content   string
	Tags      nostr.Tags
	Sig       string

	// ReceivedAt is set from the local clock on insert and is authoritative
	// for local ordering.
	ReceivedAt time.Time

	Confirmed   bool
	ConfirmedAt *time.Time
}

// Protocol re-materializes the wire-level view of the stored event.
func (e *Event) Protocol() *nostr.Event {
	return &nostr.Event{
		ID:        e.Hash,
		PubKey:    e.Pubkey,
		CreatedAt: e.CreatedAt,
		Kind:      e.Kind,
		Tags:      e.Tags,
		Content:   e.Content,
		Sig:       e.Sig,
	}
}

// RelaySeen records that a relay delivered or acknowledged an event.
type RelaySeen struct {
	EventID     int64
	RelayURL    string
	FirstSeenAt time.Time
}

// IngestOutcome is the result of offering an event to the store.
type IngestOutcome int

const (
	OutcomeInserted IngestOutcome = iota
	OutcomeDuplicate
	OutcomeRejected

	// OutcomeErrored reports an operational failure (lost transaction,
	// exhausted retry budget); the event itself was never judged.
	OutcomeErrored
)

func (o IngestOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeErrored:
		return "errored"
	}
	return "unknown"
}

// Tag is one normalized entry of an event's tag list. Position preserves
// insertion order; Kind and CreatedAt are denormalized from the parent
// event for index locality.
type Tag struct {
	EventID   int64
	Position  int
	Name      string
	Value     string
	Kind      int
	CreatedAt nostr.Timestamp
}
