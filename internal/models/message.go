package models

import "time"

// DeliveryStatus is the per-relay delivery state of a message.
type DeliveryStatus int

const (
	DeliveryPending DeliveryStatus = iota
	DeliverySent
	DeliveryConfirmed
	DeliveryFailed
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliverySent:
		return "sent"
	case DeliveryConfirmed:
		return "confirmed"
	case DeliveryFailed:
		return "failed"
	}
	return "unknown"
}

// CanAdvance reports whether the per-relay lattice allows moving from s to
// next: pending → sent → confirmed, pending/sent → failed. Confirmed and
// failed are terminal for that relay.
func (s DeliveryStatus) CanAdvance(next DeliveryStatus) bool {
	switch s {
	case DeliveryPending:
		return next == DeliverySent || next == DeliveryConfirmed || next == DeliveryFailed
	case DeliverySent:
		return next == DeliveryConfirmed || next == DeliveryFailed
	}
	return false
}

// Rank orders statuses by desirability for computing a message's best known
// outcome across relays: failed < pending < sent < confirmed.
func (s DeliveryStatus) Rank() int {
	switch s {
	case DeliveryFailed:
		return 0
	case DeliveryPending:
		return 1
	case DeliverySent:
		return 2
	case DeliveryConfirmed:
		return 3
	}
	return -1
}

// Message is one encrypted direct message. Content stays encrypted at rest;
// decryption happens in the presentation layer with the user's keys.
type Message struct {
	ID         string // uuid
	Content    string // nip-04 ciphertext
	FromPubkey string
	ToPubkey   string

	// EventHash links the message to its network event once known. A
	// locally composed message exists before its event is confirmed.
	EventHash *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delivery is one (message, relay) delivery attempt.
type Delivery struct {
	MessageID string
	RelayURL  string
	Status    DeliveryStatus
	UpdatedAt time.Time
}

// Peer returns the other party of the conversation from owner's viewpoint.
func (m *Message) Peer(owner string) string {
	if m.FromPubkey == owner {
		return m.ToPubkey
	}
	return m.FromPubkey
}
