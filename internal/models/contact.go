package models

import "time"

// FollowStatus enumerates the user's relationship with a contact.
type FollowStatus int

const (
	FollowNone FollowStatus = iota
	FollowFollowing
	FollowBlocked
)

func (s FollowStatus) String() string {
	switch s {
	case FollowFollowing:
		return "following"
	case FollowBlocked:
		return "blocked"
	}
	return "none"
}

// Contact is one entry of the user's contact ledger, keyed by public key.
// Follow metadata comes from the user's published contact list; the unseen
// counter and last-message fields are denormalized from message ingestion.
type Contact struct {
	Pubkey           string
	Status           FollowStatus
	Petname          string
	RecommendedRelay string

	UnseenCount   int
	LastMessage   string
	LastMessageAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
