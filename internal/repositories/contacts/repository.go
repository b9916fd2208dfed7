// Package contacts keeps the user's contact ledger: follow state from the
// published contact list plus the denormalized chat state the UI reads
// (unseen counter, last-message preview). All operations take the contact's
// public key; the owner identity is resolved by the caller.
package contacts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/models"
)

type Repository interface {
	// UpsertFromFollowList merges follow metadata by pubkey, marking the
	// contact as followed. Unseen counter and last-message fields are left
	// untouched.
	UpsertFromFollowList(ctx context.Context, pubkey, petname, relayHint string, at time.Time) error

	// RecordIncomingMessage bumps the unseen counter unconditionally and
	// moves the preview forward only if at is newer than the stored
	// last-message time. Creates the contact (status none) if a stranger
	// writes first.
	RecordIncomingMessage(ctx context.Context, pubkey, preview string, at time.Time) error

	// MarkSeen resets the unseen counter to zero.
	MarkSeen(ctx context.Context, pubkey string) error

	// SetStatus changes the follow status (follow/unfollow/block).
	SetStatus(ctx context.Context, pubkey string, status models.FollowStatus) error

	// Remove deletes the contact; associated messages stay.
	Remove(ctx context.Context, pubkey string) error

	Get(ctx context.Context, pubkey string) (*models.Contact, error)
	List(ctx context.Context) ([]models.Contact, error)
}
