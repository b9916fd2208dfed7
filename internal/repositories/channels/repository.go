// Package channels caches public-channel metadata, keyed by the hash of
// the channel's creation event. Creation is idempotent; edits overwrite
// only when strictly newer than the last applied edit. Whether an editor
// is authorized is the caller's decision — this store enforces recency,
// not authorship policy.
package channels

import (
	"context"

	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
)

type Repository interface {
	// ApplyCreation establishes the entry keyed by ev.ID. Re-applying the
	// same creation event is a no-op; returns whether a row was created.
	ApplyCreation(ctx context.Context, ev *nostr.Event, meta *models.ChannelMetadata) (bool, error)

	// ApplyUpdate overwrites metadata if ev is strictly newer than the
	// stored update timestamp (the creation timestamp when no edit has
	// been applied yet). Returns false when discarded as stale or when no
	// channel with that hash exists.
	ApplyUpdate(ctx context.Context, ev *nostr.Event, channelHash string, meta *models.ChannelMetadata) (bool, error)

	Get(ctx context.Context, channelHash string) (*models.Channel, error)
	ByCreator(ctx context.Context, pubkey string) ([]models.Channel, error)
}
