// Package profiles caches the latest known kind-0 metadata per author.
// Entries are overwritten in place, last-writer-wins by the author-claimed
// timestamp — arrival order does not matter.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
)

type Repository interface {
	// Apply overwrites the cached entry if ev is strictly newer than the
	// stored state. Returns false for stale or equal-timestamp events,
	// which are silently discarded.
	Apply(ctx context.Context, ev *nostr.Event, meta *models.ProfileMetadata) (bool, error)

	Get(ctx context.Context, pubkey string) (*models.Profile, error)

	// SetImagePaths records where the image cache collaborator stored the
	// avatar and banner referenced by the cached metadata.
	SetImagePaths(ctx context.Context, pubkey, picturePath, bannerPath string) error
}
