package models

import "time"

// Channel is the cached state of one public channel, keyed by the hash of
// its creation event. Later kind-41 edits overwrite Metadata in place.
type Channel struct {
	CreationEventHash string
	CreatorPubkey     string
	CreatedAt         time.Time
	Metadata          *ChannelMetadata

	// UpdatedEventHash/UpdatedAt describe the latest applied edit; nil
	// until the first edit arrives.
	UpdatedEventHash *string
	UpdatedAt        *time.Time
}

// LastEventHash returns the hash of the event that produced the current
// metadata: the latest edit if any, otherwise the creation event.
func (c *Channel) LastEventHash() string {
	if c.UpdatedEventHash != nil {
		return *c.UpdatedEventHash
	}
	return c.CreationEventHash
}
