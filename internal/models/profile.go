package models

import "time"

// Profile is the cached latest-known metadata for one author public key.
// Overwrite semantics: last writer wins by author-claimed timestamp.
type Profile struct {
	Pubkey   string
	Metadata *ProfileMetadata

	// EventHash identifies the kind-0 event the cached state came from.
	EventHash string

	// UpdatedAt is the author-claimed created_at of that event.
	UpdatedAt time.Time

	// Local filesystem paths filled in by the image cache collaborator.
	PicturePath string
	BannerPath  string
}
