// Package tags maintains the normalized tag index: one row per entry of an
// event's tag list, preserving insertion order, with kind and created_at
// denormalized for composite-index locality. Rows live and die with their
// event through the schema cascade.
package tags

import (
	"context"

	"github.com/dmitrijs2005/nostrchat/internal/models"
)

// Repository provides filtered lookups over the index.
type Repository interface {
	// Lookup returns hashes of events carrying a (name, value) tag, newest
	// first by the event's author-claimed time.
	Lookup(ctx context.Context, name, value string) ([]string, error)

	// LookupKind narrows Lookup to a single event kind.
	LookupKind(ctx context.Context, name, value string, kind int) ([]string, error)

	// ByEvent returns the tag rows of one event in insertion order.
	ByEvent(ctx context.Context, hash string) ([]models.Tag, error)
}
