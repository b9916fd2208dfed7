// Package events implements the append-only event store: the ground truth
// of every protocol event received from relays, deduplicated by content
// hash.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
)

// Repository is the event store contract.
type Repository interface {
	// Ingest offers an event to the store. Outcomes:
	//   - OutcomeInserted: the event and its tag rows were written in one
	//     transaction and the stored row is returned.
	//   - OutcomeDuplicate: an event with the same hash already exists;
	//     only the relay_seen bookkeeping was updated.
	//   - OutcomeRejected: required fields are missing; nothing stored and
	//     the returned error wraps common.ErrorRejected.
	//   - OutcomeErrored: the transaction failed for operational reasons
	//     (contention budget exhausted, closed database).
	Ingest(ctx context.Context, ev *nostr.Event, relay string, receivedAt time.Time) (models.IngestOutcome, *models.Event, error)

	// Confirm transitions the event monotonically to confirmed. Re-confirm
	// is a no-op; the relay is recorded as having acknowledged the event
	// either way.
	Confirm(ctx context.Context, hash, relay string, at time.Time) error

	GetByHash(ctx context.Context, hash string) (*models.Event, error)

	// SeenOn lists the relays that delivered or acknowledged the event.
	SeenOn(ctx context.Context, hash string) ([]models.RelaySeen, error)

	// Delete removes the event and, through the schema cascade, all of its
	// tag and relay_seen rows in the same atomic step.
	Delete(ctx context.Context, hash string) error
}
