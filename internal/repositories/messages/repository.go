// Package messages is the ledger of encrypted direct messages and their
// per-relay delivery attempts. A message row can exist before its network
// event is confirmed (locally composed) and is linked to the event later.
package messages

import (
	"context"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/models"
)

type Repository interface {
	// Record inserts a new message row. A missing ID is assigned a fresh
	// uuid; the assigned ID is returned.
	Record(ctx context.Context, m *models.Message) (string, error)

	// ExistsByEventHash reports whether an ingested event already produced
	// a message row (dedup across relays).
	ExistsByEventHash(ctx context.Context, eventHash string) (bool, error)

	// ByEventHash resolves the message linked to a network event.
	ByEventHash(ctx context.Context, eventHash string) (*models.Message, error)

	// AttachEvent links a pending local message to its network event.
	AttachEvent(ctx context.Context, msgID, eventHash string) error

	// UpdateStatus advances the (message, relay) delivery state along the
	// lattice pending → sent → confirmed, pending/sent → failed. A first
	// report from a relay creates the attempt row. Returns false when the
	// lattice forbids the transition (terminal state reached earlier).
	UpdateStatus(ctx context.Context, msgID, relay string, status models.DeliveryStatus, at time.Time) (bool, error)

	// Deliveries lists all per-relay attempts for a message.
	Deliveries(ctx context.Context, msgID string) ([]models.Delivery, error)

	// BestStatus folds the attempts into the best known outcome:
	// confirmed > sent > pending > failed. No attempts means pending.
	BestStatus(ctx context.Context, msgID string) (models.DeliveryStatus, error)

	// ThreadFor returns the conversation between two pubkeys inside the
	// time range (zero time = unbounded), ordered by created_at ascending
	// with the message id as deterministic tiebreak.
	ThreadFor(ctx context.Context, pubkeyA, pubkeyB string, since, until time.Time) ([]models.Message, error)

	Get(ctx context.Context, msgID string) (*models.Message, error)
}
