// Package ingest is the write-side entry point of the store: the transport
// collaborator hands it already-received events and confirmations, and it
// fans them out to the event store, tag index, and kind-specific
// projections. Writes to the same logical entity are serialized with
// per-key locks so racing relays cannot interleave a projection.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/logging"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/dmitrijs2005/nostrchat/internal/storage"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"
	"golang.org/x/sync/errgroup"
)

// Verifier checks an event's signature. The production implementation is
// the protocol library; tests substitute their own.
type Verifier interface {
	Verify(ev *nostr.Event) (bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ev *nostr.Event) (bool, error)

func (f VerifierFunc) Verify(ev *nostr.Event) (bool, error) { return f(ev) }

// SchnorrVerifier verifies with the event's embedded signature.
func SchnorrVerifier() Verifier {
	return VerifierFunc(func(ev *nostr.Event) (bool, error) {
		return ev.CheckSignature()
	})
}

// PreviewFunc renders the denormalized last-message preview for the contact
// ledger. Decryption lives outside this layer, so the default keeps the
// preview empty and the UI derives it from the thread.
type PreviewFunc func(m *models.Message) string

const batchParallelism = 4

// Service ingests events and confirmations into the store.
type Service struct {
	store   *storage.Store
	log     logging.Logger
	owner   string // the user's public key, explicit rather than ambient
	verify  Verifier
	preview PreviewFunc

	// locks entries are never evicted; the population is bounded by the
	// profiles, channels, and peers this client actually sees.
	locks *xsync.MapOf[string, *sync.Mutex]

	// mu guards closed together with the WaitGroup increment, so Close
	// cannot observe a drained WaitGroup while a write is still being
	// admitted.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(l logging.Logger) Option { return func(s *Service) { s.log = l } }

func WithVerifier(v Verifier) Option { return func(s *Service) { s.verify = v } }

func WithPreviewFunc(f PreviewFunc) Option { return func(s *Service) { s.preview = f } }

// NewService builds the ingest service for the given owner public key.
func NewService(store *storage.Store, owner string, opts ...Option) *Service {
	s := &Service{
		store:   store,
		log:     logging.NopLogger{},
		owner:   owner,
		verify:  SchnorrVerifier(),
		preview: func(*models.Message) string { return "" },
		locks:   xsync.NewMapOf[*sync.Mutex](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver is the sole ingestion entry point. It validates, stores,
// indexes, and projects one event received from relay. Duplicate delivery
// is a normal outcome: only the relay bookkeeping changes.
func (s *Service) Deliver(ctx context.Context, ev *nostr.Event, relay string) (models.IngestOutcome, error) {
	if err := s.begin(); err != nil {
		return models.OutcomeErrored, err
	}
	defer s.wg.Done()

	if ev == nil {
		return models.OutcomeRejected, fmt.Errorf("%w: nil event", common.ErrorRejected)
	}

	ok, err := s.verify.Verify(ev)
	if err != nil || !ok {
		s.log.Warn(ctx, "event failed signature check", "hash", ev.ID, "relay", relay, "err", err)
		return models.OutcomeRejected, fmt.Errorf("%w: invalid signature", common.ErrorRejected)
	}

	outcome, stored, err := s.store.Events.Ingest(ctx, ev, relay, time.Now())
	if err != nil {
		if outcome == models.OutcomeRejected {
			s.log.Warn(ctx, "event rejected", "hash", ev.ID, "relay", relay, "err", err)
		}
		return outcome, err
	}

	if outcome == models.OutcomeInserted {
		if err := s.project(ctx, stored, relay); err != nil {
			return outcome, err
		}
	}

	s.log.Debug(ctx, "event delivered", "hash", ev.ID, "relay", relay, "outcome", outcome.String())
	return outcome, nil
}

// DeliverBatch ingests a slice of events with bounded parallelism.
// Per-entity locks keep related events serialized even when the batch is
// processed concurrently.
func (s *Service) DeliverBatch(ctx context.Context, evs []*nostr.Event, relay string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	for _, ev := range evs {
		g.Go(func() error {
			_, err := s.Deliver(ctx, ev, relay)
			return err
		})
	}
	return g.Wait()
}

// NotifyConfirmed records that relay accepted the event. The event flips to
// confirmed at most once; the matching message delivery, if any, advances
// to confirmed for that relay.
func (s *Service) NotifyConfirmed(ctx context.Context, hash, relay string, at time.Time) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.wg.Done()

	if err := s.store.Events.Confirm(ctx, hash, relay, at); err != nil {
		return err
	}

	m, err := s.store.Messages.ByEventHash(ctx, hash)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	_, err = s.store.Messages.UpdateStatus(ctx, m.ID, relay, models.DeliveryConfirmed, at)
	return err
}

// RecordOutgoing stores a locally composed, already-encrypted message
// before its event exists on any relay. Delivery starts at pending; the
// transport reports progress through Messages.UpdateStatus and links the
// event with Messages.AttachEvent once published.
func (s *Service) RecordOutgoing(ctx context.Context, to, ciphertext string, at time.Time) (string, error) {
	if err := s.begin(); err != nil {
		return "", err
	}
	defer s.wg.Done()

	m := &models.Message{
		Content:    ciphertext,
		FromPubkey: s.owner,
		ToPubkey:   to,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	return s.store.Messages.Record(ctx, m)
}

// Close stops accepting writes and drains the in-flight ones. The store
// itself stays open; closing it is the owner's job after Close returns.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin admits one write, or refuses once Close has flipped the flag. The
// flag check and the WaitGroup increment happen under the same lock that
// Close takes exclusively, so every admitted write is registered before
// Close starts waiting.
func (s *Service) begin() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return common.ErrorClosed
	}
	s.wg.Add(1)
	return nil
}

// withLock serializes fn against other writers of the same logical entity.
func (s *Service) withLock(key string, fn func() error) error {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()
	return fn()
}
