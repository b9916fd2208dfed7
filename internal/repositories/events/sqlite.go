package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/dbx"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/tags"
	"github.com/nbd-wtf/go-nostr"
)

// SQLiteRepository implements Repository on a *sql.DB. It owns the
// event+tag insertion transaction, so unlike the narrower repositories it
// cannot be bound to an outer DBTX.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const hashLen = 64 // hex sha256

func validate(ev *nostr.Event) error {
	switch {
	case ev == nil:
		return errors.New("nil event")
	case len(ev.ID) != hashLen:
		return fmt.Errorf("bad event hash %q", ev.ID)
	case len(ev.PubKey) != hashLen:
		return fmt.Errorf("bad pubkey %q", ev.PubKey)
	case ev.Sig == "":
		return errors.New("missing signature")
	case ev.CreatedAt <= 0:
		return errors.New("missing created_at")
	case ev.Kind < 0:
		return fmt.Errorf("bad kind %d", ev.Kind)
	}
	return nil
}

// Ingest inserts the event and fans its tag list out to the tag index in a
// single transaction. A second arrival with the same hash only records the
// additional relay.
func (r *SQLiteRepository) Ingest(ctx context.Context, ev *nostr.Event, relay string, receivedAt time.Time) (models.IngestOutcome, *models.Event, error) {
	if err := validate(ev); err != nil {
		return models.OutcomeRejected, nil, fmt.Errorf("%w: %w", common.ErrorRejected, err)
	}

	rawTags, err := json.Marshal(ev.Tags)
	if err != nil {
		return models.OutcomeRejected, nil, fmt.Errorf("%w: encoding tags: %w", common.ErrorRejected, err)
	}

	var (
		outcome = models.OutcomeDuplicate
		stored  *models.Event
	)
	err = dbx.RetryBusy(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO event (event_hash, pubkey, created_at, received_at, kind, content, tags, sig)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (event_hash) DO NOTHING`,
				ev.ID, ev.PubKey, int64(ev.CreatedAt), receivedAt.UnixMilli(),
				ev.Kind, ev.Content, string(rawTags), ev.Sig)
			if err != nil {
				return fmt.Errorf("failed to insert event: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}

			var rowID int64
			if ra == 1 {
				outcome = models.OutcomeInserted
				if rowID, err = res.LastInsertId(); err != nil {
					return fmt.Errorf("failed to get event rowid: %w", err)
				}
				if err := tags.Index(ctx, tx, rowID, ev); err != nil {
					return err
				}
			} else {
				outcome = models.OutcomeDuplicate
				row := tx.QueryRowContext(ctx, `SELECT event_id FROM event WHERE event_hash = ?`, ev.ID)
				if err := row.Scan(&rowID); err != nil {
					return fmt.Errorf("%w: duplicate event vanished: %w", common.ErrorIntegrity, err)
				}
			}

			if relay != "" {
				if err := markSeen(ctx, tx, rowID, relay, receivedAt); err != nil {
					return err
				}
			}

			if outcome == models.OutcomeInserted {
				stored = &models.Event{
					ID:         rowID,
					Hash:       ev.ID,
					Pubkey:     ev.PubKey,
					CreatedAt:  ev.CreatedAt,
					Kind:       ev.Kind,
					Content:    ev.Content,
					Tags:       ev.Tags,
					Sig:        ev.Sig,
					ReceivedAt: receivedAt,
				}
			}
			return nil
		})
	})
	if err != nil {
		// Validation never reaches this point; anything failing here is
		// operational, not a verdict on the event.
		return models.OutcomeErrored, nil, err
	}
	return outcome, stored, nil
}

func markSeen(ctx context.Context, tx dbx.DBTX, eventID int64, relay string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO relay_seen (event_id, relay_url, first_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id, relay_url) DO NOTHING`,
		eventID, relay, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record relay: %w", err)
	}
	return nil
}

// Confirm flips the confirmation flag exactly once. The guarded UPDATE is
// the whole compare-and-write; zero rows affected means either already
// confirmed (fine) or unknown hash (ErrorNotFound).
func (r *SQLiteRepository) Confirm(ctx context.Context, hash, relay string, at time.Time) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var rowID int64
			row := tx.QueryRowContext(ctx, `SELECT event_id FROM event WHERE event_hash = ?`, hash)
			if err := row.Scan(&rowID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("confirm %s: %w", hash, common.ErrorNotFound)
				}
				return err
			}

			// The guard makes re-confirmation a no-op without a prior read.
			_, err := tx.ExecContext(ctx, `
				UPDATE event SET confirmed = 1, confirmed_at = ?
				WHERE event_id = ? AND confirmed = 0`,
				at.UnixMilli(), rowID)
			if err != nil {
				return fmt.Errorf("failed to confirm event: %w", err)
			}

			if relay != "" {
				return markSeen(ctx, tx, rowID, relay, at)
			}
			return nil
		})
	})
}

const fetchQuery = `
	SELECT event_id, event_hash, pubkey, created_at, received_at, kind,
	       content, tags, sig, confirmed, confirmed_at
	FROM event`

func (r *SQLiteRepository) GetByHash(ctx context.Context, hash string) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx, fetchQuery+` WHERE event_hash = ?`, hash)
	ev, err := ScanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", hash, common.ErrorNotFound)
		}
		return nil, err
	}
	return ev, nil
}

func (r *SQLiteRepository) SeenOn(ctx context.Context, hash string) ([]models.RelaySeen, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rs.event_id, rs.relay_url, rs.first_seen_at
		FROM relay_seen rs
		JOIN event e ON e.event_id = rs.event_id
		WHERE e.event_hash = ?
		ORDER BY rs.first_seen_at`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to select relays: %w", err)
	}
	defer rows.Close()

	var result []models.RelaySeen
	for rows.Next() {
		var (
			item   models.RelaySeen
			millis int64
		)
		if err := rows.Scan(&item.EventID, &item.RelayURL, &millis); err != nil {
			return nil, err
		}
		item.FirstSeenAt = time.UnixMilli(millis)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the event row; tag and relay_seen rows go with it through
// the ON DELETE CASCADE constraints, so no orphan can survive.
func (r *SQLiteRepository) Delete(ctx context.Context, hash string) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM event WHERE event_hash = ?`, hash)
		if err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 0 {
			return fmt.Errorf("event %s: %w", hash, common.ErrorNotFound)
		}
		return nil
	})
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ScanEvent decodes one row produced by the canonical event column list.
// Shared with the query layer, which selects the same columns.
func ScanEvent(row rowScanner) (*models.Event, error) {
	var (
		ev             models.Event
		createdAt      int64
		receivedAt     int64
		rawTags        string
		confirmed      int
		confirmedAtRaw sql.NullInt64
	)
	if err := row.Scan(&ev.ID, &ev.Hash, &ev.Pubkey, &createdAt, &receivedAt,
		&ev.Kind, &ev.Content, &rawTags, &ev.Sig, &confirmed, &confirmedAtRaw); err != nil {
		return nil, err
	}

	ev.CreatedAt = nostr.Timestamp(createdAt)
	ev.ReceivedAt = time.UnixMilli(receivedAt)
	ev.Confirmed = confirmed != 0
	if confirmedAtRaw.Valid {
		t := time.UnixMilli(confirmedAtRaw.Int64)
		ev.ConfirmedAt = &t
	}
	if err := json.Unmarshal([]byte(rawTags), &ev.Tags); err != nil {
		return nil, fmt.Errorf("decoding stored tags: %w", err)
	}
	return &ev, nil
}

// FetchQuery exposes the canonical column list for the query layer.
func FetchQuery() string { return fetchQuery }
