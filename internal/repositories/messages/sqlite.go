package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/dbx"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository on a *sql.DB; UpdateStatus touches
// two tables and needs its own transaction.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Record(ctx context.Context, m *models.Message) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := dbx.RetryBusy(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO message (msg_id, content, from_pubkey, to_pubkey, event_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Content, m.FromPubkey, m.ToPubkey, m.EventHash,
			m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (r *SQLiteRepository) ExistsByEventHash(ctx context.Context, eventHash string) (bool, error) {
	var n int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message WHERE event_hash = ?`, eventHash)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("query row scan failed: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ByEventHash(ctx context.Context, eventHash string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, fetchQuery+` WHERE event_hash = ?`, eventHash)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message for event %s: %w", eventHash, common.ErrorNotFound)
		}
		return nil, err
	}
	return m, nil
}

func (r *SQLiteRepository) AttachEvent(ctx context.Context, msgID, eventHash string) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE message SET event_hash = ?, updated_at = ?
			WHERE msg_id = ?`, eventHash, time.Now().UnixMilli(), msgID)
		if err != nil {
			return fmt.Errorf("failed to attach event: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 0 {
			return fmt.Errorf("message %s: %w", msgID, common.ErrorNotFound)
		}
		return nil
	})
}

// UpdateStatus performs the lattice check and the write in one guarded
// upsert per (message, relay) pair. Failed is terminal for that relay only;
// another relay starts its own attempt row.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, msgID, relay string, status models.DeliveryStatus, at time.Time) (bool, error) {
	var applied bool
	err := dbx.RetryBusy(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var n int
			row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM message WHERE msg_id = ?`, msgID)
			if err := row.Scan(&n); err != nil {
				return fmt.Errorf("query row scan failed: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("message %s: %w", msgID, common.ErrorNotFound)
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO message_delivery (msg_id, relay_url, status, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (msg_id, relay_url) DO UPDATE SET
					status = excluded.status,
					updated_at = excluded.updated_at
				WHERE message_delivery.status IN (?, ?)
				  AND excluded.status > message_delivery.status`,
				msgID, relay, status, at.UnixMilli(),
				models.DeliveryPending, models.DeliverySent)
			if err != nil {
				return fmt.Errorf("failed to update delivery status: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			applied = ra == 1

			if applied {
				if _, err := tx.ExecContext(ctx, `
					UPDATE message SET updated_at = ? WHERE msg_id = ?`,
					at.UnixMilli(), msgID); err != nil {
					return fmt.Errorf("failed to touch message: %w", err)
				}
			}
			return nil
		})
	})
	return applied, err
}

func (r *SQLiteRepository) Deliveries(ctx context.Context, msgID string) ([]models.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT msg_id, relay_url, status, updated_at
		FROM message_delivery WHERE msg_id = ?
		ORDER BY relay_url`, msgID)
	if err != nil {
		return nil, fmt.Errorf("failed to select deliveries: %w", err)
	}
	defer rows.Close()

	var result []models.Delivery
	for rows.Next() {
		var (
			d      models.Delivery
			millis int64
			code   int
		)
		if err := rows.Scan(&d.MessageID, &d.RelayURL, &code, &millis); err != nil {
			return nil, err
		}
		d.Status = models.DeliveryStatus(code)
		d.UpdatedAt = time.UnixMilli(millis)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) BestStatus(ctx context.Context, msgID string) (models.DeliveryStatus, error) {
	deliveries, err := r.Deliveries(ctx, msgID)
	if err != nil {
		return models.DeliveryPending, err
	}

	best := models.DeliveryPending
	for i, d := range deliveries {
		if i == 0 || d.Status.Rank() > best.Rank() {
			best = d.Status
		}
	}
	return best, nil
}

const fetchQuery = `
	SELECT msg_id, content, from_pubkey, to_pubkey, event_hash, created_at, updated_at
	FROM message`

func (r *SQLiteRepository) ThreadFor(ctx context.Context, pubkeyA, pubkeyB string, since, until time.Time) ([]models.Message, error) {
	query := fetchQuery + `
		WHERE ((from_pubkey = ?1 AND to_pubkey = ?2) OR (from_pubkey = ?2 AND to_pubkey = ?1))`
	args := []any{pubkeyA, pubkeyB}

	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since.UnixMilli())
	}
	if !until.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, until.UnixMilli())
	}
	query += ` ORDER BY created_at, msg_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select thread: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, msgID string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, fetchQuery+` WHERE msg_id = ?`, msgID)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", msgID, common.ErrorNotFound)
		}
		return nil, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m         models.Message
		eventHash sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&m.ID, &m.Content, &m.FromPubkey, &m.ToPubkey,
		&eventHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if eventHash.Valid {
		h := eventHash.String
		m.EventHash = &h
	}
	m.CreatedAt = time.UnixMilli(createdAt)
	m.UpdatedAt = time.UnixMilli(updatedAt)
	return &m, nil
}
