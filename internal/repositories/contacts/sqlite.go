package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/dbx"
	"github.com/dmitrijs2005/nostrchat/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertFromFollowList(ctx context.Context, pubkey, petname, relayHint string, at time.Time) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO contact (pubkey, status, petname, recommended_relay, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (pubkey) DO UPDATE SET
				status = excluded.status,
				petname = excluded.petname,
				recommended_relay = excluded.recommended_relay,
				updated_at = excluded.updated_at`,
			pubkey, models.FollowFollowing, petname, relayHint,
			at.UnixMilli(), at.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to upsert contact: %w", err)
		}
		return nil
	})
}

// RecordIncomingMessage is a single statement: the counter bump is
// unconditional, the preview advance is guarded inside CASE expressions so
// out-of-order deliveries cannot roll the preview back.
func (r *SQLiteRepository) RecordIncomingMessage(ctx context.Context, pubkey, preview string, at time.Time) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO contact (pubkey, status, unseen_count, last_message, last_message_at, created_at, updated_at)
			VALUES (?, ?, 1, ?, ?, ?, ?)
			ON CONFLICT (pubkey) DO UPDATE SET
				unseen_count = contact.unseen_count + 1,
				last_message = CASE
					WHEN contact.last_message_at IS NULL OR contact.last_message_at < excluded.last_message_at
					THEN excluded.last_message ELSE contact.last_message END,
				last_message_at = CASE
					WHEN contact.last_message_at IS NULL OR contact.last_message_at < excluded.last_message_at
					THEN excluded.last_message_at ELSE contact.last_message_at END,
				updated_at = excluded.updated_at`,
			pubkey, models.FollowNone, preview, at.UnixMilli(),
			at.UnixMilli(), at.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record incoming message: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) MarkSeen(ctx context.Context, pubkey string) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE contact SET unseen_count = 0, updated_at = ?
			WHERE pubkey = ?`, time.Now().UnixMilli(), pubkey)
		if err != nil {
			return fmt.Errorf("failed to mark seen: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 0 {
			return fmt.Errorf("contact %s: %w", pubkey, common.ErrorNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, pubkey string, status models.FollowStatus) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE contact SET status = ?, updated_at = ?
			WHERE pubkey = ?`, status, time.Now().UnixMilli(), pubkey)
		if err != nil {
			return fmt.Errorf("failed to set status: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 0 {
			return fmt.Errorf("contact %s: %w", pubkey, common.ErrorNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) Remove(ctx context.Context, pubkey string) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM contact WHERE pubkey = ?`, pubkey)
		if err != nil {
			return fmt.Errorf("failed to delete contact: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 0 {
			return fmt.Errorf("contact %s: %w", pubkey, common.ErrorNotFound)
		}
		return nil
	})
}

const fetchQuery = `
	SELECT pubkey, status, petname, recommended_relay, unseen_count,
	       last_message, last_message_at, created_at, updated_at
	FROM contact`

func (r *SQLiteRepository) Get(ctx context.Context, pubkey string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, fetchQuery+` WHERE pubkey = ?`, pubkey)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", pubkey, common.ErrorNotFound)
		}
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, fetchQuery+` ORDER BY last_message_at DESC NULLS LAST, pubkey`)
	if err != nil {
		return nil, fmt.Errorf("failed to select contacts: %w", err)
	}
	defer rows.Close()

	var result []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c          models.Contact
		lastMsgAt  sql.NullInt64
		createdAt  int64
		updatedAt  int64
		statusCode int
	)
	if err := row.Scan(&c.Pubkey, &statusCode, &c.Petname, &c.RecommendedRelay,
		&c.UnseenCount, &c.LastMessage, &lastMsgAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Status = models.FollowStatus(statusCode)
	if lastMsgAt.Valid {
		t := time.UnixMilli(lastMsgAt.Int64)
		c.LastMessageAt = &t
	}
	c.CreatedAt = time.UnixMilli(createdAt)
	c.UpdatedAt = time.UnixMilli(updatedAt)
	return &c, nil
}
