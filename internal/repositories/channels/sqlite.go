package channels

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/dbx"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) ApplyCreation(ctx context.Context, ev *nostr.Event, meta *models.ChannelMetadata) (bool, error) {
	metaJSON, err := meta.MarshalJSONString()
	if err != nil {
		return false, fmt.Errorf("encoding channel metadata: %w", err)
	}

	var created bool
	err = dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO channel_cache (creation_event_hash, creator_pubkey, created_at, metadata)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (creation_event_hash) DO NOTHING`,
			ev.ID, ev.PubKey, ev.CreatedAt.Time().UnixMilli(), metaJSON)
		if err != nil {
			return fmt.Errorf("failed to insert channel: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		created = ra == 1
		return nil
	})
	return created, err
}

// ApplyUpdate compares against the last applied edit, or the creation time
// when none has been applied, in the same guarded statement that performs
// the overwrite. An edit for an unknown channel affects no rows; kind-41
// can legitimately arrive before its kind-40.
func (r *SQLiteRepository) ApplyUpdate(ctx context.Context, ev *nostr.Event, channelHash string, meta *models.ChannelMetadata) (bool, error) {
	metaJSON, err := meta.MarshalJSONString()
	if err != nil {
		return false, fmt.Errorf("encoding channel metadata: %w", err)
	}

	var applied bool
	err = dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE channel_cache
			SET metadata = ?, updated_event_hash = ?, updated_at = ?
			WHERE creation_event_hash = ?
			  AND COALESCE(updated_at, created_at) < ?`,
			metaJSON, ev.ID, ev.CreatedAt.Time().UnixMilli(),
			channelHash, ev.CreatedAt.Time().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to update channel: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		applied = ra == 1
		return nil
	})
	return applied, err
}

const fetchQuery = `
	SELECT creation_event_hash, creator_pubkey, created_at, metadata,
	       updated_event_hash, updated_at
	FROM channel_cache`

func (r *SQLiteRepository) Get(ctx context.Context, channelHash string) (*models.Channel, error) {
	row := r.db.QueryRowContext(ctx, fetchQuery+` WHERE creation_event_hash = ?`, channelHash)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %s: %w", channelHash, common.ErrorNotFound)
		}
		return nil, err
	}
	return ch, nil
}

func (r *SQLiteRepository) ByCreator(ctx context.Context, pubkey string) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, fetchQuery+` WHERE creator_pubkey = ? ORDER BY created_at`, pubkey)
	if err != nil {
		return nil, fmt.Errorf("failed to select channels: %w", err)
	}
	defer rows.Close()

	var result []models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*models.Channel, error) {
	var (
		ch            models.Channel
		createdAt     int64
		metaJSON      string
		updatedHash   sql.NullString
		updatedMillis sql.NullInt64
	)
	if err := row.Scan(&ch.CreationEventHash, &ch.CreatorPubkey, &createdAt,
		&metaJSON, &updatedHash, &updatedMillis); err != nil {
		return nil, err
	}
	ch.CreatedAt = time.UnixMilli(createdAt)
	if updatedHash.Valid {
		h := updatedHash.String
		ch.UpdatedEventHash = &h
	}
	if updatedMillis.Valid {
		t := time.UnixMilli(updatedMillis.Int64)
		ch.UpdatedAt = &t
	}

	meta, err := models.DecodeChannelMetadata(metaJSON)
	if err != nil {
		return nil, err
	}
	ch.Metadata = meta
	return &ch, nil
}
