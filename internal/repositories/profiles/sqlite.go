package profiles

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

// Apply is one guarded upsert: the recency comparison and the overwrite are
// a single indivisible statement, so racing relays cannot interleave an
// older profile over a newer one. Image paths reset on overwrite because
// the cached files belong to the previous metadata.
func (r *SQLiteRepository) Apply(ctx context.Context, ev *nostr.Event, meta *models.ProfileMetadata) (bool, error) {
	metaJSON, err := meta.MarshalJSONString()
	if err != nil {
		return false, fmt.Errorf("encoding profile metadata: %w", err)
	}

	var applied bool
	err = dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO profile_cache (pubkey, metadata, event_hash, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (pubkey) DO UPDATE SET
				metadata = excluded.metadata,
				event_hash = excluded.event_hash,
				updated_at = excluded.updated_at,
				picture_path = '',
				banner_path = ''
			WHERE excluded.updated_at > profile_cache.updated_at`,
			ev.PubKey, metaJSON, ev.ID, ev.CreatedAt.Time().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to upsert profile: %w", err)
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

func (r *SQLiteRepository) Get(ctx context.Context, pubkey string) (*models.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT pubkey, metadata, event_hash, updated_at, picture_path, banner_path
		FROM profile_cache WHERE pubkey = ?`, pubkey)

	var (
		p        models.Profile
		metaJSON string
		millis   int64
	)
	if err := row.Scan(&p.Pubkey, &metaJSON, &p.EventHash, &millis, &p.PicturePath, &p.BannerPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", pubkey, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	p.UpdatedAt = time.UnixMilli(millis)

	meta, err := models.DecodeProfileMetadata(metaJSON)
	if err != nil {
		return nil, err
	}
	p.Metadata = meta
	return &p, nil
}

func (r *SQLiteRepository) SetImagePaths(ctx context.Context, pubkey, picturePath, bannerPath string) error {
	return dbx.RetryBusy(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE profile_cache SET picture_path = ?, banner_path = ?
			WHERE pubkey = ?`, picturePath, bannerPath, pubkey)
		if err != nil {
			return fmt.Errorf("failed to update image paths: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 0 {
			return fmt.Errorf("profile %s: %w", pubkey, common.ErrorNotFound)
		}
		return nil
	})
}
