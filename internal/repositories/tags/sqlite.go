package tags

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/nostrchat/internal/dbx"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
)

// Index decomposes the event's tag list into index rows inside the caller's
// transaction, so the event row and its tags become visible atomically.
// Entries without a value (bare ["name"]) are skipped; value interpretation
// stays with the tag name's consumer.
func Index(ctx context.Context, tx dbx.DBTX, eventRowID int64, ev *nostr.Event) error {
	for i, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tag (event_id, position, name, value, kind, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			eventRowID, i, tag[0], tag[1], ev.Kind, int64(ev.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to index tag %d: %w", i, err)
		}
	}
	return nil
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Lookup(ctx context.Context, name, value string) ([]string, error) {
	return r.lookup(ctx, `
		SELECT e.event_hash
		FROM tag t
		JOIN event e ON e.event_id = t.event_id
		WHERE t.name = ? AND t.value = ?
		ORDER BY t.created_at DESC`, name, value)
}

func (r *SQLiteRepository) LookupKind(ctx context.Context, name, value string, kind int) ([]string, error) {
	return r.lookup(ctx, `
		SELECT e.event_hash
		FROM tag t
		JOIN event e ON e.event_id = t.event_id
		WHERE t.name = ? AND t.kind = ? AND t.value = ?
		ORDER BY t.created_at DESC`, name, kind, value)
}

func (r *SQLiteRepository) lookup(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		result = append(result, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ByEvent(ctx context.Context, hash string) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.event_id, t.position, t.name, t.value, t.kind, t.created_at
		FROM tag t
		JOIN event e ON e.event_id = t.event_id
		WHERE e.event_hash = ?
		ORDER BY t.position`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []models.Tag
	for rows.Next() {
		var (
			item      models.Tag
			createdAt int64
		)
		if err := rows.Scan(&item.EventID, &item.Position, &item.Name, &item.Value, &item.Kind, &createdAt); err != nil {
			return nil, err
		}
		item.CreatedAt = nostr.Timestamp(createdAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
