// Package query composes filtered reads over the event store and tag
// index. Filters mirror the protocol's subscription semantics
// (kinds/authors/ids/tag constraints/time window/limit) and results come
// back newest-first, the conventional consumption order.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/nostrchat/internal/dbx"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/events"
	"github.com/nbd-wtf/go-nostr"
)

// Query is a stateless read composer over the store.
type Query struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Query {
	return &Query{db: db}
}

// Events executes the filter and returns a lazy cursor over matching
// events ordered by authored-at descending (hash descending as tiebreak).
// The cursor is finite and non-restartable; the caller must Close it.
// Long scans read from a snapshot and hold no locks that would stall
// concurrent ingestion.
func (q *Query) Events(ctx context.Context, f nostr.Filter) (*Cursor, error) {
	sqlStr, args := buildEventQuery(f)
	rows, err := q.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return &Cursor{rows: rows}, nil
}

// All drains the cursor for callers that want the full slice.
func (q *Query) All(ctx context.Context, f nostr.Filter) ([]models.Event, error) {
	cur, err := q.Events(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var result []models.Event
	for cur.Next() {
		result = append(result, *cur.Event())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildEventQuery(f nostr.Filter) (string, []any) {
	var (
		b    strings.Builder
		args []any
		cond []string
	)
	b.WriteString(events.FetchQuery())

	if len(f.IDs) > 0 {
		cond = append(cond, "event_hash IN "+placeholders(len(f.IDs)))
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if len(f.Kinds) > 0 {
		cond = append(cond, "kind IN "+placeholders(len(f.Kinds)))
		for _, k := range f.Kinds {
			args = append(args, k)
		}
	}
	if len(f.Authors) > 0 {
		cond = append(cond, "pubkey IN "+placeholders(len(f.Authors)))
		for _, a := range f.Authors {
			args = append(args, a)
		}
	}
	if f.Since != nil {
		cond = append(cond, "created_at >= ?")
		args = append(args, int64(*f.Since))
	}
	if f.Until != nil {
		cond = append(cond, "created_at <= ?")
		args = append(args, int64(*f.Until))
	}
	for name, values := range f.Tags {
		if len(values) == 0 {
			continue
		}
		// Subscription filters spell tag constraints as "#e"; the index
		// stores bare names.
		name = strings.TrimPrefix(name, "#")
		cond = append(cond,
			"EXISTS (SELECT 1 FROM tag t WHERE t.event_id = event.event_id AND t.name = ? AND t.value IN "+
				placeholders(len(values))+")")
		args = append(args, name)
		for _, v := range values {
			args = append(args, v)
		}
	}

	if len(cond) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(cond, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, event_hash DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	return b.String(), args
}

func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

// Cursor is a lazily-produced, finite, non-restartable sequence of events.
type Cursor struct {
	rows *sql.Rows
	cur  *models.Event
	err  error
}

// Next advances to the next event, returning false at the end or on error.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	ev, err := events.ScanEvent(c.rows)
	if err != nil {
		c.err = err
		return false
	}
	c.cur = ev
	return true
}

// Event returns the event at the current position.
func (c *Cursor) Event() *models.Event { return c.cur }

// Err reports the first error hit while iterating.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *Cursor) Close() error { return c.rows.Close() }
