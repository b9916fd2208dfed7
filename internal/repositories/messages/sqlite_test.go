package messages

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
PRAGMA foreign_keys = ON;
CREATE TABLE message (
  msg_id      TEXT    PRIMARY KEY,
  content     TEXT    NOT NULL,
  from_pubkey TEXT    NOT NULL,
  to_pubkey   TEXT    NOT NULL,
  event_hash  TEXT,
  created_at  INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL
);
CREATE TABLE message_delivery (
  msg_id     TEXT    NOT NULL REFERENCES message (msg_id) ON DELETE CASCADE,
  relay_url  TEXT    NOT NULL,
  status     INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (msg_id, relay_url)
);
`)
	require.NoError(t, err)

	return db
}

func hash(c byte) string { return strings.Repeat(string(c), 64) }

func testMessage(from, to string, at time.Time) *models.Message {
	return &models.Message{
		Content:    "ciphertext",
		FromPubkey: from,
		ToPubkey:   to,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestRecord_AssignsID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.UnixMilli(1_700_000_000_000)
	id, err := r.Record(ctx, testMessage(hash('a'), hash('b'), at))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ciphertext", m.Content)
	assert.Nil(t, m.EventHash)
	assert.Equal(t, at, m.CreatedAt)
}

func TestUpdateStatus_Lattice(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.UnixMilli(1_700_000_000_000)
	id, err := r.Record(ctx, testMessage(hash('a'), hash('b'), at))
	require.NoError(t, err)

	relay := "wss://relay.one"

	applied, err := r.UpdateStatus(ctx, id, relay, models.DeliverySent, at.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, applied)

	// regression to pending is refused
	applied, err = r.UpdateStatus(ctx, id, relay, models.DeliveryPending, at.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = r.UpdateStatus(ctx, id, relay, models.DeliveryConfirmed, at.Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, applied)

	// confirmed is terminal for this relay
	applied, err = r.UpdateStatus(ctx, id, relay, models.DeliveryFailed, at.Add(4*time.Second))
	require.NoError(t, err)
	assert.False(t, applied)

	deliveries, err := r.Deliveries(ctx, id)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryConfirmed, deliveries[0].Status)
	assert.Equal(t, at.Add(3*time.Second), deliveries[0].UpdatedAt)
}

func TestUpdateStatus_FailedIsTerminal(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.UnixMilli(1_700_000_000_000)
	id, err := r.Record(ctx, testMessage(hash('a'), hash('b'), at))
	require.NoError(t, err)

	relay := "wss://relay.one"

	applied, err := r.UpdateStatus(ctx, id, relay, models.DeliveryFailed, at.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = r.UpdateStatus(ctx, id, relay, models.DeliveryConfirmed, at.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestUpdateStatus_UnknownMessage(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.UpdateStatus(context.Background(), "nope", "wss://relay.one", models.DeliverySent, time.Now())
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestBestStatus_AcrossRelays(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.UnixMilli(1_700_000_000_000)
	id, err := r.Record(ctx, testMessage(hash('a'), hash('b'), at))
	require.NoError(t, err)

	// no deliveries yet
	best, err := r.BestStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPending, best)

	_, err = r.UpdateStatus(ctx, id, "wss://relay.one", models.DeliveryFailed, at)
	require.NoError(t, err)
	_, err = r.UpdateStatus(ctx, id, "wss://relay.two", models.DeliverySent, at)
	require.NoError(t, err)

	best, err = r.BestStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySent, best)

	_, err = r.UpdateStatus(ctx, id, "wss://relay.two", models.DeliveryConfirmed, at.Add(time.Second))
	require.NoError(t, err)

	best, err = r.BestStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryConfirmed, best)
}

func TestAttachEvent_AndLookupByHash(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.UnixMilli(1_700_000_000_000)
	id, err := r.Record(ctx, testMessage(hash('a'), hash('b'), at))
	require.NoError(t, err)

	exists, err := r.ExistsByEventHash(ctx, hash('e'))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.AttachEvent(ctx, id, hash('e')))

	exists, err = r.ExistsByEventHash(ctx, hash('e'))
	require.NoError(t, err)
	assert.True(t, exists)

	m, err := r.ByEventHash(ctx, hash('e'))
	require.NoError(t, err)
	assert.Equal(t, id, m.ID)

	err = r.AttachEvent(ctx, "nope", hash('e'))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestThreadFor_BothDirectionsOrdered(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	owner, peer, other := hash('a'), hash('b'), hash('c')
	at := time.UnixMilli(1_700_000_000_000)

	m1 := testMessage(owner, peer, at)
	m1.Content = "first"
	m2 := testMessage(peer, owner, at.Add(time.Minute))
	m2.Content = "second"
	m3 := testMessage(owner, other, at.Add(2*time.Minute))
	m3.Content = "unrelated"

	for _, m := range []*models.Message{m1, m2, m3} {
		_, err := r.Record(ctx, m)
		require.NoError(t, err)
	}

	got, err := r.ThreadFor(ctx, owner, peer, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)

	// window excludes the first message
	got, err = r.ThreadFor(ctx, owner, peer, at.Add(30*time.Second), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Content)
}

func TestGet_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
