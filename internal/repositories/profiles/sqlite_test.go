package profiles

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
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
CREATE TABLE profile_cache (
  pubkey       TEXT    PRIMARY KEY,
  metadata     TEXT    NOT NULL,
  event_hash   TEXT    NOT NULL DEFAULT '',
  updated_at   INTEGER NOT NULL,
  picture_path TEXT    NOT NULL DEFAULT '',
  banner_path  TEXT    NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)

	return db
}

func hash(c byte) string { return strings.Repeat(string(c), 64) }

func metadataEvent(h string, createdAt nostr.Timestamp) *nostr.Event {
	return &nostr.Event{
		ID:        h,
		PubKey:    hash('b'),
		CreatedAt: createdAt,
		Kind:      nostr.KindProfileMetadata,
	}
}

func TestApply_InsertAndNewerWins(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	applied, err := r.Apply(ctx, metadataEvent(hash('a'), 100), &models.ProfileMetadata{Name: "alice"})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = r.Apply(ctx, metadataEvent(hash('c'), 200), &models.ProfileMetadata{Name: "alice2"})
	require.NoError(t, err)
	assert.True(t, applied)

	p, err := r.Get(ctx, hash('b'))
	require.NoError(t, err)
	assert.Equal(t, "alice2", p.Metadata.Name)
	assert.Equal(t, hash('c'), p.EventHash)
	assert.Equal(t, int64(200_000), p.UpdatedAt.UnixMilli())
}

func TestApply_StaleDiscarded(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := r.Apply(ctx, metadataEvent(hash('a'), 200), &models.ProfileMetadata{Name: "new"})
	require.NoError(t, err)

	// an older event arriving later changes nothing
	applied, err := r.Apply(ctx, metadataEvent(hash('c'), 100), &models.ProfileMetadata{Name: "old"})
	require.NoError(t, err)
	assert.False(t, applied)

	p, err := r.Get(ctx, hash('b'))
	require.NoError(t, err)
	assert.Equal(t, "new", p.Metadata.Name)
	assert.Equal(t, hash('a'), p.EventHash)
}

func TestApply_EqualTimestampDiscarded(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := r.Apply(ctx, metadataEvent(hash('a'), 100), &models.ProfileMetadata{Name: "first"})
	require.NoError(t, err)

	applied, err := r.Apply(ctx, metadataEvent(hash('c'), 100), &models.ProfileMetadata{Name: "second"})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApply_OverwriteResetsImagePaths(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := r.Apply(ctx, metadataEvent(hash('a'), 100), &models.ProfileMetadata{Name: "alice"})
	require.NoError(t, err)
	require.NoError(t, r.SetImagePaths(ctx, hash('b'), "/cache/pic.png", "/cache/banner.png"))

	p, err := r.Get(ctx, hash('b'))
	require.NoError(t, err)
	assert.Equal(t, "/cache/pic.png", p.PicturePath)

	_, err = r.Apply(ctx, metadataEvent(hash('c'), 200), &models.ProfileMetadata{Name: "alice2"})
	require.NoError(t, err)

	p, err = r.Get(ctx, hash('b'))
	require.NoError(t, err)
	assert.Empty(t, p.PicturePath)
	assert.Empty(t, p.BannerPath)
}

func TestGet_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background(), hash('b'))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetImagePaths_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	err := r.SetImagePaths(context.Background(), hash('b'), "/p", "/b")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
