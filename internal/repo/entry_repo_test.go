package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AdvitDeepak/local-recall/internal/db"
	"github.com/AdvitDeepak/local-recall/internal/model"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.ApplyMigrations(conn))
	return conn
}

func TestEntryRepoCreateAndGet(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	entry := &model.Entry{
		Text:   "meeting notes from standup",
		Source: model.SourceClipboard,
		Tags:   []string{"work", "standup"},
	}
	require.NoError(t, repo.Create(ctx, entry))
	require.NotZero(t, entry.ID)
	require.Equal(t, model.EmbedStatusPending, entry.EmbedStatus)
	require.NotZero(t, entry.Ctime)

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, entry.Text, got.Text)
	require.Equal(t, model.SourceClipboard, got.Source)
	require.Equal(t, []string{"work", "standup"}, got.Tags)
	require.Equal(t, model.EmbedStatusPending, got.EmbedStatus)

	_, err = repo.GetByID(ctx, entry.ID+100)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestEntryRepoListPendingOrder(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &model.Entry{Text: text, Source: model.SourceUpload}))
	}
	ok, err := repo.UpdateStatusFrom(ctx, 2, model.EmbedStatusPending, model.EmbedStatusEmbedded)
	require.NoError(t, err)
	require.True(t, ok)

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "first", pending[0].Text)
	require.Equal(t, "third", pending[1].Text)

	pending, err = repo.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "first", pending[0].Text)
}

func TestEntryRepoStatusGuard(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	entry := &model.Entry{Text: "guarded", Source: model.SourceScreenshot}
	require.NoError(t, repo.Create(ctx, entry))

	ok, err := repo.UpdateStatusFrom(ctx, entry.ID, model.EmbedStatusPending, model.EmbedStatusEmbedded)
	require.NoError(t, err)
	require.True(t, ok)

	// a stale retry must not flip embedded back to failed
	ok, err = repo.UpdateStatusFrom(ctx, entry.ID, model.EmbedStatusPending, model.EmbedStatusFailed)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, model.EmbedStatusEmbedded, got.EmbedStatus)
}

func TestEntryRepoListFilters(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Entry{Text: "clip a", Source: model.SourceClipboard, Tags: []string{"work"}}))
	require.NoError(t, repo.Create(ctx, &model.Entry{Text: "shot b", Source: model.SourceScreenshot, Tags: []string{"home"}}))
	require.NoError(t, repo.Create(ctx, &model.Entry{Text: "clip c", Source: model.SourceClipboard, Tags: []string{"home", "work"}}))

	bySource, err := repo.List(ctx, model.EntryFilter{Source: model.SourceClipboard})
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	// newest first
	require.Equal(t, "clip c", bySource[0].Text)

	byTag, err := repo.List(ctx, model.EntryFilter{Tag: "home"})
	require.NoError(t, err)
	require.Len(t, byTag, 2)

	limited, err := repo.List(ctx, model.EntryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestEntryRepoListByIDs(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Entry{Text: text, Source: model.SourceUpload}))
	}
	got, err := repo.ListByIDs(ctx, []int64{1, 3, 99})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = repo.ListByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEntryRepoRequeue(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Entry{Text: text, Source: model.SourceUpload}))
	}
	for _, id := range []int64{1, 2} {
		ok, err := repo.UpdateStatusFrom(ctx, id, model.EmbedStatusPending, model.EmbedStatusFailed)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ids, err := repo.RequeueFailed(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids)

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.Total)
	require.Equal(t, int64(2), counts.Pending)
	require.Equal(t, int64(1), counts.Failed)
}

func TestEntryRepoRequeueAll(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	for _, text := range []string{"a", "b"} {
		require.NoError(t, repo.Create(ctx, &model.Entry{Text: text, Source: model.SourceUpload}))
	}
	ok, err := repo.UpdateStatusFrom(ctx, 1, model.EmbedStatusPending, model.EmbedStatusEmbedded)
	require.NoError(t, err)
	require.True(t, ok)

	flipped, err := repo.RequeueAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), flipped)

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts.Pending)
}

func TestEntryRepoDelete(t *testing.T) {
	repo := NewEntryRepo(testDB(t))
	ctx := context.Background()

	entry := &model.Entry{Text: "to delete", Source: model.SourceUpload}
	require.NoError(t, repo.Create(ctx, entry))
	require.NoError(t, repo.Delete(ctx, entry.ID))
	require.ErrorIs(t, repo.Delete(ctx, entry.ID), appErr.ErrNotFound)
}

func TestVectorRepoRoundTrip(t *testing.T) {
	conn := testDB(t)
	repo := NewVectorRepo(conn)
	ctx := context.Background()

	rec := &model.VectorRecord{
		EntryID:   7,
		Embedding: []float32{0.25, -0.5, 1},
		ModelName: "test-model",
		Dim:       3,
		Ctime:     12345,
	}
	require.NoError(t, repo.Save(ctx, rec))

	// saving again replaces, not duplicates
	rec.Embedding = []float32{1, 0, 0}
	require.NoError(t, repo.Save(ctx, rec))

	records, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(7), records[0].EntryID)
	require.Equal(t, []float32{1, 0, 0}, records[0].Embedding)
	require.Equal(t, "test-model", records[0].ModelName)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, repo.Delete(ctx, 7))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
