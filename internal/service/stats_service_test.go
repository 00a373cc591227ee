package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AdvitDeepak/local-recall/internal/control"
	"github.com/AdvitDeepak/local-recall/internal/db"
	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/repo"
	"github.com/AdvitDeepak/local-recall/internal/vector"
)

func TestStatusReportsCaptureState(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.ApplyMigrations(conn))

	ctx := context.Background()
	entries := repo.NewEntryRepo(conn)
	require.NoError(t, entries.Create(ctx, &model.Entry{
		Text:        "hello",
		Source:      model.SourceClipboard,
		EmbedStatus: model.EmbedStatusPending,
	}))

	index, err := vector.New(3)
	require.NoError(t, err)
	state := control.NewState()
	s := NewStatsService(entries, repo.NewVectorRepo(conn), index, state)

	status, err := s.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.Capturing)
	require.Zero(t, status.LastCaptureStart)
	require.Zero(t, status.LastCaptureStop)
	require.Equal(t, int64(1), status.Entries.Total)
	require.Equal(t, int64(1), status.Entries.Pending)

	state.StartCapture()
	status, err = s.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Capturing)
	require.Positive(t, status.LastCaptureStart)
	require.Zero(t, status.LastCaptureStop)

	state.StopCapture()
	status, err = s.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.Capturing)
	require.Positive(t, status.LastCaptureStop)
	require.GreaterOrEqual(t, status.LastCaptureStop, status.LastCaptureStart)
}
