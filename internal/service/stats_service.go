package service

import (
	"context"
	"time"

	"github.com/AdvitDeepak/local-recall/internal/control"
	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/repo"
	"github.com/AdvitDeepak/local-recall/internal/vector"
)

type StatsService struct {
	entries   *repo.EntryRepo
	vectors   *repo.VectorRepo
	index     *vector.Index
	state     *control.State
	startedAt time.Time
}

// Status is the dashboard view of the whole system. The capture
// timestamps are unix millis, zero until the switch is first flipped.
type Status struct {
	Capturing        bool               `json:"capturing"`
	LastCaptureStart int64              `json:"last_capture_start"`
	LastCaptureStop  int64              `json:"last_capture_stop"`
	Entries          *model.EntryCounts `json:"entries"`
	Index            vector.Stats       `json:"index"`
	VectorRows       int64              `json:"vector_rows"`
	UptimeSeconds    int64              `json:"uptime_seconds"`
}

func NewStatsService(entries *repo.EntryRepo, vectors *repo.VectorRepo, index *vector.Index, state *control.State) *StatsService {
	return &StatsService{entries: entries, vectors: vectors, index: index, state: state, startedAt: time.Now()}
}

func (s *StatsService) Status(ctx context.Context) (*Status, error) {
	counts, err := s.entries.Counts(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.vectors.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Capturing:        s.state.Capturing(),
		LastCaptureStart: s.state.LastStarted(),
		LastCaptureStop:  s.state.LastStopped(),
		Entries:          counts,
		Index:            s.index.Stats(),
		VectorRows:       rows,
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
	}, nil
}
