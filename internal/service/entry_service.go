package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/bus"
	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/pipeline"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
	"github.com/AdvitDeepak/local-recall/internal/repo"
	"github.com/AdvitDeepak/local-recall/internal/vector"
)

const maxEntryChars = 100000

type EntryService struct {
	entries *repo.EntryRepo
	vectors *repo.VectorRepo
	index   *vector.Index
	bus     *bus.Bus
	pipe    *pipeline.Pipeline
}

func NewEntryService(entries *repo.EntryRepo, vectors *repo.VectorRepo, index *vector.Index, bus *bus.Bus, pipe *pipeline.Pipeline) *EntryService {
	return &EntryService{entries: entries, vectors: vectors, index: index, bus: bus, pipe: pipe}
}

// Create persists a captured entry as pending and hands it to the
// embedding pipeline. Blocks when the pipeline's intake queue is full.
func (s *EntryService) Create(ctx context.Context, text string, source model.SourceKind, tags []string) (*model.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", appErr.ErrInvalid)
	}
	if len([]rune(text)) > maxEntryChars {
		return nil, fmt.Errorf("%w: text too long", appErr.ErrInvalid)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", appErr.ErrInvalid, source)
	}
	entry := &model.Entry{
		Text:        text,
		Source:      source,
		Tags:        tags,
		EmbedStatus: model.EmbedStatusPending,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.pipe.Enqueue(ctx, entry.ID); err != nil {
		// the row is already pending, the poll tick will pick it up
		logutil.GetLogger(ctx).Warn("enqueue entry failed", zap.Int64("entry_id", entry.ID), zap.Error(err))
	}
	if _, err := s.bus.Publish(ctx, model.NotificationCapture,
		fmt.Sprintf("captured %s entry %d", entry.Source, entry.ID)); err != nil {
		logutil.GetLogger(ctx).Warn("publish capture notification failed", zap.Error(err))
	}
	return entry, nil
}

func (s *EntryService) Get(ctx context.Context, id int64) (*model.Entry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *EntryService) List(ctx context.Context, filter model.EntryFilter) ([]model.Entry, error) {
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", appErr.ErrInvalid, filter.Source)
	}
	return s.entries.List(ctx, filter)
}

// Delete removes the entry along with its vector record and index
// slot. In-flight searches on the old snapshot may still return the
// entry once; new searches will not.
func (s *EntryService) Delete(ctx context.Context, id int64) error {
	if err := s.entries.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, id); err != nil {
		return err
	}
	s.index.Remove(id)
	return nil
}

func (s *EntryService) DeleteAll(ctx context.Context) (int64, error) {
	removed, err := s.entries.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.vectors.DeleteAll(ctx); err != nil {
		return removed, err
	}
	s.index.Reset()
	logutil.GetLogger(ctx).Info("all entries deleted", zap.Int64("removed", removed))
	return removed, nil
}
