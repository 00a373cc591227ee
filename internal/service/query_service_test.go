package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AdvitDeepak/local-recall/internal/ai"
	"github.com/AdvitDeepak/local-recall/internal/config"
	"github.com/AdvitDeepak/local-recall/internal/model"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
	"github.com/AdvitDeepak/local-recall/internal/vector"
)

type stubEntryReader struct {
	entries map[int64]model.Entry
}

func (r *stubEntryReader) ListByIDs(ctx context.Context, ids []int64) ([]model.Entry, error) {
	var out []model.Entry
	for _, id := range ids {
		if entry, ok := r.entries[id]; ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// stubEmbedder maps known texts to fixed vectors so retrieval is
// deterministic without a model behind it.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) []ai.EmbedResult {
	results := make([]ai.EmbedResult, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		results[i] = ai.EmbedResult{Vector: vec, Err: err}
	}
	return results
}

func (e *stubEmbedder) ModelName() string { return "stub-embed" }

func (e *stubEmbedder) Dimension() int { return 3 }

type stubChat struct {
	chunks    []string
	err       error
	block     bool
	gotPrompt string
}

func (c *stubChat) Name() string { return "stub" }

func (c *stubChat) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return strings.Join(c.chunks, ""), c.err
}

func (c *stubChat) GenerateStream(ctx context.Context, model string, prompt string, fn ai.StreamFunc) error {
	c.gotPrompt = prompt
	if c.err != nil {
		return c.err
	}
	for _, chunk := range c.chunks {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func queryFixture(t *testing.T, chat *stubChat) *QueryService {
	t.Helper()
	idx, err := vector.New(3)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))
	require.NoError(t, idx.Insert(2, []float32{0.9, 0.1, 0}))
	require.NoError(t, idx.Insert(3, []float32{0, 1, 0}))
	entries := &stubEntryReader{entries: map[int64]model.Entry{
		1: {ID: 1, Text: "cats sleep most of the day", Source: model.SourceClipboard, Ctime: 100},
		2: {ID: 2, Text: "my cat knocked over a glass", Source: model.SourceScreenshot, Ctime: 200},
		3: {ID: 3, Text: "rocket launch scheduled friday", Source: model.SourceUpload, Ctime: 300},
	}}
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"what do cats do":    {1, 0, 0},
		"when is the launch": {0, 1, 0},
	}}
	return NewQueryService(entries, idx, embedder, chat, "stub-model",
		config.QueryConfig{DefaultK: 2, MaxK: 3, SnippetChars: 1200})
}

func collect(t *testing.T, ch <-chan model.StreamEvent) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	s := queryFixture(t, &stubChat{})

	results, err := s.Search(context.Background(), "what do cats do", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, int64(1), results[0].EntryID)
	require.Equal(t, int64(2), results[1].EntryID)
	require.Equal(t, int64(3), results[2].EntryID)
	require.True(t, results[0].Score >= results[1].Score)
	require.Equal(t, "cats sleep most of the day", results[0].Text)
}

func TestSearchClampsK(t *testing.T) {
	s := queryFixture(t, &stubChat{})

	// k=0 falls back to the default of 2
	results, err := s.Search(context.Background(), "what do cats do", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// k above the cap is clamped to 3
	results, err = s.Search(context.Background(), "what do cats do", 50)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	s := queryFixture(t, &stubChat{})
	_, err := s.Search(context.Background(), "   ", 3)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAnswerStreamsChunksThenSourcesThenDone(t *testing.T) {
	chat := &stubChat{chunks: []string{"Cats sleep ", "a lot [1]."}}
	s := queryFixture(t, chat)

	ch, err := s.Answer(context.Background(), "what do cats do", "", 2)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	require.Equal(t, model.StreamEventChunk, events[0].Type)
	require.Equal(t, "Cats sleep ", events[0].Content)
	require.Equal(t, model.StreamEventChunk, events[1].Type)

	require.Equal(t, model.StreamEventSources, events[2].Type)
	require.Len(t, events[2].Sources, 2)
	require.Equal(t, int64(1), events[2].Sources[0].EntryID)

	require.Equal(t, model.StreamEventDone, events[3].Type)

	require.Contains(t, chat.gotPrompt, "[1] cats sleep most of the day")
	require.Contains(t, chat.gotPrompt, "Question: what do cats do")
}

func TestAnswerEmptyIndexStillAnswers(t *testing.T) {
	idx, err := vector.New(3)
	require.NoError(t, err)
	chat := &stubChat{chunks: []string{"I don't have any local notes about that."}}
	s := NewQueryService(&stubEntryReader{entries: map[int64]model.Entry{}}, idx,
		&stubEmbedder{}, chat, "stub-model", config.QueryConfig{DefaultK: 2, MaxK: 3, SnippetChars: 1200})

	ch, err := s.Answer(context.Background(), "anything", "", 2)
	require.NoError(t, err)
	events := collect(t, ch)

	// still answers: chunk, empty sources list, done and no error
	require.Len(t, events, 3)
	require.Equal(t, model.StreamEventChunk, events[0].Type)
	require.Equal(t, model.StreamEventSources, events[1].Type)
	require.Empty(t, events[1].Sources)
	require.Equal(t, model.StreamEventDone, events[2].Type)
	require.Contains(t, chat.gotPrompt, "No local context is available")
}

func TestAnswerSyncReturnsFullAnswer(t *testing.T) {
	chat := &stubChat{chunks: []string{"Cats sleep a lot [1]."}}
	s := queryFixture(t, chat)

	res, err := s.AnswerSync(context.Background(), "what do cats do", "", 2)
	require.NoError(t, err)
	require.Equal(t, "Cats sleep a lot [1].", res.Answer)
	require.Len(t, res.Sources, 2)
	require.Equal(t, "what do cats do", res.Query)
}

func TestAnswerGenerationErrorIsTerminal(t *testing.T) {
	chat := &stubChat{err: ai.ErrUnavailable}
	s := queryFixture(t, chat)

	ch, err := s.Answer(context.Background(), "what do cats do", "", 2)
	require.NoError(t, err)
	events := collect(t, ch)

	last := events[len(events)-1]
	require.Equal(t, model.StreamEventError, last.Type)
	require.Equal(t, "model_unavailable", last.ErrKind)
	for _, ev := range events {
		require.NotEqual(t, model.StreamEventDone, ev.Type)
	}
}

func TestAnswerRetrievalErrorIsTerminal(t *testing.T) {
	idx, err := vector.New(3)
	require.NoError(t, err)
	embedder := &stubEmbedder{err: ai.ErrTimeout}
	s := NewQueryService(&stubEntryReader{entries: map[int64]model.Entry{}}, idx,
		embedder, &stubChat{}, "stub-model", config.QueryConfig{DefaultK: 2, MaxK: 3, SnippetChars: 1200})

	ch, err := s.Answer(context.Background(), "anything", "", 2)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1)
	require.Equal(t, model.StreamEventError, events[0].Type)
	require.Equal(t, "model_timeout", events[0].ErrKind)
}

func TestAnswerStopsOnCancel(t *testing.T) {
	chat := &stubChat{chunks: []string{"partial"}, block: true}
	s := queryFixture(t, chat)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Answer(ctx, "what do cats do", "", 2)
	require.NoError(t, err)

	// read the first chunk so the stream is mid-flight
	require.Equal(t, model.StreamEventChunk, (<-ch).Type)
	cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			require.NotEqual(t, model.StreamEventDone, ev.Type,
				"no done frame after cancellation, got %v", ev)
		case <-timeout:
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestAnswerTruncatesLongSnippets(t *testing.T) {
	idx, err := vector.New(3)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))
	long := strings.Repeat("x", 500)
	entries := &stubEntryReader{entries: map[int64]model.Entry{
		1: {ID: 1, Text: long, Source: model.SourceUpload},
	}}
	chat := &stubChat{chunks: []string{"ok"}}
	s := NewQueryService(entries, idx, &stubEmbedder{}, chat, "stub-model",
		config.QueryConfig{DefaultK: 2, MaxK: 3, SnippetChars: 100})

	ch, err := s.Answer(context.Background(), "anything", "", 1)
	require.NoError(t, err)
	collect(t, ch)

	require.Contains(t, chat.gotPrompt, strings.Repeat("x", 100)+"...")
	require.NotContains(t, chat.gotPrompt, strings.Repeat("x", 101))
}
