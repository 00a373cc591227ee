package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/ai"
	"github.com/AdvitDeepak/local-recall/internal/config"
	"github.com/AdvitDeepak/local-recall/internal/model"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
)

const systemPrompt = "You are a factual, privacy-preserving assistant operating entirely on local data. " +
	"Answer the user's question using only the provided text snippets. " +
	"Do not invent details or access external sources. " +
	"If the context is insufficient, respond with: 'I don't have enough local context to answer this.' " +
	"Keep responses under 150 words and cite snippet IDs in brackets."

const noContextNotice = "No local context is available for this query. " +
	"Say so, then answer from general knowledge only if you are confident."

// EntryReader is the slice of the entry store the query path needs.
type EntryReader interface {
	ListByIDs(ctx context.Context, ids []int64) ([]model.Entry, error)
}

// Searcher is the read side of the vector index.
type Searcher interface {
	Search(query []float32, k int) ([]model.RetrievalCandidate, error)
}

type QueryService struct {
	entries      EntryReader
	index        Searcher
	embedder     ai.IEmbedder
	chat         ai.IChatProvider
	chatModel    string
	defaultK     int
	maxK         int
	snippetChars int
}

func NewQueryService(entries EntryReader, index Searcher, embedder ai.IEmbedder, chat ai.IChatProvider, chatModel string, cfg config.QueryConfig) *QueryService {
	return &QueryService{
		entries:      entries,
		index:        index,
		embedder:     embedder,
		chat:         chat,
		chatModel:    chatModel,
		defaultK:     cfg.DefaultK,
		maxK:         cfg.MaxK,
		snippetChars: cfg.SnippetChars,
	}
}

func (s *QueryService) clampK(k int) int {
	if k <= 0 {
		return s.defaultK
	}
	if k > s.maxK {
		return s.maxK
	}
	return k
}

// Search embeds the query and returns the top-k entries joined with
// their text, best match first.
func (s *QueryService) Search(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	candidates, err := s.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, candidates)
}

func (s *QueryService) retrieve(ctx context.Context, query string, k int) ([]model.RetrievalCandidate, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.index.Search(vec, s.clampK(k))
}

// join resolves candidates to full entries, keeping score order and
// skipping entries deleted since the snapshot was taken.
func (s *QueryService) join(ctx context.Context, candidates []model.RetrievalCandidate) ([]model.SearchResult, error) {
	if len(candidates) == 0 {
		return []model.SearchResult{}, nil
	}
	ids := make([]int64, 0, len(candidates))
	for _, cand := range candidates {
		ids = append(ids, cand.EntryID)
	}
	entries, err := s.entries.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Entry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}
	results := make([]model.SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		entry, ok := byID[cand.EntryID]
		if !ok {
			continue
		}
		results = append(results, model.SearchResult{
			EntryID: entry.ID,
			Text:    entry.Text,
			Score:   cand.Score,
			Source:  entry.Source,
			Ctime:   entry.Ctime,
		})
	}
	return results, nil
}

// RAGAnswer is the non-streaming answer form for clients that want a
// single response body.
type RAGAnswer struct {
	Answer  string                     `json:"answer"`
	Sources []model.RetrievalCandidate `json:"sources"`
	Query   string                     `json:"query"`
}

// AnswerSync runs retrieval-augmented generation and returns the full
// answer at once.
func (s *QueryService) AnswerSync(ctx context.Context, query, modelName string, k int) (*RAGAnswer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	results, err := s.retrieveJoined(ctx, query, k)
	if err != nil {
		return nil, err
	}
	answer, err := s.chat.Generate(ctx, s.pickModel(modelName), s.buildPrompt(query, results))
	if err != nil {
		return nil, err
	}
	return &RAGAnswer{Answer: answer, Sources: toCandidates(results), Query: query}, nil
}

// Answer runs retrieval-augmented generation and streams the answer:
// answer_chunk frames in arrival order, then exactly one sources frame
// with the candidates used as context, then one done frame. Any
// failure replaces the tail with a single error frame. The channel
// closes after the terminal frame. Cancelling ctx stops generation.
func (s *QueryService) Answer(ctx context.Context, query, modelName string, k int) (<-chan model.StreamEvent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	out := make(chan model.StreamEvent, 8)
	go s.answer(ctx, query, modelName, k, out)
	return out, nil
}

func (s *QueryService) answer(ctx context.Context, query, modelName string, k int, out chan<- model.StreamEvent) {
	defer close(out)
	logger := logutil.GetLogger(ctx).With(zap.String("module", "query"))

	results, err := s.retrieveJoined(ctx, query, k)
	if err != nil {
		logger.Error("retrieval failed", zap.Error(err))
		s.emit(ctx, out, errorEvent(err))
		return
	}

	prompt := s.buildPrompt(query, results)
	err = s.chat.GenerateStream(ctx, s.pickModel(modelName), prompt, func(delta string) error {
		if delta == "" {
			return nil
		}
		if !s.emit(ctx, out, model.StreamEvent{Type: model.StreamEventChunk, Content: delta}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// consumer walked away, no terminal frame to deliver
			return
		}
		logger.Error("generation failed", zap.Error(err))
		s.emit(ctx, out, errorEvent(err))
		return
	}
	if !s.emit(ctx, out, model.StreamEvent{Type: model.StreamEventSources, Sources: toCandidates(results)}) {
		return
	}
	s.emit(ctx, out, model.StreamEvent{Type: model.StreamEventDone})
}

func (s *QueryService) pickModel(modelName string) string {
	if modelName != "" {
		return modelName
	}
	return s.chatModel
}

func (s *QueryService) retrieveJoined(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	candidates, err := s.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, candidates)
}

// buildPrompt assembles the grounding prompt. With no candidates the
// model still gets called, with an explicit notice instead of context.
func (s *QueryService) buildPrompt(query string, results []model.SearchResult) string {
	context := noContextNotice
	if len(results) > 0 {
		parts := make([]string, 0, len(results))
		for _, res := range results {
			parts = append(parts, fmt.Sprintf("[%d] %s", res.EntryID, s.truncate(res.Text)))
		}
		context = strings.Join(parts, "\n\n")
	}
	return fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:", systemPrompt, context, query)
}

func toCandidates(results []model.SearchResult) []model.RetrievalCandidate {
	out := make([]model.RetrievalCandidate, 0, len(results))
	for _, res := range results {
		out = append(out, model.RetrievalCandidate{EntryID: res.EntryID, Score: res.Score})
	}
	return out
}

func (s *QueryService) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= s.snippetChars {
		return text
	}
	return string(runes[:s.snippetChars]) + "..."
}

// emit delivers an event unless the consumer is gone.
func (s *QueryService) emit(ctx context.Context, out chan<- model.StreamEvent, ev model.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorEvent(err error) model.StreamEvent {
	kind := "internal"
	switch {
	case errors.Is(err, ai.ErrTimeout):
		kind = "model_timeout"
	case errors.Is(err, ai.ErrUnavailable):
		kind = "model_unavailable"
	case errors.Is(err, ai.ErrInvalidResponse):
		kind = "model_invalid_response"
	case errors.Is(err, appErr.ErrInvalid):
		kind = "invalid"
	}
	return model.StreamEvent{Type: model.StreamEventError, Content: err.Error(), ErrKind: kind}
}
