package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/pkg/errcode"
	"github.com/AdvitDeepak/local-recall/internal/pkg/response"
	"github.com/AdvitDeepak/local-recall/internal/service"
)

type QueryHandler struct {
	queries *service.QueryService
}

func NewQueryHandler(queries *service.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

type queryRequest struct {
	Query string `json:"query"`
	Model string `json:"model"`
	K     int    `json:"k"`
}

// Query answers in one shot. Without a model it is search-only and
// returns the ranked candidates; with a model it runs RAG and returns
// the full answer.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ctx := c.Request.Context()
	if req.Model == "" {
		results, err := h.queries.Search(ctx, req.Query, req.K)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"results": results})
		return
	}
	answer, err := h.queries.AnswerSync(ctx, req.Query, req.Model, req.K)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

// Stream answers over SSE. Accepts POST with a JSON body or GET with
// query params so an EventSource can use it directly.
func (h *QueryHandler) Stream(c *gin.Context) {
	var req queryRequest
	if c.Request.Method == http.MethodGet {
		req.Query = c.Query("query")
		req.Model = c.Query("model")
		req.K, _ = strconv.Atoi(c.DefaultQuery("k", "0"))
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}

	ctx := c.Request.Context()
	events, err := h.queries.Answer(ctx, req.Query, req.Model, req.K)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for ev := range events {
		if !writeSSE(c, ev) {
			return
		}
	}
}

func writeSSE(c *gin.Context, ev model.StreamEvent) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("encode stream event", zap.Error(err))
		return false
	}
	if _, err := c.Writer.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := c.Writer.Write(data); err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
