package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/pkg/errcode"
	"github.com/AdvitDeepak/local-recall/internal/pkg/response"
	"github.com/AdvitDeepak/local-recall/internal/service"
)

type EntryHandler struct {
	entries *service.EntryService
}

func NewEntryHandler(entries *service.EntryService) *EntryHandler {
	return &EntryHandler{entries: entries}
}

type createEntryRequest struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

func (h *EntryHandler) Create(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	entry, err := h.entries.Create(c.Request.Context(), req.Text, model.SourceKind(req.Source), req.Tags)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *EntryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	filter := model.EntryFilter{
		Source: model.SourceKind(c.Query("source")),
		Tag:    c.Query("tag"),
		Limit:  limit,
	}
	entries, err := h.entries.List(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	response.Success(c, gin.H{"entries": entries})
}

func (h *EntryHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid id")
		return
	}
	entry, err := h.entries.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *EntryHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid id")
		return
	}
	if err := h.entries.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *EntryHandler) DeleteAll(c *gin.Context) {
	removed, err := h.entries.DeleteAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}
