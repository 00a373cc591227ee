package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/AdvitDeepak/local-recall/internal/control"
	"github.com/AdvitDeepak/local-recall/internal/pkg/response"
	"github.com/AdvitDeepak/local-recall/internal/service"
)

type ControlHandler struct {
	state *control.State
	stats *service.StatsService
}

func NewControlHandler(state *control.State, stats *service.StatsService) *ControlHandler {
	return &ControlHandler{state: state, stats: stats}
}

func (h *ControlHandler) Start(c *gin.Context) {
	h.state.StartCapture()
	response.Success(c, gin.H{"capturing": true})
}

func (h *ControlHandler) Stop(c *gin.Context) {
	h.state.StopCapture()
	response.Success(c, gin.H{"capturing": false})
}

func (h *ControlHandler) Status(c *gin.Context) {
	status, err := h.stats.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *ControlHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
