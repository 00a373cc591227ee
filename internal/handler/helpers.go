package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/ai"
	"github.com/AdvitDeepak/local-recall/internal/pkg/errcode"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
	"github.com/AdvitDeepak/local-recall/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
	case errors.Is(err, ai.ErrTimeout):
		response.Error(c, errcode.ErrModelTimeout, "model call timed out")
	case errors.Is(err, ai.ErrUnavailable), errors.Is(err, ai.ErrInvalidResponse):
		response.Error(c, errcode.ErrModelUnavailable, "model unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
