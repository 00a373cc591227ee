package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AdvitDeepak/local-recall/internal/middleware"
)

type RouterDeps struct {
	Entries       *EntryHandler
	Queries       *QueryHandler
	Notifications *NotificationHandler
	Control       *ControlHandler
	// QueryWindow throttles the model-backed endpoints; zero disables.
	QueryWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/data", deps.Entries.Create)
	api.GET("/data", deps.Entries.List)
	api.GET("/data/:id", deps.Entries.Get)
	api.DELETE("/data/:id", deps.Entries.Delete)
	api.DELETE("/data", deps.Entries.DeleteAll)

	queryGroup := api.Group("")
	queryGroup.Use(middleware.RateLimit(deps.QueryWindow))
	queryGroup.POST("/query", deps.Queries.Query)
	queryGroup.POST("/query/stream", deps.Queries.Stream)
	queryGroup.GET("/query/stream", deps.Queries.Stream)

	api.GET("/notifications", deps.Notifications.List)
	api.POST("/notifications/:id/read", deps.Notifications.MarkRead)
	api.POST("/notifications/read-all", deps.Notifications.MarkAllRead)

	api.POST("/control/start", deps.Control.Start)
	api.POST("/control/stop", deps.Control.Stop)
	api.GET("/status", deps.Control.Status)
	api.GET("/health", deps.Control.Health)
}
