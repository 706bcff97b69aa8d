package handlers

import (
	"datalens/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Process  *ProcessHandler
	Datasets *DatasetHandler
	Insights *InsightHandler
	System   *SystemHandler
	// Objects is set only when files live in the in-memory store.
	Objects *ObjectHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers, auth middleware.AuthConfig) {
	pipelineAuth := middleware.RequireUserOrService(auth)
	userAuth := middleware.RequireUser(auth)

	r.POST("/functions/v1/process-dataset", pipelineAuth, h.Process.ProcessDataset)

	if h.Objects != nil {
		r.GET("/files/:bucket/*key", h.Objects.Get)
	}

	api := r.Group("/api/v1")
	api.GET("/health", h.System.HealthCheck)
	api.GET("/system/stats", pipelineAuth, h.System.Stats)

	api.POST("/datasets/process", pipelineAuth, h.Process.ProcessDataset)

	datasets := api.Group("/datasets", userAuth)
	datasets.POST("", h.Datasets.Upload)
	datasets.GET("", h.Datasets.List)
	datasets.GET("/:id", h.Datasets.Get)
	datasets.DELETE("/:id", h.Datasets.Delete)
	datasets.POST("/:id/process", h.Datasets.Reprocess)
	datasets.GET("/:id/insights", h.Insights.List)
	datasets.GET("/:id/insights/export", h.Insights.Export)
}
