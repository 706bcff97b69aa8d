package handlers

import (
	"fmt"
	"net/http"

	"datalens/internal/service"
	"datalens/pkg/logger"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InsightHandler struct {
	datasets service.DatasetService
	insights service.InsightService
	log      *logger.Logger
}

func NewInsightHandler(datasets service.DatasetService, insights service.InsightService, log *logger.Logger) *InsightHandler {
	return &InsightHandler{datasets: datasets, insights: insights, log: log.With("handler", "InsightHandler")}
}

func (h *InsightHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	dataset, err := h.datasets.Get(ctx, userID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	insights, err := h.insights.List(ctx, dataset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": insights, "count": len(insights)})
}

// Export downloads the dataset's insights as an Excel workbook.
func (h *InsightHandler) Export(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	dataset, err := h.datasets.Get(ctx, userID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	report, err := h.insights.Export(ctx, dataset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	c.Data(http.StatusOK, xlsxContentType, report.Content.Bytes())
}
