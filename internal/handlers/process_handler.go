package handlers

import (
	"net/http"

	"datalens/internal/apierr"
	"datalens/internal/service"
	"datalens/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ProcessHandler struct {
	service service.IngestService
	log     *logger.Logger
}

func NewProcessHandler(service service.IngestService, log *logger.Logger) *ProcessHandler {
	return &ProcessHandler{service: service, log: log.With("handler", "ProcessHandler")}
}

// ProcessDataset runs the ingestion pipeline for {datasetId, fileUrl, fileType}.
func (h *ProcessHandler) ProcessDataset(c *gin.Context) {
	var req service.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apierr.Validation(errBadBody))
		return
	}

	res, err := h.service.Process(c.Request.Context(), req, callerFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, processResponse(res))
}
