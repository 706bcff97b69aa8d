package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"datalens/internal/apierr"
	"datalens/internal/models"
	"datalens/internal/service"
	"datalens/pkg/logger"

	"github.com/gin-gonic/gin"
)

type DatasetHandler struct {
	service      service.DatasetService
	maxFileBytes int64
	log          *logger.Logger
}

func NewDatasetHandler(service service.DatasetService, maxFileBytes int64, log *logger.Logger) *DatasetHandler {
	return &DatasetHandler{service: service, maxFileBytes: maxFileBytes, log: log.With("handler", "DatasetHandler")}
}

type UploadResponse struct {
	Dataset         *models.Dataset  `json:"dataset"`
	Processed       *ProcessResponse `json:"processed,omitempty"`
	ProcessingError *ErrorResponse   `json:"processing_error,omitempty"`
}

// Upload stores a multipart file, creates its dataset and processes it. A failed
// pipeline run still answers 202 with the dataset and the error.
func (h *DatasetHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	if h.maxFileBytes > 0 {
		// multipart framing overhead on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileBytes+1<<20)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.log, apierr.PayloadTooLarge(errors.New("upload exceeds size limit")))
			return
		}
		respondError(c, h.log, apierr.Validation(errMissingFile))
		return
	}
	if h.maxFileBytes > 0 && fileHeader.Size > h.maxFileBytes {
		respondError(c, h.log, apierr.PayloadTooLarge(errors.New("upload exceeds size limit")))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.log, apierr.Validation(err))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		respondError(c, h.log, apierr.Validation(err))
		return
	}

	in := service.UploadInput{
		FileName: fileHeader.Filename,
		Name:     c.PostForm("name"),
		Content:  content,
	}
	if desc := strings.TrimSpace(c.PostForm("description")); desc != "" {
		in.Description = &desc
	}

	out, err := h.service.Upload(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if out.ProcessErr != nil {
		apiErr := apierr.From(out.ProcessErr)
		h.log.Warn("uploaded dataset not processed", "dataset_id", out.Dataset.ID, "code", apiErr.Code, "error", out.ProcessErr)
		c.JSON(http.StatusAccepted, UploadResponse{
			Dataset:         out.Dataset,
			ProcessingError: &ErrorResponse{Error: apiErr.Error(), Code: apiErr.Code},
		})
		return
	}
	processed := processResponse(out.Process)
	c.JSON(http.StatusCreated, UploadResponse{Dataset: out.Dataset, Processed: &processed})
}

func (h *DatasetHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	datasets, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	c.JSON(http.StatusOK, gin.H{"data": datasets, "count": len(datasets)})
}

func (h *DatasetHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	dataset, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dataset)
}

func (h *DatasetHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reprocess runs the pipeline again on the dataset's stored file.
func (h *DatasetHandler) Reprocess(c *gin.Context) {
	userID, ok := requireUserID(c, h.log)
	if !ok {
		return
	}
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	res, err := h.service.Reprocess(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, processResponse(res))
}
