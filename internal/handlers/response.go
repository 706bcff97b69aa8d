package handlers

import (
	"datalens/internal/apierr"
	"datalens/internal/middleware"
	"datalens/internal/service"
	"datalens/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ProcessResponse is returned by a successful pipeline run.
type ProcessResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Insights int    `json:"insights"`
}

const processedMessage = "Dataset processed successfully"

func respondError(c *gin.Context, log *logger.Logger, err error) {
	apiErr := apierr.From(err)
	if apiErr.Status >= 500 {
		log.Error("request failed", "path", c.FullPath(), "code", apiErr.Code, "error", err)
	}
	c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{Error: apiErr.Error(), Code: apiErr.Code})
}

func processResponse(res *service.ProcessResult) ProcessResponse {
	return ProcessResponse{Success: true, Message: processedMessage, Insights: len(res.Insights)}
}

func callerFrom(c *gin.Context) service.Caller {
	identity, _ := middleware.GetIdentity(c)
	return service.Caller{UserID: identity.UserID, Service: identity.Service}
}

// requireUserID returns the authenticated user's id, answering 401 when absent.
func requireUserID(c *gin.Context, log *logger.Logger) (uuid.UUID, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok || identity.UserID == nil {
		respondError(c, log, apierr.Unauthorized(errMissingUser))
		return uuid.Nil, false
	}
	return *identity.UserID, true
}

// pathID parses the :id route parameter, answering 400 when malformed.
func pathID(c *gin.Context, log *logger.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, log, apierr.Validation(errBadDatasetID))
		return uuid.Nil, false
	}
	return id, true
}
