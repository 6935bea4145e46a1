package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"namaste-icd-mapper/internal/ai"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/middleware"
	"namaste-icd-mapper/services"
	"namaste-icd-mapper/utils"
)

// embeddingRetryAfter is the Retry-After hint, in seconds, sent with
// embedding timeouts.
const embeddingRetryAfter = 5

// respondServiceError converts a service error into the uniform error body.
func respondServiceError(c *gin.Context, svc *services.MappingService, operation string, err error) {
	log := logger.With("request_id", middleware.GetRequestID(c), "operation", operation)

	switch {
	case errors.Is(err, services.ErrServiceNotReady):
		utils.RespondWithNotReady(c, svc.State().HealthStatus())
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithNotFound(c, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, ai.ErrEmbeddingTimeout):
		log.Warn("Embedding timed out", "error", err)
		utils.RespondWithEmbeddingTimeout(c, embeddingRetryAfter)
	default:
		log.Error("Request failed", "error", err)
		utils.RespondWithInternalError(c, "Operation failed", nil)
	}
}

// respondBindError reports a body cut off by the request size limit as 413
// and any other binding failure as 400.
func respondBindError(c *gin.Context, message string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.RespondWithTooLarge(c, tooLarge.Limit, -1)
		return
	}
	utils.RespondWithBadRequest(c, message, err.Error())
}
