package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 for malformed or out-of-range input
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "invalid_input", message, details)
}

// RespondWithTooLarge sends a 413 for bodies over the configured limit
func RespondWithTooLarge(c *gin.Context, maxSize, received int64) {
	details := gin.H{"max_size": maxSize}
	if received >= 0 {
		details["received"] = received
	}
	RespondWithError(c, http.StatusRequestEntityTooLarge, "request_too_large",
		"Request body exceeds maximum size", details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithNotReady sends a 503 while models and datasets are still loading
func RespondWithNotReady(c *gin.Context, status string) {
	RespondWithError(c, http.StatusServiceUnavailable, "service_not_ready",
		"Service is initializing, please retry shortly", gin.H{"status": status})
}

// RespondWithEmbeddingTimeout sends a 503 with a Retry-After hint
func RespondWithEmbeddingTimeout(c *gin.Context, retryAfterSeconds int) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	RespondWithError(c, http.StatusServiceUnavailable, "embedding_timeout",
		"Embedding computation timed out", nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
