package routes

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/queue"
	"namaste-icd-mapper/middleware"
	"namaste-icd-mapper/services"
	"namaste-icd-mapper/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SetupAdminRoutes registers operator endpoints on admin, which carries the
// role guard. q may be nil, in which case queued exports answer 503.
func SetupAdminRoutes(
	admin *gin.RouterGroup,
	mappingService *services.MappingService,
	feedbackService *services.FeedbackService,
	q queue.Enqueuer,
	exportDir string,
) {
	admin.POST("/reload", handleReload(mappingService))
	admin.GET("/feedback/export", handleFeedbackExport(mappingService, feedbackService))
	admin.POST("/feedback/export", handleQueueFeedbackExport(mappingService, q, exportDir))
}

func handleReload(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		resp, err := svc.Reload(ctx, "admin")
		if err != nil {
			respondServiceError(c, svc, "reload", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// exportFilename is unique per call; the random suffix keeps exports queued
// within the same second apart.
func exportFilename() string {
	return fmt.Sprintf("feedback_%s_%s.xlsx",
		time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

// handleFeedbackExport streams the feedback log as xlsx, or as JSON with
// a summary when format=json.
func handleFeedbackExport(svc *services.MappingService, feedback *services.FeedbackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.DefaultQuery("format", "excel")
		if format != "excel" && format != "json" {
			utils.RespondWithBadRequest(c, "format must be excel or json", nil)
			return
		}

		records, err := feedback.List(c.Request.Context())
		if err != nil {
			respondServiceError(c, svc, "feedback_export", err)
			return
		}

		if format == "json" {
			c.JSON(http.StatusOK, gin.H{
				"records": records,
				"summary": services.SummarizeFeedback(records),
			})
			return
		}

		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename()))
		if err := services.WriteFeedbackWorkbook(c.Writer, records); err != nil {
			logger.Error("Feedback export failed",
				"request_id", middleware.GetRequestID(c),
				"error", err)
			c.Status(http.StatusInternalServerError)
		}
	}
}

// handleQueueFeedbackExport hands the workbook build to the worker, which
// writes it under exportDir.
func handleQueueFeedbackExport(svc *services.MappingService, q queue.Enqueuer, exportDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q == nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Background export requires Redis; use GET /admin/feedback/export", nil)
			return
		}

		requestID := middleware.GetRequestID(c)
		path := filepath.Join(exportDir, exportFilename())

		task, err := queue.NewExportFeedbackTask(path, requestID)
		if err != nil {
			respondServiceError(c, svc, "feedback_export_enqueue", err)
			return
		}
		info, err := q.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			logger.Error("Failed to enqueue feedback export",
				"request_id", requestID,
				"error", err)
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Failed to enqueue export", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"message": "Export queued",
			"task_id": info.ID,
			"queue":   info.Queue,
			"path":    path,
		})
	}
}
