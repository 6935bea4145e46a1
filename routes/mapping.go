package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"namaste-icd-mapper/models"
	"namaste-icd-mapper/services"
)

func SetupMappingRoutes(api *gin.RouterGroup, mappingService *services.MappingService, feedbackService *services.FeedbackService) {
	api.POST("/map", handleMap(mappingService))
	api.POST("/recommend", handleRecommend(mappingService))
	api.POST("/feedback", handleFeedback(mappingService, feedbackService))
}

func handleMap(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MappingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, "Invalid mapping request", err)
			return
		}

		resp, err := svc.Map(c.Request.Context(), req)
		if err != nil {
			respondServiceError(c, svc, "map", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleRecommend(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RecommendationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, "Invalid recommendation request", err)
			return
		}

		resp, err := svc.Recommend(c.Request.Context(), req)
		if err != nil {
			respondServiceError(c, svc, "recommend", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleFeedback records feedback regardless of the mapping service state.
func handleFeedback(svc *services.MappingService, feedback *services.FeedbackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, "Invalid feedback request", err)
			return
		}

		resp, err := feedback.Submit(c.Request.Context(), req)
		if err != nil {
			respondServiceError(c, svc, "feedback", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
