package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"namaste-icd-mapper/models"
	"namaste-icd-mapper/services"
	"namaste-icd-mapper/utils"
)

func SetupAyushRoutes(api *gin.RouterGroup, mappingService *services.MappingService) {
	ayush := api.Group("/ayush")
	ayush.GET("/search", handleAyushSearch(mappingService))
	ayush.GET("/fuzzy", handleAyushFuzzy(mappingService))
	ayush.GET("/categories", handleAyushCategories(mappingService))
	ayush.GET("/:code", handleAyushCode(mappingService))
}

func handleAyushSearch(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.AyushSearchQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search parameters", err.Error())
			return
		}

		resp, err := svc.Search(q.Query, q.Category, q.Limit, q.Offset)
		if err != nil {
			respondServiceError(c, svc, "ayush_search", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleAyushFuzzy(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.FuzzySearchQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search parameters", err.Error())
			return
		}

		resp, err := svc.FuzzySearch(q.Query, q.Limit)
		if err != nil {
			respondServiceError(c, svc, "ayush_fuzzy", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleAyushCategories(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := svc.Categories()
		if err != nil {
			respondServiceError(c, svc, "ayush_categories", err)
			return
		}
		c.JSON(http.StatusOK, categories)
	}
}

func handleAyushCode(svc *services.MappingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := svc.GetByCode(c.Param("code"))
		if err != nil {
			respondServiceError(c, svc, "ayush_get", err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
