package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"namaste-icd-mapper/services"
)

const (
	ServiceName    = "NAMASTE to ICD-11 Mapping Service"
	ServiceVersion = "1.0.0"
)

// SetupSystemRoutes registers the unprefixed root and ping endpoints plus
// health and model info under api.
func SetupSystemRoutes(router *gin.Engine, api *gin.RouterGroup, mappingService *services.MappingService) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": ServiceName,
			"version": ServiceVersion,
			"status":  mappingService.State().HealthStatus(),
		})
	})
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ping": "pong"})
	})

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, mappingService.Health())
	})
	api.GET("/models", func(c *gin.Context) {
		c.JSON(http.StatusOK, mappingService.Models())
	})
}
