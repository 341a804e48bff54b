package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archivista/knowledge-pipeline/api/handlers"
	"github.com/archivista/knowledge-pipeline/api/middleware"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/ingest", h.Ingest.CreateIngestion)
		v1.GET("/jobs/:jobId", h.Jobs.GetJob)
		v1.POST("/jobs/:jobId/process", h.Jobs.ProcessJob)
		v1.GET("/documents/:documentId", h.Jobs.GetDocument)
		v1.POST("/query", h.Query.Query)
	}
}
