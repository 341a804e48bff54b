package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func handleError(c *gin.Context, log logger.Logger, message string, err error) {
	log.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(apperrors.HTTPStatusCode(err), response)
}
