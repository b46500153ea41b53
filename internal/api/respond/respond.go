package respond

import (
	"net/http"

	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error writes {"error": message} with the status the error maps to. Server-side failures are
// logged and described generically.
func Error(c *gin.Context, log *logger.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

// BadRequest is for bodies that do not bind.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
