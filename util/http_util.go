// api/util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/cloudscope/armproxy/api/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// RefreshRequested reports whether the request forces a cache bypass for
// the addressed resource and its dependents.
func RefreshRequested(c *gin.Context) bool {
	return c.Query("refresh-cache") == "true"
}
