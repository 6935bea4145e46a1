package middleware

import (
	"net/http"

	"namaste-icd-mapper/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimit rejects bodies whose declared length exceeds maxSize and
// caps reads for bodies without a Content-Length. Handlers report the
// capped case when binding fails.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.RespondWithTooLarge(c, maxSize, c.Request.ContentLength)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
