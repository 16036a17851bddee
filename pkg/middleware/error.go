package middleware

import (
	"errors"
	"net/http"

	"businesspilot/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders the last handler error as a JSON envelope. Domain errors keep
// their mapped status code; anything else collapses to a 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var base errutil.BaseError
		if errors.As(last.Err, &base) {
			c.JSON(base.Code.HTTPStatus(), base.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "internal server error",
			},
		})
	}
}
