package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prismhub/prism/internal/log"
)

// Recovery converts panics into 500 responses with the API error body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "panic recovered",
					log.Any("panic", r),
					log.String("path", c.Request.URL.Path),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Error: errorDetail{
						Type:    "server_error",
						Message: "internal server error",
					},
				})
			}
		}()

		c.Next()
	}
}
