// Package middleware holds the gin middleware for the API surface.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WithBearerAuth validates the Authorization header against the configured
// token list. An empty list accepts any non-empty bearer token, which keeps
// local development key-free.
func WithBearerAuth(apiKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing Authorization header")

			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "Authorization header must be a bearer token")

			return
		}

		if len(apiKeys) > 0 && !lo.Contains(apiKeys, token) {
			abortUnauthorized(c, "invalid API key")

			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
		Error: errorDetail{
			Type:    "unauthorized",
			Message: message,
		},
	})
}

// RequireJSON rejects mutating requests whose body is not JSON.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()

			return
		}

		if c.Request.ContentLength == 0 {
			c.Next()

			return
		}

		contentType := c.ContentType()
		if contentType != "application/json" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
				Error: errorDetail{
					Type:    "invalid_request_error",
					Message: "Content-Type must be application/json",
				},
			})

			return
		}

		c.Next()
	}
}
