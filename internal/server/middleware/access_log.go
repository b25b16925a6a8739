package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prismhub/prism/internal/log"
)

// AccessLog logs one line per request: errors and 4xx/5xx at error level,
// everything else at debug.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}

		var errMsgs []string
		for _, e := range c.Errors {
			errMsgs = append(errMsgs, e.Error())
		}

		if len(errMsgs) > 0 {
			fields = append(fields, log.Any("errors", errMsgs))
		}

		if status >= 400 || len(errMsgs) > 0 {
			log.Error(ctx, "[ACCESS]", fields...)

			return
		}

		log.Debug(ctx, "[ACCESS]", fields...)
	}
}
