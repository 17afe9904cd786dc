package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TaskCountKey is set by the predict handler once the batch is parsed.
const TaskCountKey = "tasks"

// Logger writes one line per request. Prediction requests also carry the
// batch size and the payload sizes, which dominate their latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"request_id":     c.GetString(RequestIDKey),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         status,
			"duration":       time.Since(start),
			"client_ip":      c.ClientIP(),
			"request_bytes":  c.Request.ContentLength,
			"response_bytes": c.Writer.Size(),
		}
		if n, ok := c.Get(TaskCountKey); ok {
			fields["tasks"] = n
		}
		entry := logrus.WithFields(fields)

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request processed")
		}
	}
}
