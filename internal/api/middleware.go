package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/phantombuster-relay/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// requestID propagates a caller-supplied X-Request-ID or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(requestIDKey),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.ErrorObj("http request", "http_request", entry)
		case status >= http.StatusBadRequest:
			log.WarnObj("http request", "http_request", entry)
		default:
			log.InfoObj("http request", "http_request", entry)
		}
	}
}

func recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.ErrorObj("http handler panic", "http_panic", map[string]any{
			"path":       c.Request.URL.Path,
			"panic":      fmt.Sprint(recovered),
			"request_id": c.GetString(requestIDKey),
		})
		writeDetail(c, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", recovered))
	})
}
