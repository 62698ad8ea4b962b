// Package managementapi exposes an optional read-only-plus-refresh HTTP
// surface over a running token manager for operators debugging a live
// process.
package managementapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/tokkit/tokenmanager"
)

// requestIDHeader is set on every response so a caller can correlate a
// request with its log lines.
const requestIDHeader = "X-Request-Id"

// StatusSource is satisfied by *tokenmanager.Manager[T] for any T, since
// Go generics can't parameterize a gin.HandlerFunc directly: neither of
// these methods mentions T in its signature.
type StatusSource interface {
	Statuses() []tokenmanager.Status
	RefreshByString(id string) bool
}

// NewRouter builds a gin.Engine exposing:
//
//	GET  /v0/tokens           - status of every managed token
//	GET  /v0/tokens/:id       - status of one managed token
//	POST /v0/tokens/:id/refresh - force-refresh one managed token
func NewRouter(source StatusSource) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), requestLogger(), recovery())

	r.GET("/v0/tokens", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tokens": source.Statuses()})
	})

	r.GET("/v0/tokens/:id", func(c *gin.Context) {
		id := c.Param("id")
		for _, s := range source.Statuses() {
			if s.TokenID == id {
				c.JSON(http.StatusOK, s)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown token id", "token_id": id})
	})

	r.POST("/v0/tokens/:id/refresh", func(c *gin.Context) {
		id := c.Param("id")
		if !source.RefreshByString(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown token id", "token_id": id})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "refresh enqueued", "token_id": id})
	})

	return r
}

// requestID stamps every request with a fresh UUID, echoed back on the
// response so operators can correlate a call with its log lines.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs method, path, status and latency for every request,
// with the level bucketed by status code.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start).Truncate(time.Millisecond)
		statusCode := c.Writer.Status()
		entry := log.WithField("component", "managementapi").WithField("request_id", c.GetString("request_id"))

		logLine := statusCodeLogLine(statusCode, latency, c.Request.Method, path)
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		default:
			entry.Info(logLine)
		}
	}
}

func statusCodeLogLine(status int, latency time.Duration, method, path string) string {
	return http.StatusText(status) + " " + method + " " + path + " " + latency.String()
}

// recovery recovers from panics in handlers and responds 500, logging
// the panic value with its request path.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithField("panic", recovered).WithField("path", c.Request.URL.Path).Error("managementapi: recovered from panic")
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
