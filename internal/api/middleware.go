package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
)

const RequestIDHeader = "X-Request-ID"

// WithRequestID tags the request with an id and attaches a logger carrying it
// to the request context, so log.Ctx(ctx) in services picks it up.
// An incoming X-Request-ID is kept.
func WithRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		logger := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// WithLogging logs every completed request.
func WithLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Ctx(c.Request.Context()).Info()
		if status >= http.StatusInternalServerError {
			evt = log.Ctx(c.Request.Context()).Error()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}

// WithRecovery turns a panic into a 500 and logs the stack trace.
func WithRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Ctx(c.Request.Context()).Error().
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, response.ErrorResponse{
					Error: "internal server error",
					Kind:  apperror.KindInternal,
				})
			}
		}()
		c.Next()
	}
}
