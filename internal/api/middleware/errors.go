package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/apperr"
	"go.uber.org/zap"
)

type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
	Cause      string `json:"cause,omitempty"`
}

type ErrorEnvelope struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorMiddleware struct {
	logger     *zap.Logger
	production bool
}

func NewErrorMiddleware(logger *zap.Logger, production bool) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger:     logger.With(zap.String("middleware", "error")),
		production: production,
	}
}

// HandleErrors renders the last error attached to the context as the JSON
// error envelope.
func (em *ErrorMiddleware) HandleErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		ae := classify(last.Err)
		status := ae.StatusCode()
		body := ErrorBody{
			Message:    ae.Message,
			Code:       ae.Code,
			StatusCode: status,
		}
		if em.production {
			if status >= http.StatusInternalServerError {
				body.Message = "Internal server error"
			}
		} else {
			body.Details = ae.Details
			if ae.Err != nil {
				body.Cause = ae.Err.Error()
			}
		}

		if status >= http.StatusInternalServerError {
			em.logger.Error("Request failed",
				zap.String("request_id", RequestID(c.Request.Context())),
				zap.String("code", ae.Code),
				zap.Error(last.Err))
		}

		c.AbortWithStatusJSON(status, ErrorEnvelope{
			Error:     body,
			Timestamp: time.Now().UTC(),
		})
	}
}

// NotFound is the fallback handler for unknown routes.
func NotFound(c *gin.Context) {
	_ = c.Error(apperr.Coded(apperr.KindNotFound, "ROUTE_NOT_FOUND", "route "+c.Request.Method+" "+c.Request.URL.Path+" not found"))
}

func classify(err error) *apperr.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.PayloadTooLarge("request body too large").Wrap(err)
	}
	return apperr.As(err)
}
