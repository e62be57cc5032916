package middleware

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richmond-dms/docflow/internal/apperr"
	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// RequestID returns the id ProcessRequest attached to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// AttemptTracker counts calls per key inside a sliding window.
type AttemptTracker struct {
	attempts map[string]*attemptInfo
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

type attemptInfo struct {
	Count       int
	WindowStart time.Time
	LastAttempt time.Time
}

func NewAttemptTracker(limit int, window time.Duration) *AttemptTracker {
	return &AttemptTracker{
		attempts: make(map[string]*attemptInfo),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// cleanOldEntries must be called with mu held.
func (t *AttemptTracker) cleanOldEntries(now time.Time) {
	expiry := now.Add(-t.window)
	for key, info := range t.attempts {
		if info.LastAttempt.Before(expiry) {
			delete(t.attempts, key)
		}
	}
}

// RecordAttempt counts one call for key and reports whether it is within the
// limit, plus how long until the window resets. A non-positive limit disables
// tracking.
func (t *AttemptTracker) RecordAttempt(key string) (bool, time.Duration) {
	if t.limit <= 0 {
		return true, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if len(t.attempts) > 1024 {
		t.cleanOldEntries(now)
	}

	info, exists := t.attempts[key]
	if !exists || now.Sub(info.WindowStart) >= t.window {
		info = &attemptInfo{WindowStart: now}
		t.attempts[key] = info
	}
	info.Count++
	info.LastAttempt = now

	return info.Count <= t.limit, t.window - now.Sub(info.WindowStart)
}

type RequestMiddleware struct {
	logger *zap.Logger
}

func NewRequestMiddleware(logger *zap.Logger) *RequestMiddleware {
	return &RequestMiddleware{
		logger: logger.With(zap.String("middleware", "request")),
	}
}

// ProcessRequest tags the request with an id, honouring one sent by the client.
func (rm *RequestMiddleware) ProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(requestIDKey), requestID)
		c.Header(RequestIDHeader, requestID)
		rm.logger.Debug("Request started",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()))
		c.Next()
	}
}

// RateLimit applies tracker to the caller, keyed by actor when known and by
// client IP otherwise.
func (rm *RequestMiddleware) RateLimit(tracker *AttemptTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if actor := Actor(c); actor != nil {
			key = "user:" + actor.ID
		}
		allowed, retry := tracker.RecordAttempt(key)
		if !allowed {
			rm.logger.Warn("Rate limit exceeded",
				zap.String("request_id", RequestID(c.Request.Context())),
				zap.String("key", key),
				zap.String("path", c.FullPath()))
			c.Header("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())+1))
			_ = c.Error(apperr.TooManyRequests("too many generation requests, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// LimitBody caps request bodies at maxBytes. Oversized declared lengths are
// rejected up front; chunked bodies fail when the handler reads past the cap.
func (rm *RequestMiddleware) LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			_ = c.Error(apperr.PayloadTooLarge(fmt.Sprintf("request body exceeds %d bytes", maxBytes)))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// RequireJSON rejects write requests whose body is not JSON.
func (rm *RequestMiddleware) RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if c.Request.ContentLength == 0 && c.GetHeader("Content-Type") == "" {
			c.Next()
			return
		}
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != gin.MIMEJSON {
			_ = c.Error(apperr.UnsupportedMediaType("content type must be application/json"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rm *RequestMiddleware) RecoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				if errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				rm.logger.Error("Panic recovered",
					zap.String("request_id", RequestID(c.Request.Context())),
					zap.Any("error", rec),
					zap.Stack("stack"))
				_ = c.Error(apperr.Internal("internal server error", err))
				c.Abort()
			}
		}()
		c.Next()
	}
}
