package rest

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RequestLogger provides toggleable debug logging of outbound requests
type RequestLogger struct {
	enabled bool
	mu      sync.RWMutex
	log     *zap.Logger
}

// NewRequestLogger creates a new request logger. A nil zap logger discards everything.
func NewRequestLogger(log *zap.Logger, enabled bool) *RequestLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestLogger{
		enabled: enabled,
		log:     log.Named("rest"),
	}
}

// IsEnabled returns whether request logging is enabled
func (l *RequestLogger) IsEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// SetEnabled enables or disables request logging
func (l *RequestLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// LogResponse logs a completed request with its status, size and execution time
func (l *RequestLogger) LogResponse(method, url string, status, size int, duration time.Duration) {
	if !l.IsEnabled() {
		return
	}

	l.log.Info("request",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", status),
		zap.Int("bytes", size),
		zap.String("took", formatDuration(duration)),
	)
}

// LogError logs a request that failed before a response was read
func (l *RequestLogger) LogError(method, url string, duration time.Duration, err error) {
	if !l.IsEnabled() {
		return
	}

	l.log.Error("request failed",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("took", formatDuration(duration)),
		zap.Error(err),
	)
}

// LogBody logs a raw response body at debug level
func (l *RequestLogger) LogBody(operation, resource string, body []byte) {
	if !l.IsEnabled() {
		return
	}

	l.log.Debug("response body",
		zap.String("operation", operation),
		zap.String("resource", resource),
		zap.ByteString("body", body),
	)
}

// formatDuration renders milliseconds with two decimals, e.g. "1.25ms"
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
}
