package crawl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const rateLimitSignature = "Rate limit exceeded"

// ProviderError is a failed scrape as reported by the provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("crawl provider error (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimit matches the provider's rate-limit signals: HTTP 429 or the
// "Rate limit exceeded" message.
func IsRateLimit(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusTooManyRequests || strings.Contains(pe.Message, rateLimitSignature)
	}
	return err != nil && strings.Contains(err.Error(), rateLimitSignature)
}

// IsRetryable reports whether another attempt could succeed. Rate limits,
// timeouts and 5xx answers are retryable; other 4xx answers are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimit(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == 0 || pe.StatusCode == http.StatusRequestTimeout || pe.StatusCode >= 500
	}
	return true
}
