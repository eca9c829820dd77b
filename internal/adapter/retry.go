package adapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/relayforge/relayforge/internal/domain"
)

// RetryAfterHeader parses a Retry-After response header, which carries either
// a delay in seconds or an HTTP-date. The second return is false when the
// header is absent or unparseable.
func RetryAfterHeader(h http.Header) (time.Duration, bool) {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// ApplyRetryAfter attaches the vendor-suggested delay from the response
// headers to throttle and availability errors, where the header is
// meaningful. Other codes pass through untouched.
func ApplyRetryAfter(perr *domain.ProviderError, h http.Header) *domain.ProviderError {
	if perr == nil {
		return nil
	}
	switch perr.Code {
	case domain.CodeRateLimit, domain.CodeProviderUnavailable:
		if d, ok := RetryAfterHeader(h); ok {
			return perr.WithRetryAfter(d)
		}
	}
	return perr
}
