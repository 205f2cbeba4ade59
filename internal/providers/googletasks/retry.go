package googletasks

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/logging"
)

// withRetry runs op, retrying only rate-limit failures: up to
// maxRetries attempts with exponential backoff (2^attempt seconds) or
// the platform-supplied Retry-After. Auth and transport failures
// surface immediately.
func (a *Adapter) withRetry(ctx context.Context, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		perr := classify(err)
		if perr.Kind != core.ErrRateLimit || attempt >= maxRetries {
			return perr
		}

		delay := perr.RetryAfter
		if delay <= 0 {
			delay = time.Duration(1<<uint(attempt+1)) * a.retryBase
		}

		logging.WithField("provider", ProviderName).
			Warn("rate limited, retrying in %v (attempt %d/%d)", delay, attempt+1, maxRetries)

		select {
		case <-ctx.Done():
			return core.NewConnectionError(ProviderName, ctx.Err())
		case <-time.After(delay):
		}
	}
}

// classify maps a Google API failure onto the typed error taxonomy.
// Native error types never cross the adapter boundary.
func classify(err error) *core.ProviderError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 429 || isQuotaReason(gerr):
			return core.NewRateLimitError(ProviderName, retryAfterHint(gerr), err)
		case gerr.Code == 401 || gerr.Code == 403:
			return core.NewAuthError(ProviderName, err)
		case gerr.Code == 404:
			return core.NewNotFoundError(ProviderName, err)
		default:
			return core.NewConnectionError(ProviderName, err)
		}
	}

	var perr *core.ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return core.NewConnectionError(ProviderName, err)
	}

	return core.NewConnectionError(ProviderName, err)
}

// isQuotaReason detects Google's habit of signaling quota exhaustion
// with a 403 instead of a 429.
func isQuotaReason(gerr *googleapi.Error) bool {
	if gerr.Code != 403 {
		return false
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

// retryAfterHint reads the Retry-After header when present.
func retryAfterHint(gerr *googleapi.Error) time.Duration {
	if gerr.Header == nil {
		return 0
	}
	raw := gerr.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := time.Parse(time.RFC1123, raw); err == nil {
		return time.Until(at)
	}
	return 0
}
