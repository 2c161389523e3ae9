package retry

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/nanoci/shalo/ciclient/errs"
)

// HTTPRetrier wraps another Retrier and narrows its decisions to
// HTTP-specific retryability: network timeouts always delegate to the
// wrapped retrier, but a *errs.TransportError only retries when the method
// and status code make it safe to re-send.
//
// Grounded on protocol/client/http_retrier.go: POST (git-upload-pack's
// fetch/ls-refs command bodies) is never retried on 5xx since the request
// body has already been consumed by the time a status is known; GET is
// retried on 5xx since it carries no body. 429 is always retryable.
type HTTPRetrier struct {
	wrapped Retrier
}

// NewHTTPRetrier wraps retrier, or NoopRetrier if nil.
func NewHTTPRetrier(wrapped Retrier) *HTTPRetrier {
	if wrapped == nil {
		wrapped = &NoopRetrier{}
	}
	return &HTTPRetrier{wrapped: wrapped}
}

func (r *HTTPRetrier) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return r.wrapped.ShouldRetry(err, attempt)
		}
		return false
	}

	var transportErr *errs.TransportError
	if errors.As(err, &transportErr) {
		if !isRetryableOperation(transportErr.Method(), transportErr.StatusCode) {
			return false
		}
		return r.wrapped.ShouldRetry(err, attempt)
	}

	return false
}

func (r *HTTPRetrier) Wait(ctx context.Context, attempt int) error {
	return r.wrapped.Wait(ctx, attempt)
}

func (r *HTTPRetrier) MaxAttempts() int {
	return r.wrapped.MaxAttempts()
}

// isRetryableOperation reports whether a transport failure with the given
// method and status code is safe to retry. Network failures (statusCode 0)
// and 429 are always retryable; 5xx is retryable only for methods with no
// request body to re-send.
func isRetryableOperation(method string, statusCode int) bool {
	if statusCode == 0 {
		return true
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	switch statusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return method == http.MethodGet || method == http.MethodDelete
	default:
		return false
	}
}
