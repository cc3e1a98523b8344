package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mindspool/recall/internal/domain"
)

// Classify normalizes a raw provider error into the two-valued
// transient/permanent classification at the adapter boundary, so the rotation
// engine never has to understand provider-specific error shapes.
//
// Transient: rate limiting, timeouts, 5xx. Permanent: malformed requests,
// auth failures, content policy rejections, and anything unrecognized.
func Classify(err error) *domain.ProviderError {
	if err == nil {
		return nil
	}

	if pe, ok := domain.AsProviderError(err); ok {
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ProviderError{Class: domain.ErrorClassTransient, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &domain.ProviderError{Class: domain.ErrorClassTransient, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		class := classifyStatus(apiErr.HTTPStatusCode)
		if class == "" {
			class = classifyMessage(apiErr.Message)
		}
		return &domain.ProviderError{Class: class, Status: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		class := classifyStatus(reqErr.HTTPStatusCode)
		if class == "" {
			class = classifyMessage(reqErr.Error())
		}
		return &domain.ProviderError{Class: class, Status: reqErr.HTTPStatusCode, Err: err}
	}

	return &domain.ProviderError{Class: classifyMessage(err.Error()), Err: err}
}

// IsThrottle reports whether err is a rate-limit or quota signal, as opposed
// to some other transient failure. The embedding pacer uses this to install a
// backoff window on top of its token bucket.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	e := strings.ToLower(err.Error())
	return strings.Contains(e, "429") ||
		strings.Contains(e, "quota") ||
		strings.Contains(e, "rate_limit") ||
		strings.Contains(e, "rate limit") ||
		strings.Contains(e, "resource_exhausted")
}

func classifyStatus(status int) domain.ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrorClassTransient
	case status == http.StatusRequestTimeout:
		return domain.ErrorClassTransient
	case status >= 500:
		return domain.ErrorClassTransient
	case status >= 400:
		return domain.ErrorClassPermanent
	}
	return ""
}

func classifyMessage(msg string) domain.ErrorClass {
	e := strings.ToLower(msg)
	switch {
	case strings.Contains(e, "quota"),
		strings.Contains(e, "rate"),
		strings.Contains(e, "429"),
		strings.Contains(e, "resource_exhausted"):
		return domain.ErrorClassTransient
	case strings.Contains(e, "timeout"),
		strings.Contains(e, "timed out"),
		strings.Contains(e, "temporarily"),
		strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"),
		strings.Contains(e, "connection reset"):
		return domain.ErrorClassTransient
	default:
		return domain.ErrorClassPermanent
	}
}
