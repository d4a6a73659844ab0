package provisioning

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a provisioning failure.
type Kind int

const (
	KindRateLimited Kind = iota + 1
	KindInvalidParam
	KindUpstream
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidParam:
		return "invalid_param"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

const (
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInvalidParam      = "rest_invalid_param"
	CodeRequestFailed     = "http_request_failed"

	MessageTooManyRequests = "Too many requests"
	MessageInvalidParams   = "Invalid parameter(s)"
	MessageUnknownError    = "An unknown error occurred"
)

// ErrorData carries the HTTP status in the response body.
type ErrorData struct {
	Status int `json:"status"`
}

// Error is a failure visible to the caller. It renders as
// {"code": ..., "message": ..., "data": {"status": ...}}.
type Error struct {
	Kind    Kind      `json:"-"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    ErrorData `json:"data"`

	// RetryAfter is set on rate-limit failures.
	RetryAfter time.Duration `json:"-"`

	cause error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// GetStatus returns the HTTP status code.
func (e *Error) GetStatus() int {
	return e.Data.Status
}

// GetHeaders returns Retry-After for rate-limit failures.
func (e *Error) GetHeaders() http.Header {
	if e.Kind != KindRateLimited || e.RetryAfter <= 0 {
		return nil
	}

	seconds := int64(math.Ceil(e.RetryAfter.Seconds()))

	return http.Header{"Retry-After": []string{strconv.FormatInt(seconds, 10)}}
}

// RateLimited creates a rate-limit-exceeded failure.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Code:       CodeRateLimitExceeded,
		Message:    MessageTooManyRequests,
		Data:       ErrorData{Status: http.StatusTooManyRequests},
		RetryAfter: retryAfter,
	}
}

// InvalidParam creates an invalid-parameter failure.
func InvalidParam(message string, cause error) *Error {
	return &Error{
		Kind:    KindInvalidParam,
		Code:    CodeInvalidParam,
		Message: message,
		Data:    ErrorData{Status: http.StatusBadRequest},
		cause:   cause,
	}
}

// UpstreamFailure passes a provider failure through with the provider's status.
func UpstreamFailure(status int, code, message string) *Error {
	return &Error{
		Kind:    KindUpstream,
		Code:    code,
		Message: message,
		Data:    ErrorData{Status: status},
	}
}

// Transport reports that no response was obtained from the provider.
func Transport(cause error) *Error {
	return &Error{
		Kind:    KindTransport,
		Code:    CodeRequestFailed,
		Message: cause.Error(),
		Data:    ErrorData{Status: http.StatusInternalServerError},
		cause:   cause,
	}
}

func kindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	return 0
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool { return kindOf(err) == KindRateLimited }

// IsInvalidParam reports whether err is an invalid-parameter failure.
func IsInvalidParam(err error) bool { return kindOf(err) == KindInvalidParam }

// IsUpstream reports whether err is a provider pass-through failure.
func IsUpstream(err error) bool { return kindOf(err) == KindUpstream }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return kindOf(err) == KindTransport }
