package errutil

import "net/http"

type CoreStatus string

const (
	StatusUnknown        CoreStatus = "unknown"
	StatusInternal       CoreStatus = "internal"
	StatusBadRequest     CoreStatus = "bad_request"
	StatusUnauthorized   CoreStatus = "unauthorized"
	StatusNotFound       CoreStatus = "not_found"
	StatusConflict       CoreStatus = "conflict"
	StatusNotInitialized CoreStatus = "not_initialized"
	StatusLimitExceeded  CoreStatus = "limit_exceeded"
)

// HTTPStatus converts the CoreStatus to the status code written by the gin error middleware.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusNotInitialized:
		return http.StatusPreconditionFailed
	case StatusLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
