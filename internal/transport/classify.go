// Error classification for failed sends. Classification is a pure mapping;
// side effects (credential clearing on auth expiry) belong to the processor.
package transport

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/aidapp/aida/backend/internal/errors"
)

// Classify maps a raw Send failure to a typed, retry-tagged AppError.
//
// Precedence: a received failure status is classified by status code; a
// timeout is classified as such; any other failure means no response was
// received and counts as a network error.
func Classify(err error) *errors.AppError {
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return classifyStatus(statusErr)
	}

	if isTimeout(err) {
		return &errors.AppError{
			Code:      errors.ErrTimeout,
			Message:   "request exceeded configured timeout",
			Retryable: true,
			Err:       err,
		}
	}

	return &errors.AppError{
		Code:      errors.ErrNetwork,
		Message:   "no response received",
		Retryable: true,
		Err:       err,
	}
}

func classifyStatus(statusErr *StatusError) *errors.AppError {
	appErr := &errors.AppError{
		HTTPStatus: statusErr.Status,
		Err:        statusErr,
	}

	switch {
	case statusErr.Status == 401:
		appErr.Code = errors.ErrAuthExpired
		appErr.Message = "session expired, re-authentication required"
	case statusErr.Status == 400:
		appErr.Code = errors.ErrBadRequest
		appErr.Message = "server rejected the request"
	case statusErr.Status == 403:
		appErr.Code = errors.ErrForbidden
		appErr.Message = "access denied"
	case statusErr.Status == 404:
		appErr.Code = errors.ErrNotFound
		appErr.Message = "resource not found"
	case statusErr.Status >= 500 && statusErr.Status < 600:
		appErr.Code = errors.ErrServerError
		appErr.Message = "server error"
		appErr.Retryable = true
	default:
		appErr.Code = errors.ErrUnknown
		appErr.Message = "unexpected response status"
	}

	return appErr
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
