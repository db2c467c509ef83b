package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/biofeedback/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// toHTTPError maps domain error codes onto statuses; unknown codes become a
// 500 carrying fallback.
func toHTTPError(err error, fallback string) *HTTPError {
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		return NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeInvalidToken):
		return NewHTTPError(http.StatusUnauthorized, apperrors.CodeInvalidToken, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeHealthUnauthorized):
		return NewHTTPError(http.StatusForbidden, apperrors.CodeHealthUnauthorized, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeHealthUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, apperrors.CodeHealthUnavailable, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeUpstream):
		return NewHTTPError(http.StatusBadGateway, apperrors.CodeUpstream, errMessage(err), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, fallback, errMessage(err), err)
	}
}
