package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the JSON error envelope.
const (
	CodeValidation      = "validation_error"
	CodeNotFound        = "dataset_not_found"
	CodeRetrieval       = "retrieval_error"
	CodeParse           = "parse_error"
	CodePersistence     = "persistence_error"
	CodeModel           = "model_error"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeStorage         = "storage_error"
	CodePayloadTooLarge = "payload_too_large"
	CodeInternal        = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Retrieval(err error) *Error {
	return New(http.StatusBadGateway, CodeRetrieval, err)
}

func Parse(err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeParse, err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

func Model(err error) *Error {
	return New(http.StatusBadGateway, CodeModel, err)
}

func Storage(err error) *Error {
	return New(http.StatusBadGateway, CodeStorage, err)
}

// From unwraps err into an *Error, treating anything unknown as an internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// CodeOf returns the error code carried by err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeForbidden, err)
}

func PayloadTooLarge(err error) *Error {
	return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, err)
}
