package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code int

const (
	CodeInvalidArgument Code = iota + 1
	CodeFailedPrecondition
	CodeNotFound
	CodeAlreadyExists
	CodeUnauthenticated
	CodeInternal
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeFailedPrecondition: http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeUnauthenticated:    http.StatusUnauthorized,
	CodeInternal:           http.StatusInternalServerError,
}

var code2str = map[Code]string{
	CodeInvalidArgument:    "invalid argument",
	CodeFailedPrecondition: "failed precondition",
	CodeNotFound:           "not found",
	CodeAlreadyExists:      "already exists",
	CodeUnauthenticated:    "unauthenticated",
	CodeInternal:           "internal",
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	// Details is an optional structured payload the caller can branch on,
	// e.g. the existing-session summary carried by a conflict.
	Details any `json:"details,omitempty"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: code2str[code],
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert returns err as *Error, wrapping it as an internal error when it is
// not one already.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithDetails(d any) Option {
	return optionFunc(func(e *Error) {
		e.Details = d
	})
}
