package errors

import (
	"context"
	"errors"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// A structured error keeps its code and category. Context errors map to
// CANCELED and TIMEOUT; anything else becomes INTERNAL.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		wrapped := &Error{
			code:      se.code,
			category:  se.category,
			message:   message,
			cause:     err,
			metadata:  se.Metadata(),
			timestamp: se.timestamp,
			component: se.component,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// As extracts a structured error from an error chain, or returns nil.
func As(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// Is checks if the outermost structured error in the chain has the given code.
func Is(err error, code ErrorCode) bool {
	if se := As(err); se != nil {
		return se.code == code
	}
	return false
}

// IsCategory checks if the outermost structured error has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	if se := As(err); se != nil {
		return se.category == category
	}
	return false
}

// IsFatal checks if the error is a construction failure.
func IsFatal(err error) bool {
	return IsCategory(err, CategoryFatal)
}

// IsCanceled reports whether the error stems from an external stop.
// Bare context errors count too.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if IsCategory(err, CategoryRecoverable) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	if se := As(err); se != nil {
		return se.Retryable()
	}
	return false
}

// Code extracts the error code, or "" for unstructured errors.
func Code(err error) ErrorCode {
	if se := As(err); se != nil {
		return se.code
	}
	return ""
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into a single error, skipping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
