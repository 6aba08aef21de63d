package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Wrap them with the constructors below and match with errors.Is.
var ErrValidation = errors.New("validation_error")
var ErrAuth = errors.New("auth_error")
var ErrAuthorization = errors.New("authorization_error")
var ErrNotFound = errors.New("not_found")
var ErrInvalidState = errors.New("invalid_state")
var ErrCardNotOwned = errors.New("card_not_owned")
var ErrCardAlreadySelected = errors.New("card_already_selected")
var ErrInternal = errors.New("internal_error")

var kinds = []error{
	ErrValidation,
	ErrAuth,
	ErrAuthorization,
	ErrNotFound,
	ErrInvalidState,
	ErrCardNotOwned,
	ErrCardAlreadySelected,
	ErrInternal,
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error { return wrap(ErrValidation, format, args...) }
func Auth(format string, args ...any) error       { return wrap(ErrAuth, format, args...) }
func Authorization(format string, args ...any) error {
	return wrap(ErrAuthorization, format, args...)
}
func NotFound(format string, args ...any) error     { return wrap(ErrNotFound, format, args...) }
func InvalidState(format string, args ...any) error { return wrap(ErrInvalidState, format, args...) }
func CardNotOwned(format string, args ...any) error { return wrap(ErrCardNotOwned, format, args...) }
func CardAlreadySelected(format string, args ...any) error {
	return wrap(ErrCardAlreadySelected, format, args...)
}

// Internal wraps an unexpected store failure. The cause stays in the chain for
// logging but Message never exposes it.
func Internal(cause error, format string, args ...any) error {
	return &internalError{msg: fmt.Sprintf(format, args...), cause: cause}
}

type internalError struct {
	msg   string
	cause error
}

func (e *internalError) Error() string {
	if e.cause == nil {
		return ErrInternal.Error() + ": " + e.msg
	}
	return ErrInternal.Error() + ": " + e.msg + ": " + e.cause.Error()
}

func (e *internalError) Unwrap() []error { return []error{ErrInternal, e.cause} }

// Kind returns the sentinel kind of err, or ErrInternal for anything
// that was not produced by this package.
func Kind(err error) error {
	var ie *internalError
	if errors.As(err, &ie) {
		return ErrInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// Message is the caller-facing text of err without the kind prefix.
func Message(err error) string {
	var ie *internalError
	if errors.As(err, &ie) {
		return ie.msg
	}
	kind := Kind(err)
	if kind == ErrInternal {
		return "internal error"
	}
	prefix := kind.Error() + ": "
	s := err.Error()
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
