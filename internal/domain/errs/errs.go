// Package errs holds the error kinds shared by the domain services. Handlers
// switch on the kind with errors.Is; the code is what goes on the wire.
package errs

import "errors"

var (
	ErrValidation     = errors.New("validation")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrGateway        = errors.New("gateway")
	ErrOutcomeUnknown = errors.New("outcome_unknown")
	ErrConflict       = errors.New("conflict")
)

type Error struct {
	Kind error
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(code string) error {
	return &Error{Kind: ErrValidation, Code: code}
}

func NotFound(code string) error {
	return &Error{Kind: ErrNotFound, Code: code}
}

func InvalidRole(code string) error {
	return &Error{Kind: ErrInvalidRole, Code: code}
}

func Gateway(code string) error {
	return &Error{Kind: ErrGateway, Code: code}
}

func OutcomeUnknown(code string) error {
	return &Error{Kind: ErrOutcomeUnknown, Code: code}
}

func Conflict(code string) error {
	return &Error{Kind: ErrConflict, Code: code}
}

// Code returns the wire code of a domain error, or fallback for anything else.
func Code(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fallback
}
