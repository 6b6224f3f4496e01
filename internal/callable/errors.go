package callable

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Kind is the machine-readable error kind returned to callers.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	PermissionDenied   Kind = "permission-denied"
	InvalidArgument    Kind = "invalid-argument"
	AlreadyExists      Kind = "already-exists"
	NotFound           Kind = "not-found"
	FailedPrecondition Kind = "failed-precondition"
	Internal           Kind = "internal"
)

// Status is the upper-case wire form, e.g. PERMISSION_DENIED.
func (k Kind) Status() string {
	return strings.ToUpper(strings.ReplaceAll(string(k), "-", "_"))
}

func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return fiber.StatusUnauthorized
	case PermissionDenied:
		return fiber.StatusForbidden
	case InvalidArgument:
		return fiber.StatusBadRequest
	case AlreadyExists:
		return fiber.StatusConflict
	case NotFound:
		return fiber.StatusNotFound
	case FailedPrecondition:
		return fiber.StatusPreconditionFailed
	default:
		return fiber.StatusInternalServerError
	}
}

// KindFromStatus maps a wire status back to a Kind.
func KindFromStatus(status string) Kind {
	k := Kind(strings.ToLower(strings.ReplaceAll(status, "_", "-")))
	switch k {
	case Unauthenticated, PermissionDenied, InvalidArgument, AlreadyExists, NotFound, FailedPrecondition:
		return k
	default:
		return Internal
	}
}

// Error is a callable failure. Message is shown to the caller verbatim;
// Cause stays server-side.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err; anything that is not an *Error is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Internal
}
