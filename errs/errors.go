package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an error for API consumers.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindUnauthenticated  Kind = "UNAUTHENTICATED"
	KindForbidden        Kind = "FORBIDDEN"
	KindSelfFollow       Kind = "SELF_FOLLOW"
	KindAlreadyFollowing Kind = "ALREADY_FOLLOWING"
	KindNotFollowing     Kind = "NOT_FOLLOWING"
	KindValidation       Kind = "BAD_USER_INPUT"
	KindInternal         Kind = "INTERNAL_SERVER_ERROR"
)

// Error is the application error type. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Extensions is picked up by the GraphQL executor and rendered under "extensions".
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.Kind)}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden        = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrSelfFollow       = &Error{Kind: KindSelfFollow, Message: "you cannot follow yourself"}
	ErrAlreadyFollowing = &Error{Kind: KindAlreadyFollowing, Message: "you already follow this user"}
	ErrNotFollowing     = &Error{Kind: KindNotFollowing, Message: "you don't follow this user"}
	ErrValidation       = &Error{Kind: KindValidation, Message: "invalid input"}
)

// NotFound reports a missing entity, e.g. NotFound("post").
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Invalid(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the client-facing message for err.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

// FromValidation converts go-playground validator failures into a single ValidationError.
func FromValidation(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, describe(fe))
	}
	return &Error{Kind: KindValidation, Message: strings.Join(msgs, "; "), Err: err}
}

func describe(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "alphanumunderscore":
		return field + " may only contain letters, digits and underscores"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
