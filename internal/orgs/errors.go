package orgs

import (
	"errors"
)

// Kind classifies lifecycle failures so callers can map them to responses.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDuplicateOrganization
	KindDuplicateAdmin
	KindOrgNotFound
	KindAdminNotFound
	KindCreateFailed
	KindUpdateFailed
	KindDeleteFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateOrganization:
		return "duplicate_organization"
	case KindDuplicateAdmin:
		return "duplicate_admin"
	case KindOrgNotFound:
		return "org_not_found"
	case KindAdminNotFound:
		return "admin_not_found"
	case KindCreateFailed:
		return "create_failed"
	case KindUpdateFailed:
		return "update_failed"
	case KindDeleteFailed:
		return "delete_failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrDuplicateOrganization = &Error{Kind: KindDuplicateOrganization}
	ErrDuplicateAdmin        = &Error{Kind: KindDuplicateAdmin}
	ErrOrgNotFound           = &Error{Kind: KindOrgNotFound}
	ErrAdminNotFound         = &Error{Kind: KindAdminNotFound}
	ErrCreateFailed          = &Error{Kind: KindCreateFailed}
	ErrUpdateFailed          = &Error{Kind: KindUpdateFailed}
	ErrDeleteFailed          = &Error{Kind: KindDeleteFailed}
)

// Error is a lifecycle failure. Message is safe to return to clients, Err
// carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-facing message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ""
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
