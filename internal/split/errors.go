package split

import (
	"fmt"
	"net/http"
)

// Kind classifies split errors.
type Kind int

const (
	KindInvalidSplitConfig Kind = iota + 1
	KindNoSplitConfigFound
	KindNoSplitDataFound
	KindMismatchedTypeIDs
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSplitConfig:
		return "InvalidSplitConfig"
	case KindNoSplitConfigFound:
		return "NoSplitConfigFound"
	case KindNoSplitDataFound:
		return "NoSplitDataFound"
	case KindMismatchedTypeIDs:
		return "MismatchedTypeIDs"
	default:
		return "Unknown"
	}
}

// Status returns the HTTP status a request handler should report for the kind.
func (k Kind) Status() int {
	switch k {
	case KindNoSplitConfigFound, KindNoSplitDataFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a terminal split-handling failure carrying an HTTP-style status.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Sentinel values for errors.Is. Matching compares Kind only.
var (
	ErrInvalidSplitConfig = &Error{Kind: KindInvalidSplitConfig, Status: KindInvalidSplitConfig.Status(), Message: "invalid split config"}
	ErrNoSplitConfigFound = &Error{Kind: KindNoSplitConfigFound, Status: KindNoSplitConfigFound.Status(), Message: "no split config found"}
	ErrNoSplitDataFound   = &Error{Kind: KindNoSplitDataFound, Status: KindNoSplitDataFound.Status(), Message: "no split data found"}
	ErrMismatchedTypeIDs  = &Error{Kind: KindMismatchedTypeIDs, Status: KindMismatchedTypeIDs.Status(), Message: "mismatched type ids"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a split error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an Error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Status:  kind.Status(),
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidField(field string, err error) *Error {
	e := NewError(KindInvalidSplitConfig, "field %q", field)
	e.Err = err
	return e
}
