package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a missing task or one owned by another user.
	ErrNotFound = errors.New("not found")
)

// OpError carries a sentinel kind and a client-safe message.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// NotFoundError is returned by repositories when no task matches id and owner.
type NotFoundError struct {
	Op string
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: task %q: %v", e.Op, e.ID, ErrNotFound)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// PublicMessage returns the client-safe message carried by an OpError, or "".
func PublicMessage(err error) string {
	var oe OpError
	if errors.As(err, &oe) {
		return oe.Msg
	}
	return ""
}
