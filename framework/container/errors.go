package container

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound matches every NotFoundError via errors.Is.
	ErrNotFound = errors.New("container: not found")

	// ErrInvalidArgument matches every InvalidArgumentError via errors.Is.
	ErrInvalidArgument = errors.New("container: invalid argument")

	// ErrCyclicResolution matches every CyclicResolutionError via errors.Is.
	ErrCyclicResolution = errors.New("container: cyclic resolution")

	// ErrUnsupported matches every UnsupportedError via errors.Is.
	ErrUnsupported = errors.New("container: unsupported operation")
)

// NotFoundError is returned when an identifier is not managed by any
// container in the chain.
type NotFoundError struct {
	ID string

	// Reason is optional detail, e.g. the unresolvable constructor parameter.
	Reason string
}

func (e NotFoundError) Error() string {
	// Example: container: alias "mailer" is not managed by the container
	msg := "container: alias " + strconv.Quote(e.ID) + " is not managed by the container"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidArgumentError is returned for malformed registrations, such as a
// nil extender, a value that is not a service provider, or a constructor
// argument of the wrong type.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return "container: " + e.Op + ": " + e.Reason
}

// Is reports whether target is ErrInvalidArgument.
func (e InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// CyclicResolutionError is returned when resolving ID recursed past the
// configured depth or re-entered a shared binding that is still being built.
type CyclicResolutionError struct {
	ID string

	// Path is the chain of identifiers being resolved, outermost first.
	Path []string
}

func (e CyclicResolutionError) Error() string {
	// Example: container: cyclic resolution of "a" (a -> b -> a)
	msg := "container: cyclic resolution of " + strconv.Quote(e.ID)
	if len(e.Path) > 0 {
		msg += " (" + strings.Join(e.Path, " -> ") + ")"
	}
	return msg
}

// Is reports whether target is ErrCyclicResolution.
func (e CyclicResolutionError) Is(target error) bool { return target == ErrCyclicResolution }

// UnsupportedError is returned when a forwarded operation has no delegate
// that implements it.
type UnsupportedError struct{ Op string }

func (e UnsupportedError) Error() string {
	return "container: no delegate supports " + e.Op
}

// Is reports whether target is ErrUnsupported.
func (e UnsupportedError) Is(target error) bool { return target == ErrUnsupported }
