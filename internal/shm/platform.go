// Package shm contains platform-specific helpers for the shared memory segment
// and the named semaphores: object naming, create/open/map/unmap/unlink, and
// futex wait/wake on words inside a shared mapping.
package shm

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNameLen bounds the part of a name after the leading slash. It leaves room
// for the "sem." prefix inside NAME_MAX.
const MaxNameLen = 250

var (
	// ErrInvalidName is returned for names that are not of the form "/name".
	ErrInvalidName = errors.New("shm: invalid object name")
	// ErrSizeMismatch is returned when an existing object has an unexpected size.
	ErrSizeMismatch = errors.New("shm: object size mismatch")
	// ErrNoSpace is returned when the shared memory filesystem cannot hold a new object.
	ErrNoSpace = errors.New("shm: share memory had not left space")
	// ErrUnsupported is returned on platforms without POSIX shared memory and futexes.
	ErrUnsupported = errors.New("shm: not supported on this platform")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Fd   int
	Name string
	Size int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	Size int
	// Create makes a new object and fails if the name is taken. Without it an
	// existing object is opened and never created.
	Create bool
}

// ValidName checks that name is a POSIX style object name: a leading slash
// followed by 1..MaxNameLen bytes containing no further slash.
func ValidName(name string) error {
	if !strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q must start with '/'", ErrInvalidName, name)
	}
	rest := name[1:]
	switch {
	case rest == "", rest == ".", rest == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(rest) > MaxNameLen:
		return fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidName, name, MaxNameLen)
	case strings.ContainsAny(rest, "/\x00"):
		return fmt.Errorf("%w: %q contains '/' or NUL", ErrInvalidName, name)
	}
	return nil
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_other.go).
