//go:build !linux

package shm

import (
	"context"
	"strings"
)

// ObjectPath returns the name unchanged; there is no backing file.
func ObjectPath(name string) string {
	return name
}

// SemaphoreObject returns the shared memory object name that backs the named semaphore.
func SemaphoreObject(name string) string {
	return "/sem." + strings.TrimPrefix(name, "/")
}

// MapRegion is not implemented on this platform.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupported
}

// UnmapRegion is not implemented on this platform.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	return ErrUnsupported
}

// UnlinkRegion is not implemented on this platform.
func UnlinkRegion(name string) error {
	return ErrUnsupported
}

// CanCreateOnDevShm always reports true where there is no /dev/shm.
func CanCreateOnDevShm(size uint64, path string) bool {
	return true
}
