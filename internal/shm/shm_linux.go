//go:build linux

package shm

import (
	"path/filepath"
	"strings"
)

// ShmDir is where Linux keeps POSIX shared memory objects.
const ShmDir = "/dev/shm"

// ObjectPath returns the file backing the shared memory object name.
func ObjectPath(name string) string {
	return filepath.Join(ShmDir, strings.TrimPrefix(name, "/"))
}

// SemaphoreObject returns the shared memory object name that backs the named
// semaphore name. The "sem." prefix follows the glibc layout of /dev/shm.
func SemaphoreObject(name string) string {
	return "/sem." + strings.TrimPrefix(name, "/")
}
