//go:build linux

package shm

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// CanCreateOnDevShm reports whether the tmpfs behind /dev/shm has size free
// bytes. Paths outside /dev/shm always report true.
func CanCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, ShmDir+"/") {
		return true
	}
	stat, err := disk.Usage(ShmDir)
	if err != nil {
		// open(2) reports the real problem.
		return true
	}
	return stat.Free >= size
}
