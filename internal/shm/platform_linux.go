//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// MapRegion maps or creates a shared memory region (Linux implementation).
// A created region is zero filled.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ValidName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("shm: invalid region size %d", opts.Size)
	}
	path := ObjectPath(opts.Name)
	flags := unix.O_RDWR | unix.O_CLOEXEC | unix.O_NOFOLLOW
	if opts.Create {
		if !CanCreateOnDevShm(uint64(opts.Size), path) {
			return nil, fmt.Errorf("%w: path:%s, size:%d", ErrNoSpace, path, opts.Size)
		}
		flags |= unix.O_CREAT | unix.O_EXCL
	}
	fd, err := unix.Open(path, flags, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	cleanup := func() {
		_ = unix.Close(fd)
		if opts.Create {
			_ = unix.Unlink(path)
		}
	}

	if opts.Create {
		if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
			cleanup()
			return nil, fmt.Errorf("ftruncate %s: %w", path, err)
		}
	} else {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			cleanup()
			return nil, fmt.Errorf("fstat %s: %w", path, err)
		}
		if st.Size != int64(opts.Size) {
			cleanup()
			return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrSizeMismatch, path, st.Size, opts.Size)
		}
	}

	addr, err := unix.Mmap(fd, 0, opts.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &MappedRegion{
		Addr: addr,
		Fd:   fd,
		Name: opts.Name,
		Size: opts.Size,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux implementation).
// The object itself stays in the namespace until UnlinkRegion.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(region.Addr); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	region.Addr = nil
	if err := unix.Close(region.Fd); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	region.Fd = -1
	return errors.Join(errs...)
}

// UnlinkRegion removes name from the system namespace. Existing mappings
// stay valid until they are unmapped.
func UnlinkRegion(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	path := ObjectPath(name)
	if err := unix.Unlink(path); err != nil {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}
