//go:build linux

package mmio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MapDevice maps size bytes of device memory at physical address base from
// path (typically /dev/mem or a UIO node) and returns a Region over the
// mapping plus a function that unmaps it.
//
// This is the userspace bring-up path. Kernel and firmware callers hold a
// virtual mapping already and construct a Region directly.
func MapDevice(path string, base uint64, size uint64) (*Region, func() error, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("mmio: open %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, int64(base), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("mmio: map %#x+%#x from %s: %w", base, size, path, err)
	}

	// The mapping, not the fd, keeps the region alive.
	if err := unix.Close(fd); err != nil {
		unix.Munmap(data)
		return nil, nil, fmt.Errorf("mmio: close %s: %w", path, err)
	}

	region := &Region{
		base: unsafe.Pointer(&data[0]),
		size: size,
	}
	cleanup := func() error {
		return unix.Munmap(data)
	}
	return region, cleanup, nil
}
