// Package mmio provides typed access to memory-mapped device registers.
//
// Device registers have side effects on access, so every read and write
// must reach the hardware exactly once, at the width the register expects.
// All accesses go through sync/atomic so the compiler can neither elide
// nor tear them, and stores are followed by a data synchronization barrier
// on arm64 so that a write from one core is visible to the device before
// another core's next access.
package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Space is a window of device registers addressed by byte offset.
//
// Implementations must perform each access exactly once and must not
// cache values between calls. Offsets are relative to the start of the
// window and must be naturally aligned for the access width.
type Space interface {
	Read32(off uint64) uint32
	Write32(off uint64, v uint32)
	Read64(off uint64) uint64
	Write64(off uint64, v uint64)
}

// Region is a Space backed by real device memory at a raw base address.
type Region struct {
	base unsafe.Pointer
	size uint64
}

// NewRegion returns a Region covering size bytes starting at base.
//
// The caller must guarantee that base names a valid, uniquely owned,
// device-memory mapping that stays mapped for the lifetime of the Region.
// That precondition cannot be checked here; everything layered above it
// is checked.
func NewRegion(base uintptr, size uint64) *Region {
	return &Region{base: unsafe.Pointer(base), size: size}
}

// Size returns the length of the region in bytes.
func (r *Region) Size() uint64 { return r.size }

func (r *Region) check(off uint64, width uint64) {
	if off+width > r.size {
		panic(fmt.Sprintf("mmio: offset %#x width %d outside region of %#x bytes", off, width, r.size))
	}
	if off%width != 0 {
		panic(fmt.Sprintf("mmio: offset %#x not aligned for %d-byte access", off, width))
	}
}

func (r *Region) Read32(off uint64) uint32 {
	r.check(off, 4)
	return atomic.LoadUint32((*uint32)(unsafe.Add(r.base, off)))
}

func (r *Region) Write32(off uint64, v uint32) {
	r.check(off, 4)
	atomic.StoreUint32((*uint32)(unsafe.Add(r.base, off)), v)
	dataBarrier()
}

func (r *Region) Read64(off uint64) uint64 {
	r.check(off, 8)
	return atomic.LoadUint64((*uint64)(unsafe.Add(r.base, off)))
}

func (r *Region) Write64(off uint64, v uint64) {
	r.check(off, 8)
	atomic.StoreUint64((*uint64)(unsafe.Add(r.base, off)), v)
	dataBarrier()
}

var _ Space = (*Region)(nil)
