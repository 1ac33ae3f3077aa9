package mmio

import (
	"encoding/binary"
	"fmt"
)

// Buffer is a Space backed by an ordinary byte slice.
//
// It has no device semantics: reads and writes are plain little-endian
// loads and stores. It is the right backend for decoding register dumps
// and for building register-file models on top of.
type Buffer struct {
	data []byte
}

// NewBuffer returns a Buffer over data. The slice is used in place.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the underlying slice.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) check(off uint64, width uint64) {
	if off+width > uint64(len(b.data)) {
		panic(fmt.Sprintf("mmio: offset %#x width %d outside buffer of %#x bytes", off, width, len(b.data)))
	}
	if off%width != 0 {
		panic(fmt.Sprintf("mmio: offset %#x not aligned for %d-byte access", off, width))
	}
}

func (b *Buffer) Read32(off uint64) uint32 {
	b.check(off, 4)
	return binary.LittleEndian.Uint32(b.data[off:])
}

func (b *Buffer) Write32(off uint64, v uint32) {
	b.check(off, 4)
	binary.LittleEndian.PutUint32(b.data[off:], v)
}

func (b *Buffer) Read64(off uint64) uint64 {
	b.check(off, 8)
	return binary.LittleEndian.Uint64(b.data[off:])
}

func (b *Buffer) Write64(off uint64, v uint64) {
	b.check(off, 8)
	binary.LittleEndian.PutUint64(b.data[off:], v)
}

var _ Space = (*Buffer)(nil)
