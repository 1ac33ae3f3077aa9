// Package fdt builds Flattened Device Tree blobs.
//
// The builder is streaming: callers open and close nodes and append
// properties in document order, then Build seals the blob. Structure
// and strings blocks grow as the tree is written; the header and the
// empty memory-reservation map are laid down at the end.
package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	magic       = 0xd00dfeed
	version     = 17
	lastCompVer = 16
	headerSize  = 40
	// Two zero u64s terminate the (empty) reservation map.
	rsvmapSize = 16

	tokBeginNode = 0x1
	tokEndNode   = 0x2
	tokProp      = 0x3
	tokEnd       = 0x9
)

// Builder accumulates a device tree. The zero value is not usable; call
// New.
type Builder struct {
	structure bytes.Buffer
	strings   bytes.Buffer
	stringOff map[string]uint32

	depth int
}

// New returns an empty Builder. The first node begun must be the root,
// named "".
func New() *Builder {
	return &Builder{stringOff: make(map[string]uint32)}
}

// Begin opens a node. Nodes nest; each Begin needs a matching End.
func (b *Builder) Begin(name string) {
	b.u32(tokBeginNode)
	b.structure.WriteString(name)
	b.structure.WriteByte(0)
	b.pad()
	b.depth++
}

// End closes the most recently opened node.
func (b *Builder) End() {
	b.u32(tokEndNode)
	b.depth--
}

// PropString appends a NUL-terminated string property.
func (b *Builder) PropString(name, value string) {
	b.prop(name, append([]byte(value), 0))
}

// PropStrings appends a string-list property.
func (b *Builder) PropStrings(name string, values ...string) {
	var data []byte
	for _, v := range values {
		data = append(data, v...)
		data = append(data, 0)
	}
	b.prop(name, data)
}

// PropU32 appends one or more big-endian 32-bit cells.
func (b *Builder) PropU32(name string, values ...uint32) {
	data := make([]byte, 0, len(values)*4)
	for _, v := range values {
		data = binary.BigEndian.AppendUint32(data, v)
	}
	b.prop(name, data)
}

// PropU64 appends one or more big-endian 64-bit cells.
func (b *Builder) PropU64(name string, values ...uint64) {
	data := make([]byte, 0, len(values)*8)
	for _, v := range values {
		data = binary.BigEndian.AppendUint64(data, v)
	}
	b.prop(name, data)
}

// PropEmpty appends a boolean property, present with no value.
func (b *Builder) PropEmpty(name string) {
	b.prop(name, nil)
}

// Build seals the tree and returns the blob. It fails if the node
// nesting never closed back to the root.
func (b *Builder) Build() ([]byte, error) {
	if b.depth != 0 {
		return nil, fmt.Errorf("fdt: %d unclosed node(s)", b.depth)
	}
	b.u32(tokEnd)

	structOff := uint32(headerSize + rsvmapSize)
	structSize := uint32(b.structure.Len())
	stringsOff := structOff + structSize
	stringsSize := uint32(b.strings.Len())
	total := stringsOff + stringsSize

	blob := make([]byte, total)
	binary.BigEndian.PutUint32(blob[0:], magic)
	binary.BigEndian.PutUint32(blob[4:], total)
	binary.BigEndian.PutUint32(blob[8:], structOff)
	binary.BigEndian.PutUint32(blob[12:], stringsOff)
	binary.BigEndian.PutUint32(blob[16:], headerSize)
	binary.BigEndian.PutUint32(blob[20:], version)
	binary.BigEndian.PutUint32(blob[24:], lastCompVer)
	binary.BigEndian.PutUint32(blob[28:], 0) // boot_cpuid_phys
	binary.BigEndian.PutUint32(blob[32:], stringsSize)
	binary.BigEndian.PutUint32(blob[36:], structSize)
	copy(blob[structOff:], b.structure.Bytes())
	copy(blob[stringsOff:], b.strings.Bytes())
	return blob, nil
}

func (b *Builder) prop(name string, data []byte) {
	b.u32(tokProp)
	b.u32(uint32(len(data)))
	b.u32(b.nameOffset(name))
	b.structure.Write(data)
	b.pad()
}

func (b *Builder) nameOffset(name string) uint32 {
	if off, ok := b.stringOff[name]; ok {
		return off
	}
	off := uint32(b.strings.Len())
	b.strings.WriteString(name)
	b.strings.WriteByte(0)
	b.stringOff[name] = off
	return off
}

func (b *Builder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.structure.Write(tmp[:])
}

func (b *Builder) pad() {
	for b.structure.Len()%4 != 0 {
		b.structure.WriteByte(0)
	}
}
