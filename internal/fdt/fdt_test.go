package fdt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestBuildHeader(t *testing.T) {
	b := New()
	b.Begin("")
	b.PropString("compatible", "linux,dummy-virt")
	b.End()

	blob, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := binary.BigEndian.Uint32(blob[0:]); got != magic {
		t.Fatalf("magic=%#x, want %#x", got, uint32(magic))
	}
	if got := binary.BigEndian.Uint32(blob[4:]); got != uint32(len(blob)) {
		t.Fatalf("totalsize=%d, want %d", got, len(blob))
	}
	if got := binary.BigEndian.Uint32(blob[20:]); got != version {
		t.Fatalf("version=%d, want %d", got, uint32(version))
	}

	structOff := binary.BigEndian.Uint32(blob[8:])
	if got := binary.BigEndian.Uint32(blob[structOff:]); got != tokBeginNode {
		t.Fatalf("first token=%#x, want FDT_BEGIN_NODE", got)
	}

	stringsOff := binary.BigEndian.Uint32(blob[12:])
	stringsSize := binary.BigEndian.Uint32(blob[32:])
	names := blob[stringsOff : stringsOff+stringsSize]
	if !bytes.Contains(names, []byte("compatible\x00")) {
		t.Fatalf("strings block missing property name: %q", names)
	}
}

func TestBuildDeduplicatesNames(t *testing.T) {
	b := New()
	b.Begin("")
	b.Begin("a")
	b.PropU32("reg", 1)
	b.End()
	b.Begin("b")
	b.PropU32("reg", 2)
	b.End()
	b.End()

	blob, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stringsOff := binary.BigEndian.Uint32(blob[12:])
	stringsSize := binary.BigEndian.Uint32(blob[32:])
	names := blob[stringsOff : stringsOff+stringsSize]
	if got := bytes.Count(names, []byte("reg\x00")); got != 1 {
		t.Fatalf("%d copies of name %q, want 1", got, "reg")
	}
}

func TestBuildRejectsUnbalancedNodes(t *testing.T) {
	b := New()
	b.Begin("")
	b.Begin("child")
	if _, err := b.Build(); err == nil {
		t.Fatalf("Build accepted unbalanced nodes")
	}
}

func TestPropertyEncoding(t *testing.T) {
	b := New()
	b.Begin("")
	b.PropU64("reg", 0x08000000, 0x10000)
	b.PropEmpty("interrupt-controller")
	b.End()

	blob, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The 64-bit cells are big-endian in the structure block.
	want := []byte{0, 0, 0, 0, 0x08, 0, 0, 0}
	if !bytes.Contains(blob, want) {
		t.Fatalf("blob missing big-endian reg value")
	}
}
