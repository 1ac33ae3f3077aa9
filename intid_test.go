package gic

import (
	"errors"
	"testing"
)

func TestNewIntIdRanges(t *testing.T) {
	cases := []struct {
		raw   uint32
		ok    bool
		class Class
	}{
		{0, true, ClassSGI},
		{15, true, ClassSGI},
		{16, true, ClassPPI},
		{31, true, ClassPPI},
		{32, true, ClassSPI},
		{1019, true, ClassSPI},
		{1020, true, ClassSpecial},
		{1023, true, ClassSpecial},
		{1024, false, 0},
		{1055, false, 0},
		{1056, true, ClassEPPI},
		{1119, true, ClassEPPI},
		{1120, false, 0},
		{4095, false, 0},
		{4096, true, ClassESPI},
		{5119, true, ClassESPI},
		{5120, false, 0},
		{0xFFFFFFFF, false, 0},
	}
	for _, c := range cases {
		id, err := NewIntId(c.raw)
		if !c.ok {
			if err == nil {
				t.Fatalf("NewIntId(%d) accepted, want error", c.raw)
			}
			if !errors.Is(err, ErrBadIntId) {
				t.Fatalf("NewIntId(%d) error %v, want ErrBadIntId", c.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewIntId(%d): %v", c.raw, err)
		}
		if id.Class() != c.class {
			t.Fatalf("NewIntId(%d).Class()=%v, want %v", c.raw, id.Class(), c.class)
		}
		if id.Raw() != c.raw {
			t.Fatalf("NewIntId(%d).Raw()=%d", c.raw, id.Raw())
		}
	}
}

func TestClassConstructors(t *testing.T) {
	cases := []struct {
		name string
		fn   func(uint32) (IntId, error)
		n    uint32
		raw  uint32
		max  uint32
	}{
		{"SGI", NewSGI, 7, 7, 16},
		{"PPI", NewPPI, 11, 27, 16},
		{"SPI", NewSPI, 8, 40, 988},
		{"EPPI", NewEPPI, 3, 1059, 64},
		{"ESPI", NewESPI, 100, 4196, 1024},
	}
	for _, c := range cases {
		id, err := c.fn(c.n)
		if err != nil {
			t.Fatalf("New%s(%d): %v", c.name, c.n, err)
		}
		if id.Raw() != c.raw {
			t.Fatalf("New%s(%d)=%d, want %d", c.name, c.n, id.Raw(), c.raw)
		}
		if id.Index() != c.n {
			t.Fatalf("New%s(%d).Index()=%d", c.name, c.n, id.Index())
		}
		if _, err := c.fn(c.max); !errors.Is(err, ErrBadIntId) {
			t.Fatalf("New%s(%d) error %v, want ErrBadIntId", c.name, c.max, err)
		}
	}
}

func TestTranslateIRQ(t *testing.T) {
	id, err := TranslateIRQ(ClassSPI, 8)
	if err != nil {
		t.Fatalf("TranslateIRQ: %v", err)
	}
	if id.Raw() != 40 {
		t.Fatalf("TranslateIRQ(SPI, 8)=%d, want 40", id.Raw())
	}
	if _, err := TranslateIRQ(ClassSpecial, 0); !errors.Is(err, ErrBadIntId) {
		t.Fatalf("TranslateIRQ(special) error %v, want ErrBadIntId", err)
	}
}

func TestIntIdPredicates(t *testing.T) {
	sgi, _ := NewSGI(0)
	ppi, _ := NewPPI(0)
	spi, _ := NewSPI(0)
	eppi, _ := NewEPPI(0)
	espi, _ := NewESPI(0)

	for _, id := range []IntId{sgi, ppi, eppi} {
		if !id.IsPrivate() {
			t.Fatalf("%v.IsPrivate()=false, want true", id)
		}
	}
	for _, id := range []IntId{spi, espi, IntIdNone} {
		if id.IsPrivate() {
			t.Fatalf("%v.IsPrivate()=true, want false", id)
		}
	}
	if !IntIdNone.IsSpecial() {
		t.Fatalf("IntIdNone.IsSpecial()=false")
	}
	if spi.IsSpecial() {
		t.Fatalf("%v.IsSpecial()=true", spi)
	}
}

func TestIntIdString(t *testing.T) {
	id, _ := NewSPI(8)
	if got := id.String(); got != "SPI 8" {
		t.Fatalf("String()=%q, want %q", got, "SPI 8")
	}
	if got := IntIdNone.String(); got != "special INTID 1023" {
		t.Fatalf("String()=%q, want %q", got, "special INTID 1023")
	}
	eppi, _ := NewEPPI(2)
	if got := eppi.String(); got != "EPPI 2" {
		t.Fatalf("String()=%q, want %q", got, "EPPI 2")
	}
}

func TestTriggerModeCfgBits(t *testing.T) {
	if Edge.cfgBits() != cfgEdge {
		t.Fatalf("Edge.cfgBits()=%#x", Edge.cfgBits())
	}
	if Level.cfgBits() != cfgLevel {
		t.Fatalf("Level.cfgBits()=%#x", Level.cfgBits())
	}
	if triggerFromCfgBits(cfgEdge) != Edge || triggerFromCfgBits(cfgLevel) != Level {
		t.Fatalf("triggerFromCfgBits does not round-trip")
	}
	if Edge.String() != "edge" || Level.String() != "level" {
		t.Fatalf("TriggerMode strings: %q, %q", Edge, Level)
	}
}
