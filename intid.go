// Package gic drives the ARM Generic Interrupt Controller, versions 2
// and 3, from bare-metal firmware, hypervisors, and kernels.
//
// The package validates interrupt identifiers up front so that every
// controller operation works on an IntId that is already known to name a
// real interrupt. The only unchecked surface is handing a raw register
// base address to a constructor; see mmio.NewRegion.
package gic

import "fmt"

// Class partitions the GIC interrupt-number space.
type Class int

const (
	// ClassSGI is a software-generated interrupt, used for inter-core
	// signalling. SGIs are raised by a write to an SGI register, never
	// by a peripheral.
	ClassSGI Class = iota
	// ClassPPI is a peripheral interrupt private to one core, such as a
	// per-core timer.
	ClassPPI
	// ClassSPI is a shared peripheral interrupt deliverable to any
	// connected core.
	ClassSPI
	// ClassSpecial covers the reserved INTIDs 1020-1023. They are never
	// assignable; 1023 is the "no pending interrupt" acknowledge result.
	ClassSpecial
	// ClassEPPI is an extended private peripheral interrupt (GICv3.1).
	ClassEPPI
	// ClassESPI is an extended shared peripheral interrupt (GICv3.1).
	ClassESPI
)

func (c Class) String() string {
	switch c {
	case ClassSGI:
		return "SGI"
	case ClassPPI:
		return "PPI"
	case ClassSPI:
		return "SPI"
	case ClassSpecial:
		return "special"
	case ClassEPPI:
		return "EPPI"
	case ClassESPI:
		return "ESPI"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// INTID space boundaries. Each range is defined by the GIC architecture
// and is the same on every implementation.
const (
	sgiStart     uint32 = 0
	ppiStart     uint32 = 16
	spiStart     uint32 = 32
	specialStart uint32 = 1020
	specialEnd   uint32 = 1024
	eppiStart    uint32 = 1056
	eppiEnd      uint32 = 1120
	espiStart    uint32 = 4096
	espiEnd      uint32 = 5120
)

// IntId is a validated GIC interrupt identifier.
//
// A value constructed through this package always falls inside one of the
// defined INTID ranges. Equality and ordering follow the raw number.
type IntId uint32

// IntIdNone is the acknowledge result when no interrupt is pending.
const IntIdNone IntId = 1023

// NewIntId validates raw as an absolute INTID.
func NewIntId(raw uint32) (IntId, error) {
	switch {
	case raw < specialEnd:
		return IntId(raw), nil
	case raw >= eppiStart && raw < eppiEnd:
		return IntId(raw), nil
	case raw >= espiStart && raw < espiEnd:
		return IntId(raw), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadIntId, raw)
	}
}

// NewSGI returns the INTID of software-generated interrupt n (0-15).
func NewSGI(n uint32) (IntId, error) {
	if n >= ppiStart-sgiStart {
		return 0, fmt.Errorf("%w: SGI %d", ErrBadIntId, n)
	}
	return IntId(sgiStart + n), nil
}

// NewPPI returns the INTID of private peripheral interrupt n (0-15).
func NewPPI(n uint32) (IntId, error) {
	if n >= spiStart-ppiStart {
		return 0, fmt.Errorf("%w: PPI %d", ErrBadIntId, n)
	}
	return IntId(ppiStart + n), nil
}

// NewSPI returns the INTID of shared peripheral interrupt n (0-987).
func NewSPI(n uint32) (IntId, error) {
	if n >= specialStart-spiStart {
		return 0, fmt.Errorf("%w: SPI %d", ErrBadIntId, n)
	}
	return IntId(spiStart + n), nil
}

// NewEPPI returns the INTID of extended private peripheral interrupt n.
func NewEPPI(n uint32) (IntId, error) {
	if n >= eppiEnd-eppiStart {
		return 0, fmt.Errorf("%w: EPPI %d", ErrBadIntId, n)
	}
	return IntId(eppiStart + n), nil
}

// NewESPI returns the INTID of extended shared peripheral interrupt n.
func NewESPI(n uint32) (IntId, error) {
	if n >= espiEnd-espiStart {
		return 0, fmt.Errorf("%w: ESPI %d", ErrBadIntId, n)
	}
	return IntId(espiStart + n), nil
}

// TranslateIRQ converts a class-relative interrupt number to an absolute
// INTID, mirroring how platform code numbers its interrupt sources.
func TranslateIRQ(class Class, n uint32) (IntId, error) {
	switch class {
	case ClassSGI:
		return NewSGI(n)
	case ClassPPI:
		return NewPPI(n)
	case ClassSPI:
		return NewSPI(n)
	case ClassEPPI:
		return NewEPPI(n)
	case ClassESPI:
		return NewESPI(n)
	default:
		return 0, fmt.Errorf("%w: class %v has no assignable interrupts", ErrBadIntId, class)
	}
}

// Raw returns the absolute INTID.
func (id IntId) Raw() uint32 { return uint32(id) }

// Class returns the range this INTID belongs to.
func (id IntId) Class() Class {
	raw := uint32(id)
	switch {
	case raw < ppiStart:
		return ClassSGI
	case raw < spiStart:
		return ClassPPI
	case raw < specialStart:
		return ClassSPI
	case raw < specialEnd:
		return ClassSpecial
	case raw >= espiStart && raw < espiEnd:
		return ClassESPI
	default:
		return ClassEPPI
	}
}

// Index returns the class-relative number, e.g. 0-15 for an SGI whatever
// its absolute encoding.
func (id IntId) Index() uint32 {
	raw := uint32(id)
	switch id.Class() {
	case ClassSGI:
		return raw - sgiStart
	case ClassPPI:
		return raw - ppiStart
	case ClassSPI:
		return raw - spiStart
	case ClassSpecial:
		return raw - specialStart
	case ClassEPPI:
		return raw - eppiStart
	default:
		return raw - espiStart
	}
}

// IsPrivate reports whether the interrupt is private to a core, i.e. an
// SGI, PPI, or extended PPI.
func (id IntId) IsPrivate() bool {
	c := id.Class()
	return c == ClassSGI || c == ClassPPI || c == ClassEPPI
}

// IsSpecial reports whether the INTID is in the reserved 1020-1023 range.
func (id IntId) IsSpecial() bool { return id.Class() == ClassSpecial }

func (id IntId) String() string {
	if id.Class() == ClassSpecial {
		return fmt.Sprintf("special INTID %d", uint32(id))
	}
	return fmt.Sprintf("%v %d", id.Class(), id.Index())
}
