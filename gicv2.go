package gic

import (
	"fmt"

	"github.com/tinyrange/gic/internal/trace"
	"github.com/tinyrange/gic/mmio"
)

// GICv2 distributor register offsets.
const (
	gicdCtlr       = 0x0000 // Distributor Control Register
	gicdTyper      = 0x0004 // Interrupt Controller Type Register
	gicdIidr       = 0x0008 // Distributor Implementer Identification Register
	gicdIgroupr    = 0x0080 // Interrupt Group Registers
	gicdIsenabler  = 0x0100 // Interrupt Set-Enable Registers
	gicdIcenabler  = 0x0180 // Interrupt Clear-Enable Registers
	gicdIspendr    = 0x0200 // Interrupt Set-Pending Registers
	gicdIcpendr    = 0x0280 // Interrupt Clear-Pending Registers
	gicdIsactiver  = 0x0300 // Interrupt Set-Active Registers
	gicdIcactiver  = 0x0380 // Interrupt Clear-Active Registers
	gicdIpriorityr = 0x0400 // Interrupt Priority Registers
	gicdItargetsr  = 0x0800 // Interrupt Processor Targets Registers
	gicdIcfgr      = 0x0C00 // Interrupt Configuration Registers
	gicdSgir       = 0x0F00 // Software Generated Interrupt Register
)

// GICv2 CPU interface register offsets. These registers are banked per
// core: each core sees its own copy at the same address.
const (
	giccCtlr = 0x0000 // CPU Interface Control Register
	giccPmr  = 0x0004 // Interrupt Priority Mask Register
	giccBpr  = 0x0008 // Binary Point Register
	giccIar  = 0x000C // Interrupt Acknowledge Register
	giccEoir = 0x0010 // End of Interrupt Register
	giccRpr  = 0x0014 // Running Priority Register
	giccIidr = 0x00FC // CPU Interface Identification Register
)

const (
	// GicV2DistributorSize and GicV2CPUInterfaceSize are the spans of
	// the two GICv2 register frames.
	GicV2DistributorSize  = 0x1000
	GicV2CPUInterfaceSize = 0x2000

	// A GICv2 addresses at most eight cores through its flat CPU masks.
	gicV2MaxCores = 8

	// IAR/EOIR carry the INTID in bits [9:0].
	giccIntidMask = 0x3FF
)

// GICD_SGIR field layout.
const (
	sgirTargetListShift = 16
	sgirFilterList      = 0 << 24
	sgirFilterAllOthers = 1 << 24
	sgirFilterSelf      = 2 << 24
	sgirIntidMask       = 0xF
)

// GicV2 drives a version 2 Generic Interrupt Controller through its
// distributor and CPU interface register frames.
//
// The distributor is shared by all cores. Enable and pending registers
// are write-1-to-set/clear, so concurrent configuration of different
// interrupts from different cores is safe; concurrent configuration of
// the same interrupt is not arbitrated here and callers must serialize
// it themselves.
type GicV2 struct {
	dist mmio.Space
	cpu  mmio.Space

	// Number of implemented INTIDs, read from GICD_TYPER at Init.
	numIntr uint32
}

// NewGicV2 returns a driver over the given distributor and CPU interface
// register windows.
func NewGicV2(dist, cpu mmio.Space) *GicV2 {
	return &GicV2{dist: dist, cpu: cpu, numIntr: uint32(specialStart)}
}

// NewGicV2Raw constructs the driver from raw base addresses.
//
// The caller must guarantee both addresses name valid, exclusively owned
// device-memory mappings of the distributor and CPU interface frames for
// the lifetime of the driver. No other instance may alias them.
func NewGicV2Raw(distBase, cpuBase uintptr) *GicV2 {
	return NewGicV2(
		mmio.NewRegion(distBase, GicV2DistributorSize),
		mmio.NewRegion(cpuBase, GicV2CPUInterfaceSize),
	)
}

// NumInterrupts returns the number of INTIDs the hardware implements,
// valid after Init.
func (g *GicV2) NumInterrupts() uint32 { return g.numIntr }

// Init performs the one-time distributor setup: everything disabled and
// cleared, sane SPI defaults, then forwarding enabled. Call it once,
// system-wide, before any core services interrupts.
func (g *GicV2) Init() error {
	typer := g.dist.Read32(gicdTyper)
	itLines := typer & 0x1F
	g.numIntr = (itLines + 1) * 32
	if g.numIntr > specialStart {
		g.numIntr = specialStart
	}
	trace.Writef("gicv2 init", "typer=%#x intids=%d", typer, g.numIntr)

	g.dist.Write32(gicdCtlr, 0)

	words := (g.numIntr + 31) / 32
	for i := uint32(1); i < words; i++ {
		g.dist.Write32(gicdIcenabler+uint64(i)*4, 0xFFFFFFFF)
		g.dist.Write32(gicdIcpendr+uint64(i)*4, 0xFFFFFFFF)
		g.dist.Write32(gicdIgroupr+uint64(i)*4, 0)
	}

	// SPI defaults: medium priority, routed to core 0, level sensed.
	for i := spiStart; i < g.numIntr; i += 4 {
		g.dist.Write32(gicdIpriorityr+uint64(i), 0x80808080)
		g.dist.Write32(gicdItargetsr+uint64(i), 0x01010101)
	}
	for i := spiStart / 16; i < (g.numIntr+15)/16; i++ {
		g.dist.Write32(gicdIcfgr+uint64(i)*4, 0)
	}

	g.dist.Write32(gicdCtlr, 1)
	return nil
}

// InitCPU prepares the calling core's banked CPU interface: priority mask
// open, no preemption grouping, interface enabled. The core argument is
// validated against the eight cores a GICv2 can address; the hardware
// banks the registers by the accessing core.
func (g *GicV2) InitCPU(core int) error {
	if core < 0 || core >= gicV2MaxCores {
		return fmt.Errorf("%w: core %d of max %d", ErrCoreOutOfRange, core, gicV2MaxCores)
	}
	g.cpu.Write32(giccPmr, 0xFF)
	g.cpu.Write32(giccBpr, 0)
	g.cpu.Write32(giccCtlr, 1)
	trace.Writef("gicv2 init cpu", "core=%d", core)
	return nil
}

// checkConfigurable rejects IntIds a GICv2 cannot configure: the special
// range and the GICv3-only extended ranges.
func (g *GicV2) checkConfigurable(id IntId) error {
	switch id.Class() {
	case ClassSpecial:
		return fmt.Errorf("%w: %v is not assignable", ErrClassUnsupported, id)
	case ClassEPPI, ClassESPI:
		return fmt.Errorf("%w: %v requires GICv3", ErrClassUnsupported, id)
	default:
		return nil
	}
}

// Enable sets the interrupt's bit in GICD_ISENABLER. The register is
// write-1-to-set, so sibling interrupts in the same word are untouched.
func (g *GicV2) Enable(id IntId) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	off, mask := bitWord(gicdIsenabler, id.Raw())
	g.dist.Write32(off, mask)
	return nil
}

// Disable clears the interrupt's bit through GICD_ICENABLER.
func (g *GicV2) Disable(id IntId) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	off, mask := bitWord(gicdIcenabler, id.Raw())
	g.dist.Write32(off, mask)
	return nil
}

// SetPending marks the interrupt pending in software, through
// GICD_ISPENDR.
func (g *GicV2) SetPending(id IntId) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	off, mask := bitWord(gicdIspendr, id.Raw())
	g.dist.Write32(off, mask)
	return nil
}

// ClearPending retracts a pending interrupt through GICD_ICPENDR.
func (g *GicV2) ClearPending(id IntId) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	off, mask := bitWord(gicdIcpendr, id.Raw())
	g.dist.Write32(off, mask)
	return nil
}

// SetPriority writes the interrupt's byte in GICD_IPRIORITYR. Lower
// values are more urgent. The register is byte-addressable, so the
// read-modify-write touches only this interrupt's lane.
func (g *GicV2) SetPriority(id IntId, priority uint8) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	writeByteLane(g.dist, gicdIpriorityr, id.Raw(), priority)
	return nil
}

// SetTriggerMode configures edge or level sensing in GICD_ICFGR. SGIs
// are edge-triggered by definition and are rejected.
func (g *GicV2) SetTriggerMode(id IntId, mode TriggerMode) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	if id.Class() == ClassSGI {
		return fmt.Errorf("%w: %v is always edge-triggered", ErrClassUnsupported, id)
	}
	writeCfgLane(g.dist, gicdIcfgr, id.Raw(), mode)
	return nil
}

// SetTargetCPUs routes an SPI to the cores in mask (bit n = core n),
// through the interrupt's byte in GICD_ITARGETSR. Private interrupts
// have fixed targets and are rejected.
func (g *GicV2) SetTargetCPUs(id IntId, mask uint8) error {
	if err := g.checkConfigurable(id); err != nil {
		return err
	}
	if id.Class() != ClassSPI {
		return fmt.Errorf("%w: %v cannot be retargeted", ErrClassUnsupported, id)
	}
	writeByteLane(g.dist, gicdItargetsr, id.Raw(), mask)
	return nil
}

// SetPriorityMask sets the calling core's delivery threshold (GICC_PMR).
// Only interrupts more urgent than the mask are signalled.
func (g *GicV2) SetPriorityMask(priority uint8) {
	g.cpu.Write32(giccPmr, uint32(priority))
}

// SendSGI raises a software-generated interrupt through GICD_SGIR.
func (g *GicV2) SendSGI(id IntId, target SGITarget) error {
	if id.Class() != ClassSGI {
		return fmt.Errorf("%w: %v is not an SGI", ErrClassUnsupported, id)
	}
	var value uint32
	switch target.Mode {
	case SGITargetList:
		value = sgirFilterList | uint32(target.CPUMask)<<sgirTargetListShift
	case SGITargetAllOthers:
		value = sgirFilterAllOthers
	case SGITargetSelf:
		value = sgirFilterSelf
	default:
		return fmt.Errorf("gic: unknown SGI target mode %d", target.Mode)
	}
	value |= id.Raw() & sgirIntidMask
	trace.Writef("gicv2 sgi", "sgir=%#x", value)
	g.dist.Write32(gicdSgir, value)
	return nil
}

// Acknowledge reads GICC_IAR, returning the pending interrupt and
// marking it active. With nothing pending it returns IntIdNone. For an
// edge-triggered source this read is what clears the pending state.
func (g *GicV2) Acknowledge() IntId {
	iar := g.cpu.Read32(giccIar)
	return IntId(iar & giccIntidMask)
}

// EndInterrupt writes GICC_EOIR, deactivating the interrupt and allowing
// it to be delivered again. Special INTIDs, including the IntIdNone
// result of an idle Acknowledge, are ignored.
func (g *GicV2) EndInterrupt(id IntId) {
	if id.IsSpecial() {
		return
	}
	g.cpu.Write32(giccEoir, id.Raw())
}

var _ InterruptController = (*GicV2)(nil)

// bitWord locates the word and bit for registers that pack one bit per
// interrupt, 32 interrupts per 32-bit word.
func bitWord(base uint64, intid uint32) (off uint64, mask uint32) {
	return base + uint64(intid/32)*4, 1 << (intid % 32)
}

// writeByteLane read-modify-writes one interrupt's byte in a register
// bank that packs four interrupts per word, leaving siblings untouched.
func writeByteLane(s mmio.Space, base uint64, intid uint32, value uint8) {
	off := base + uint64(intid/4)*4
	shift := (intid % 4) * 8
	word := s.Read32(off)
	word = word&^(0xFF<<shift) | uint32(value)<<shift
	s.Write32(off, word)
}

// writeCfgLane read-modify-writes one interrupt's two-bit field in a
// configuration register bank, 16 interrupts per word.
func writeCfgLane(s mmio.Space, base uint64, intid uint32, mode TriggerMode) {
	off := base + uint64(intid/16)*4
	shift := (intid % 16) * cfgBitsPerIntr
	word := s.Read32(off)
	word = word&^(0b11<<shift) | mode.cfgBits()<<shift
	s.Write32(off, word)
}
