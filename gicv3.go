package gic

import (
	"fmt"

	"github.com/tinyrange/gic/internal/trace"
	"github.com/tinyrange/gic/mmio"
)

// GICv3 distributor additions over the v2 offsets in gicv2.go.
const (
	gicdTyper2  = 0x000C // Interrupt Controller Type Register 2
	gicdIrouter = 0x6000 // Interrupt Routing Registers (64-bit each)
	gicdPidr2   = 0xFFE8 // Peripheral ID 2
	gicdPidr2V2 = 0x0FE8 // Peripheral ID 2, GICv2 frame layout

	// GICv3.1 extended SPI register banks.
	gicdIgrouprE    = 0x1000
	gicdIsenablerE  = 0x1200
	gicdIcenablerE  = 0x1400
	gicdIspendrE    = 0x1600
	gicdIcpendrE    = 0x1800
	gicdIsactiverE  = 0x1A00
	gicdIcactiverE  = 0x1C00
	gicdIpriorityrE = 0x2000
	gicdIcfgrE      = 0x3000
	gicdIrouterE    = 0x8000
)

// GICD_CTLR bits with affinity routing enabled (non-secure view).
const (
	gicdCtlrEnableGrp1A = 1 << 1
	gicdCtlrARE         = 1 << 4
	gicdCtlrRWP         = 1 << 31
)

// GICD_IROUTER interrupt routing mode: set for 1-of-N delivery, clear
// for delivery to the named affinity.
const irouterIRM = 1 << 31

// Redistributor register offsets. Each core owns one redistributor of
// two 64KB frames: RD_base for control, SGI_base for the private
// interrupt state.
const (
	gicrCtlr  = 0x0000 // Redistributor Control Register
	gicrIidr  = 0x0004 // Implementer Identification Register
	gicrTyper = 0x0008 // Redistributor Type Register (64-bit)
	gicrWaker = 0x0014 // Redistributor Wake Register

	gicrSGIOffset  = 0x10000
	gicrIgroupr0   = gicrSGIOffset + 0x0080 // Interrupt Group Register 0
	gicrIsenabler0 = gicrSGIOffset + 0x0100 // Interrupt Set-Enable Register 0
	gicrIcenabler0 = gicrSGIOffset + 0x0180 // Interrupt Clear-Enable Register 0
	gicrIspendr0   = gicrSGIOffset + 0x0200 // Interrupt Set-Pending Register 0
	gicrIcpendr0   = gicrSGIOffset + 0x0280 // Interrupt Clear-Pending Register 0
	gicrIsactiver0 = gicrSGIOffset + 0x0300 // Interrupt Set-Active Register 0
	gicrIcactiver0 = gicrSGIOffset + 0x0380 // Interrupt Clear-Active Register 0
	gicrIpriorityr = gicrSGIOffset + 0x0400 // Interrupt Priority Registers
	gicrIcfgr0     = gicrSGIOffset + 0x0C00 // Interrupt Configuration Register 0
)

// GICR_WAKER bits.
const (
	gicrWakerProcessorSleep = 1 << 1
	gicrWakerChildrenAsleep = 1 << 2
)

const (
	// GicV3DistributorSize and GicV3RedistributorStride are the spans
	// of the distributor frame and of one core's redistributor pair.
	GicV3DistributorSize     = 0x10000
	GicV3RedistributorStride = 0x20000

	// ICC_IAR1 carries the INTID in bits [23:0].
	iccIntidMask = 0xFFFFFF
)

// ICC_SGI1R field layout beyond the affinity fields in Affinity.
const (
	sgi1rIntidShift     = 24
	sgi1rIRM            = 1 << 40
	sgi1rRangeSelShift  = 44
	sgi1rTargetListMask = 0xFFFF
)

// Bounded spin counts for hardware handshakes. Both complete within a
// few register accesses on real controllers.
const (
	rwpSpinLimit   = 1 << 20
	wakerSpinLimit = 1 << 20
)

// GicV3Config carries the resources a GicV3 is constructed from.
type GicV3Config struct {
	// Distributor is the shared distributor frame.
	Distributor mmio.Space

	// Redistributors holds one Space per core, indexed by core number.
	// The slice length fixes the core count for the controller's
	// lifetime.
	Redistributors []mmio.Space

	// CPU is the system-register acknowledge/completion path for the
	// calling core.
	CPU CPUInterface

	// CoreID reports the index of the calling core. Defaults to a
	// single-core system (always 0).
	CoreID func() int

	// CoreAffinity maps a core index to its affinity address.
	// Defaults to flat Aff0 numbering within one cluster.
	CoreAffinity func(core int) Affinity
}

// GicV3 drives a version 3 Generic Interrupt Controller: shared
// peripheral interrupts through the distributor, private interrupts
// through the calling core's redistributor, and the acknowledge cycle
// through ICC system registers.
//
// The redistributor and CPU interface are per-core and need no cross-
// core synchronization. The distributor is shared; see GicV2 for the
// caller-side serialization contract, which is identical here.
type GicV3 struct {
	dist    mmio.Space
	redists []mmio.Space
	icc     CPUInterface

	coreID       func() int
	coreAffinity func(core int) Affinity

	numIntr uint32
}

// NewGicV3 validates cfg and returns the driver.
//
// The caller must guarantee the distributor and redistributor windows
// name valid, exclusively owned device memory for the driver's lifetime.
func NewGicV3(cfg GicV3Config) (*GicV3, error) {
	if cfg.Distributor == nil {
		return nil, fmt.Errorf("gic: v3 config missing distributor")
	}
	if len(cfg.Redistributors) == 0 {
		return nil, fmt.Errorf("gic: v3 config needs at least one redistributor")
	}
	if cfg.CPU == nil {
		return nil, fmt.Errorf("gic: v3 config missing CPU interface")
	}
	g := &GicV3{
		dist:         cfg.Distributor,
		redists:      cfg.Redistributors,
		icc:          cfg.CPU,
		coreID:       cfg.CoreID,
		coreAffinity: cfg.CoreAffinity,
		numIntr:      uint32(specialStart),
	}
	if g.coreID == nil {
		g.coreID = func() int { return 0 }
	}
	if g.coreAffinity == nil {
		g.coreAffinity = func(core int) Affinity { return Affinity{Aff0: uint8(core)} }
	}
	return g, nil
}

// NumRedistributors returns the number of cores the controller was
// constructed for.
func (g *GicV3) NumRedistributors() int { return len(g.redists) }

// NumInterrupts returns the number of non-extended INTIDs the hardware
// implements, valid after Init.
func (g *GicV3) NumInterrupts() uint32 { return g.numIntr }

func (g *GicV3) redist(core int) (mmio.Space, error) {
	if core < 0 || core >= len(g.redists) {
		return nil, fmt.Errorf("%w: core %d of %d", ErrCoreOutOfRange, core, len(g.redists))
	}
	return g.redists[core], nil
}

// waitRWP spins until the distributor has retired outstanding register
// writes (GICD_CTLR.RWP).
func (g *GicV3) waitRWP() error {
	for i := 0; i < rwpSpinLimit; i++ {
		if g.dist.Read32(gicdCtlr)&gicdCtlrRWP == 0 {
			return nil
		}
	}
	return fmt.Errorf("gic: distributor stuck with register write pending")
}

// Init performs the one-time, system-wide distributor setup: affinity
// routing on, SPIs disabled and defaulted, group 1 forwarding enabled.
func (g *GicV3) Init() error {
	typer := g.dist.Read32(gicdTyper)
	itLines := typer & 0x1F
	g.numIntr = (itLines + 1) * 32
	if g.numIntr > specialStart {
		g.numIntr = specialStart
	}
	trace.Writef("gicv3 init", "typer=%#x intids=%d", typer, g.numIntr)

	g.dist.Write32(gicdCtlr, 0)
	if err := g.waitRWP(); err != nil {
		return err
	}

	words := (g.numIntr + 31) / 32
	for i := uint32(1); i < words; i++ {
		g.dist.Write32(gicdIcenabler+uint64(i)*4, 0xFFFFFFFF)
		g.dist.Write32(gicdIcpendr+uint64(i)*4, 0xFFFFFFFF)
		g.dist.Write32(gicdIgroupr+uint64(i)*4, 0xFFFFFFFF)
	}
	for i := spiStart; i < g.numIntr; i += 4 {
		g.dist.Write32(gicdIpriorityr+uint64(i), 0x80808080)
	}
	for i := spiStart / 16; i < (g.numIntr+15)/16; i++ {
		g.dist.Write32(gicdIcfgr+uint64(i)*4, 0)
	}

	g.dist.Write32(gicdCtlr, gicdCtlrARE|gicdCtlrEnableGrp1A)
	return g.waitRWP()
}

// InitCPU wakes the core's redistributor, defaults its private
// interrupts, and enables the system-register CPU interface. Call it
// once on each participating core, after Init and before the core
// services interrupts.
func (g *GicV3) InitCPU(core int) error {
	r, err := g.redist(core)
	if err != nil {
		return err
	}

	// Wake handshake: clear ProcessorSleep, then wait for the
	// redistributor to report its interrupt group as awake.
	waker := r.Read32(gicrWaker)
	r.Write32(gicrWaker, waker&^uint32(gicrWakerProcessorSleep))
	woke := false
	for i := 0; i < wakerSpinLimit; i++ {
		if r.Read32(gicrWaker)&gicrWakerChildrenAsleep == 0 {
			woke = true
			break
		}
	}
	if !woke {
		return fmt.Errorf("gic: redistributor for core %d did not wake", core)
	}

	// Private interrupt defaults: everything off, group 1, medium
	// priority, PPIs level sensed.
	r.Write32(gicrIcenabler0, 0xFFFFFFFF)
	r.Write32(gicrIcpendr0, 0xFFFFFFFF)
	r.Write32(gicrIgroupr0, 0xFFFFFFFF)
	for i := uint64(0); i < 32; i += 4 {
		r.Write32(gicrIpriorityr+i, 0x80808080)
	}
	r.Write32(gicrIcfgr0+4, 0)

	g.icc.Enable()
	g.icc.SetPriorityMask(0xFF)
	trace.Writef("gicv3 init cpu", "core=%d", core)
	return nil
}

// bank describes where an IntId's configuration lives: which Space and
// at which lane within the packed register banks.
type bank struct {
	space mmio.Space
	// Base offsets of the enable/pending set+clear, priority, and
	// config banks within the space.
	senable, cenable uint64
	spend, cpend     uint64
	priority, cfg    uint64
	lane             uint32
}

// configBank resolves the register bank an operation on id must target:
// the calling core's redistributor for private interrupts, the
// distributor (base or extended banks) for shared ones.
func (g *GicV3) configBank(id IntId) (bank, error) {
	switch id.Class() {
	case ClassSGI, ClassPPI, ClassEPPI:
		r, err := g.redist(g.coreID())
		if err != nil {
			return bank{}, err
		}
		lane := id.Raw()
		if id.Class() == ClassEPPI {
			// Extended PPIs continue the SGI frame's lane numbering
			// at 32.
			lane = 32 + id.Index()
		}
		return bank{
			space:   r,
			senable: gicrIsenabler0, cenable: gicrIcenabler0,
			spend: gicrIspendr0, cpend: gicrIcpendr0,
			priority: gicrIpriorityr, cfg: gicrIcfgr0,
			lane: lane,
		}, nil
	case ClassSPI:
		return bank{
			space:   g.dist,
			senable: gicdIsenabler, cenable: gicdIcenabler,
			spend: gicdIspendr, cpend: gicdIcpendr,
			priority: gicdIpriorityr, cfg: gicdIcfgr,
			lane: id.Raw(),
		}, nil
	case ClassESPI:
		return bank{
			space:   g.dist,
			senable: gicdIsenablerE, cenable: gicdIcenablerE,
			spend: gicdIspendrE, cpend: gicdIcpendrE,
			priority: gicdIpriorityrE, cfg: gicdIcfgrE,
			lane: id.Index(),
		}, nil
	default:
		return bank{}, fmt.Errorf("%w: %v is not assignable", ErrClassUnsupported, id)
	}
}

// Enable allows the interrupt to be forwarded. Enable bits are
// write-1-to-set; siblings in the same word are untouched.
func (g *GicV3) Enable(id IntId) error {
	b, err := g.configBank(id)
	if err != nil {
		return err
	}
	off, mask := bitWord(b.senable, b.lane)
	b.space.Write32(off, mask)
	return nil
}

// Disable stops the interrupt from being forwarded.
func (g *GicV3) Disable(id IntId) error {
	b, err := g.configBank(id)
	if err != nil {
		return err
	}
	off, mask := bitWord(b.cenable, b.lane)
	b.space.Write32(off, mask)
	return nil
}

// SetPending marks the interrupt pending in software.
func (g *GicV3) SetPending(id IntId) error {
	b, err := g.configBank(id)
	if err != nil {
		return err
	}
	off, mask := bitWord(b.spend, b.lane)
	b.space.Write32(off, mask)
	return nil
}

// ClearPending retracts a pending interrupt.
func (g *GicV3) ClearPending(id IntId) error {
	b, err := g.configBank(id)
	if err != nil {
		return err
	}
	off, mask := bitWord(b.cpend, b.lane)
	b.space.Write32(off, mask)
	return nil
}

// SetPriority assigns the 8-bit priority; lower values are more urgent.
func (g *GicV3) SetPriority(id IntId, priority uint8) error {
	b, err := g.configBank(id)
	if err != nil {
		return err
	}
	writeByteLane(b.space, b.priority, b.lane, priority)
	return nil
}

// SetTriggerMode configures edge or level sensing. SGIs are rejected.
func (g *GicV3) SetTriggerMode(id IntId, mode TriggerMode) error {
	if id.Class() == ClassSGI {
		return fmt.Errorf("%w: %v is always edge-triggered", ErrClassUnsupported, id)
	}
	b, err := g.configBank(id)
	if err != nil {
		return err
	}
	writeCfgLane(b.space, b.cfg, b.lane, mode)
	return nil
}

// SetPriorityMask sets the calling core's delivery threshold (ICC_PMR).
func (g *GicV3) SetPriorityMask(priority uint8) {
	g.icc.SetPriorityMask(priority)
}

// SetRoute routes a shared interrupt to exactly the core at the given
// affinity, through the 64-bit GICD_IROUTER bank. Only SPIs and
// extended SPIs are routable.
func (g *GicV3) SetRoute(id IntId, aff Affinity) error {
	off, err := g.routerOffset(id)
	if err != nil {
		return err
	}
	g.dist.Write64(off, aff.routerValue())
	return nil
}

// SetRouteAll configures 1-of-N delivery for a shared interrupt: the
// distributor picks any participating core.
func (g *GicV3) SetRouteAll(id IntId) error {
	off, err := g.routerOffset(id)
	if err != nil {
		return err
	}
	g.dist.Write64(off, irouterIRM)
	return nil
}

func (g *GicV3) routerOffset(id IntId) (uint64, error) {
	switch id.Class() {
	case ClassSPI:
		return gicdIrouter + uint64(id.Raw())*8, nil
	case ClassESPI:
		return gicdIrouterE + uint64(id.Index())*8, nil
	default:
		return 0, fmt.Errorf("%w: %v cannot be routed", ErrClassUnsupported, id)
	}
}

// SendSGI raises a software-generated interrupt through ICC_SGI1R.
func (g *GicV3) SendSGI(id IntId, target SGITarget) error {
	if id.Class() != ClassSGI {
		return fmt.Errorf("%w: %v is not an SGI", ErrClassUnsupported, id)
	}
	value := uint64(id.Raw()) << sgi1rIntidShift
	switch target.Mode {
	case SGITargetList:
		value |= target.Affinity.sgiValue()
		value |= uint64(target.TargetList) & sgi1rTargetListMask
	case SGITargetAllOthers:
		value |= sgi1rIRM
	case SGITargetSelf:
		aff := g.coreAffinity(g.coreID())
		value |= aff.sgiValue()
		value |= uint64(aff.Aff0/16) << sgi1rRangeSelShift
		value |= 1 << (aff.Aff0 % 16)
	default:
		return fmt.Errorf("gic: unknown SGI target mode %d", target.Mode)
	}
	trace.Writef("gicv3 sgi", "sgi1r=%#x", value)
	g.icc.SendSGI(value)
	return nil
}

// Acknowledge reads ICC_IAR1 on the calling core, returning the pending
// interrupt and marking it active. With nothing pending it returns
// IntIdNone.
func (g *GicV3) Acknowledge() IntId {
	raw := g.icc.Acknowledge() & iccIntidMask
	id, err := NewIntId(raw)
	if err != nil {
		// An INTID outside every range can only be a misbehaving
		// controller; treat it as spurious.
		return IntIdNone
	}
	return id
}

// EndInterrupt writes ICC_EOIR1, deactivating the interrupt. Special
// INTIDs, including IntIdNone, are ignored.
func (g *GicV3) EndInterrupt(id IntId) {
	if id.IsSpecial() {
		return
	}
	g.icc.EndInterrupt(id.Raw())
}

var _ InterruptController = (*GicV3)(nil)
