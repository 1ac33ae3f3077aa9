// Package gicsim models GIC register files in software.
//
// The models implement mmio.Space with the semantics the hardware gives
// each register: enable, pending, and active words are write-1-to-set or
// write-1-to-clear, priority and target bytes are plain storage, an IAR
// read claims the highest-priority pending interrupt. They back the
// driver tests in the root package and can serve as the register end of
// a VMM interrupt-controller device model.
//
// The models track interrupt numbers as raw INTIDs; identifier
// validation belongs to the driver above them.
package gicsim

import "sync"

// Register offsets within the distributor frame.
const (
	gicdCtlr       = 0x0000
	gicdTyper      = 0x0004
	gicdIidr       = 0x0008
	gicdIgroupr    = 0x0080
	gicdIsenabler  = 0x0100
	gicdIcenabler  = 0x0180
	gicdIspendr    = 0x0200
	gicdIcpendr    = 0x0280
	gicdIsactiver  = 0x0300
	gicdIcactiver  = 0x0380
	gicdIpriorityr = 0x0400
	gicdItargetsr  = 0x0800
	gicdIcfgr      = 0x0C00
	gicdSgir       = 0x0F00
	gicdIrouter    = 0x6000
	gicdPidr2      = 0xFFE8
	gicdPidr2V2    = 0x0FE8

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

const (
	gicArchRevGICv2 = 0x20
	gicArchRevGICv3 = 0x30

	// ARM implementer ID reported by IIDR.
	gicImplementerArm = 0x0200043B

	spiBase    = 32
	numIntids  = 1020
	numEspis   = 1024
	intidNone  = 1023
	irouterIRM = 1 << 31
)

// wordSet is one bit of state per INTID, 32 per word.
type wordSet [32]uint32

func (w *wordSet) get(intid uint32) bool {
	return w[intid/32]&(1<<(intid%32)) != 0
}

func (w *wordSet) set(intid uint32) {
	w[intid/32] |= 1 << (intid % 32)
}

func (w *wordSet) clear(intid uint32) {
	w[intid/32] &^= 1 << (intid % 32)
}

// Distributor models the shared GICD register frame, for either
// controller version. Version selects the TYPER/PIDR2 identification,
// GICv2 target-byte delivery versus GICv3 affinity routing, and whether
// SGIR writes are honored.
type Distributor struct {
	mu *sync.Mutex

	version int
	cpus    int

	// AccessCPU is the core the next register access is attributed to.
	// Real hardware knows the accessing core; tests set this before
	// writing SGIR with a "self" or "all others" filter.
	AccessCPU int

	ctlr    uint32
	group   wordSet
	enabled wordSet
	pending wordSet
	active  wordSet
	prio    [numIntids]uint8
	targets [numIntids]uint8
	cfg     [64]uint32
	router  [numIntids]uint64

	// GICv3.1 extended SPI banks.
	groupE   wordSet
	enabledE wordSet
	pendingE wordSet
	activeE  wordSet
	prioE    [numEspis]uint8
	cfgE     [64]uint32
	routerE  [numEspis]uint64

	// sgiDeliver pends an SGI on a target core; wired up by V2 and V3.
	sgiDeliver func(core int, intid uint32)
}

func newDistributor(version, cpus int, mu *sync.Mutex) *Distributor {
	return &Distributor{mu: mu, version: version, cpus: cpus}
}

func (d *Distributor) typer() uint32 {
	itLines := uint32((numIntids+31)/32 - 1)
	cpuNum := uint32(d.cpus-1) << 5
	return itLines | cpuNum
}

func (d *Distributor) Read32(off uint64) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case off == gicdCtlr:
		// RWP reads as clear: the model retires writes instantly.
		return d.ctlr
	case off == gicdTyper:
		return d.typer()
	case off == gicdIidr:
		return gicImplementerArm
	case off == gicdPidr2V2 && d.version == 2:
		return gicArchRevGICv2
	case off == gicdPidr2 && d.version == 3:
		return gicArchRevGICv3
	case off >= gicdIgroupr && off < gicdIgroupr+0x80:
		return d.group[(off-gicdIgroupr)/4]
	case off >= gicdIsenabler && off < gicdIsenabler+0x80:
		return d.enabled[(off-gicdIsenabler)/4]
	case off >= gicdIcenabler && off < gicdIcenabler+0x80:
		return d.enabled[(off-gicdIcenabler)/4]
	case off >= gicdIspendr && off < gicdIspendr+0x80:
		return d.pending[(off-gicdIspendr)/4]
	case off >= gicdIcpendr && off < gicdIcpendr+0x80:
		return d.pending[(off-gicdIcpendr)/4]
	case off >= gicdIsactiver && off < gicdIsactiver+0x80:
		return d.active[(off-gicdIsactiver)/4]
	case off >= gicdIcactiver && off < gicdIcactiver+0x80:
		return d.active[(off-gicdIcactiver)/4]
	case off >= gicdIpriorityr && off < gicdIpriorityr+numIntids:
		return d.prioWord(d.prio[:], off-gicdIpriorityr)
	case off >= gicdItargetsr && off < gicdItargetsr+numIntids:
		return d.prioWord(d.targets[:], off-gicdItargetsr)
	case off >= gicdIcfgr && off < gicdIcfgr+0x100:
		return d.cfg[(off-gicdIcfgr)/4]
	case off >= gicdIsenablerE && off < gicdIsenablerE+0x80:
		return d.enabledE[(off-gicdIsenablerE)/4]
	case off >= gicdIpriorityrE && off < gicdIpriorityrE+numEspis:
		return d.prioWord(d.prioE[:], off-gicdIpriorityrE)
	case off >= gicdIcfgrE && off < gicdIcfgrE+0x100:
		return d.cfgE[(off-gicdIcfgrE)/4]
	default:
		return 0
	}
}

func (d *Distributor) Write32(off uint64, value uint32) {
	d.mu.Lock()

	switch {
	case off == gicdCtlr:
		d.ctlr = value &^ gicdCtlrRWPBit
	case off >= gicdIgroupr && off < gicdIgroupr+0x80:
		d.group[(off-gicdIgroupr)/4] = value
	case off >= gicdIsenabler && off < gicdIsenabler+0x80:
		d.enabled[(off-gicdIsenabler)/4] |= value
	case off >= gicdIcenabler && off < gicdIcenabler+0x80:
		d.enabled[(off-gicdIcenabler)/4] &^= value
	case off >= gicdIspendr && off < gicdIspendr+0x80:
		d.pending[(off-gicdIspendr)/4] |= value
	case off >= gicdIcpendr && off < gicdIcpendr+0x80:
		d.pending[(off-gicdIcpendr)/4] &^= value
	case off >= gicdIsactiver && off < gicdIsactiver+0x80:
		d.active[(off-gicdIsactiver)/4] |= value
	case off >= gicdIcactiver && off < gicdIcactiver+0x80:
		d.active[(off-gicdIcactiver)/4] &^= value
	case off >= gicdIpriorityr && off < gicdIpriorityr+numIntids:
		d.setPrioWord(d.prio[:], off-gicdIpriorityr, value)
	case off >= gicdItargetsr && off < gicdItargetsr+numIntids:
		d.setPrioWord(d.targets[:], off-gicdItargetsr, value)
	case off >= gicdIcfgr && off < gicdIcfgr+0x100:
		d.cfg[(off-gicdIcfgr)/4] = value
	case off == gicdSgir && d.version == 2:
		d.mu.Unlock()
		d.sgir(value)
		return
	case off >= gicdIgrouprE && off < gicdIgrouprE+0x80:
		d.groupE[(off-gicdIgrouprE)/4] = value
	case off >= gicdIsenablerE && off < gicdIsenablerE+0x80:
		d.enabledE[(off-gicdIsenablerE)/4] |= value
	case off >= gicdIcenablerE && off < gicdIcenablerE+0x80:
		d.enabledE[(off-gicdIcenablerE)/4] &^= value
	case off >= gicdIspendrE && off < gicdIspendrE+0x80:
		d.pendingE[(off-gicdIspendrE)/4] |= value
	case off >= gicdIcpendrE && off < gicdIcpendrE+0x80:
		d.pendingE[(off-gicdIcpendrE)/4] &^= value
	case off >= gicdIsactiverE && off < gicdIsactiverE+0x80:
		d.activeE[(off-gicdIsactiverE)/4] |= value
	case off >= gicdIcactiverE && off < gicdIcactiverE+0x80:
		d.activeE[(off-gicdIcactiverE)/4] &^= value
	case off >= gicdIpriorityrE && off < gicdIpriorityrE+numEspis:
		d.setPrioWord(d.prioE[:], off-gicdIpriorityrE, value)
	case off >= gicdIcfgrE && off < gicdIcfgrE+0x100:
		d.cfgE[(off-gicdIcfgrE)/4] = value
	}
	d.mu.Unlock()
}

const gicdCtlrRWPBit = 1 << 31

func (d *Distributor) Read64(off uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case off >= gicdIrouter && off < gicdIrouter+numIntids*8:
		return d.router[(off-gicdIrouter)/8]
	case off >= gicdIrouterE && off < gicdIrouterE+numEspis*8:
		return d.routerE[(off-gicdIrouterE)/8]
	default:
		return 0
	}
}

func (d *Distributor) Write64(off uint64, value uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case off >= gicdIrouter && off < gicdIrouter+numIntids*8:
		d.router[(off-gicdIrouter)/8] = value
	case off >= gicdIrouterE && off < gicdIrouterE+numEspis*8:
		d.routerE[(off-gicdIrouterE)/8] = value
	}
}

// prioWord assembles the four byte lanes at byte offset off.
func (d *Distributor) prioWord(bank []uint8, off uint64) uint32 {
	var w uint32
	for i := uint64(0); i < 4; i++ {
		if off+i < uint64(len(bank)) {
			w |= uint32(bank[off+i]) << (8 * i)
		}
	}
	return w
}

func (d *Distributor) setPrioWord(bank []uint8, off uint64, value uint32) {
	for i := uint64(0); i < 4; i++ {
		if off+i < uint64(len(bank)) {
			bank[off+i] = uint8(value >> (8 * i))
		}
	}
}

// sgir decodes a GICv2 GICD_SGIR write and pends the SGI on the filtered
// target cores.
func (d *Distributor) sgir(value uint32) {
	intid := value & 0xF
	list := (value >> 16) & 0xFF
	filter := (value >> 24) & 0x3

	for core := 0; core < d.cpus; core++ {
		deliver := false
		switch filter {
		case 0:
			deliver = list&(1<<core) != 0
		case 1:
			deliver = core != d.AccessCPU
		case 2:
			deliver = core == d.AccessCPU
		}
		if deliver && d.sgiDeliver != nil {
			d.sgiDeliver(core, intid)
		}
	}
}

// AssertSPI marks a shared peripheral interrupt pending, as a device
// raising its line would.
func (d *Distributor) AssertSPI(intid uint32) {
	if intid < spiBase || intid >= numIntids {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.set(intid)
}

// RetractSPI drops a level-sensed interrupt that is no longer asserted.
func (d *Distributor) RetractSPI(intid uint32) {
	if intid < spiBase || intid >= numIntids {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.clear(intid)
}

// IsEnabled reports the enable bit for intid.
func (d *Distributor) IsEnabled(intid uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled.get(intid)
}

// IsPending reports the pending bit for intid.
func (d *Distributor) IsPending(intid uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.get(intid)
}

// IsActive reports the active bit for intid.
func (d *Distributor) IsActive(intid uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active.get(intid)
}

// Priority returns the stored priority byte for intid.
func (d *Distributor) Priority(intid uint32) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prio[intid]
}

// Target returns the GICv2 target byte for intid.
func (d *Distributor) Target(intid uint32) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targets[intid]
}

// Route returns the GICv3 router value for an SPI.
func (d *Distributor) Route(intid uint32) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.router[intid]
}

// claim finds the best deliverable interrupt for the given core, marks
// it active, clears its pending state, and returns its INTID, or
// intidNone with nothing deliverable. Lowest priority value wins, lowest
// INTID breaks ties. The caller holds the lock.
//
// On the GICv2 model the private INTIDs 0-31 live here too; the model
// does not bank them per core, which the driver never observes through
// its own register traffic.
func (d *Distributor) claim(core int) uint32 {
	best := uint32(intidNone)
	var bestPrio uint8
	for intid := uint32(0); intid < numIntids; intid++ {
		if !d.pending.get(intid) || !d.enabled.get(intid) || d.active.get(intid) {
			continue
		}
		if intid >= spiBase && !d.routedTo(intid, core) {
			continue
		}
		if best == intidNone || d.prio[intid] < bestPrio {
			best = intid
			bestPrio = d.prio[intid]
		}
	}
	if best != intidNone {
		d.active.set(best)
		d.pending.clear(best)
	}
	return best
}

// bestSPI finds the best deliverable SPI for core without claiming it,
// or intidNone. The caller holds the lock.
func (d *Distributor) bestSPI(core int) uint32 {
	best := uint32(intidNone)
	var bestPrio uint8
	for intid := uint32(spiBase); intid < numIntids; intid++ {
		if !d.pending.get(intid) || !d.enabled.get(intid) || d.active.get(intid) {
			continue
		}
		if !d.routedTo(intid, core) {
			continue
		}
		if best == intidNone || d.prio[intid] < bestPrio {
			best = intid
			bestPrio = d.prio[intid]
		}
	}
	return best
}

// routedTo reports whether an SPI may be delivered to core: the target
// byte on GICv2, the affinity router (flat Aff0 model) on GICv3.
func (d *Distributor) routedTo(intid uint32, core int) bool {
	if d.version == 2 {
		return d.targets[intid]&(1<<core) != 0
	}
	r := d.router[intid]
	if r&irouterIRM != 0 {
		return true
	}
	// Exact routing in the flat model: every level above Aff0 zero.
	return r&^uint64(0xFF) == 0 && uint8(r) == uint8(core)
}

// eoi clears the active state of an interrupt held in the distributor.
func (d *Distributor) eoi(intid uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active.clear(intid)
}

// pend marks an interrupt pending. Used by the SGI delivery paths.
func (d *Distributor) pend(intid uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.set(intid)
}
