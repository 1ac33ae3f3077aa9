package gicsim

import "sync"

// Redistributor register offsets.
const (
	gicrCtlr  = 0x0000
	gicrIidr  = 0x0004
	gicrTyper = 0x0008
	gicrWaker = 0x0014

	gicrSGIOffset  = 0x10000
	gicrIgroupr0   = gicrSGIOffset + 0x0080
	gicrIsenabler0 = gicrSGIOffset + 0x0100
	gicrIcenabler0 = gicrSGIOffset + 0x0180
	gicrIspendr0   = gicrSGIOffset + 0x0200
	gicrIcpendr0   = gicrSGIOffset + 0x0280
	gicrIsactiver0 = gicrSGIOffset + 0x0300
	gicrIcactiver0 = gicrSGIOffset + 0x0380
	gicrIpriorityr = gicrSGIOffset + 0x0400
	gicrIcfgr0     = gicrSGIOffset + 0x0C00
	gicrPidr2      = 0xFFE8

	gicrWakerProcessorSleep = 1 << 1
	gicrWakerChildrenAsleep = 1 << 2
)

// Private interrupt lanes in a redistributor: 32 base INTIDs plus the
// extended PPI range.
const numPrivLanes = 96

// Redistributor models one core's GICR frames: the RD_base control
// frame and the SGI_base frame holding private interrupt state. Lanes
// 0-31 carry INTIDs 0-31; lanes 32 and up carry the extended PPIs.
type Redistributor struct {
	mu   *sync.Mutex
	core int
	last bool

	waker uint32

	group   [3]uint32
	enabled [3]uint32
	pending [3]uint32
	active  [3]uint32
	prio    [numPrivLanes]uint8
	cfg     [6]uint32
}

func newRedistributor(core int, last bool, mu *sync.Mutex) *Redistributor {
	return &Redistributor{
		mu:   mu,
		core: core,
		last: last,
		// Cores come out of reset asleep.
		waker: gicrWakerProcessorSleep | gicrWakerChildrenAsleep,
	}
}

func (r *Redistributor) typer() uint64 {
	procNum := uint64(r.core) << 8
	var lastBit uint64
	if r.last {
		lastBit = 1 << 4
	}
	// Affinity (flat Aff0 numbering) in the upper word.
	return uint64(r.core)<<32 | procNum | lastBit
}

func (r *Redistributor) Read32(off uint64) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case off == gicrCtlr:
		return 0
	case off == gicrIidr:
		return gicImplementerArm
	case off == gicrTyper:
		return uint32(r.typer())
	case off == gicrTyper+4:
		return uint32(r.typer() >> 32)
	case off == gicrWaker:
		return r.waker
	case off == gicrPidr2, off == gicrSGIOffset+gicrPidr2:
		return gicArchRevGICv3
	case off >= gicrIgroupr0 && off < gicrIgroupr0+12:
		return r.group[(off-gicrIgroupr0)/4]
	case off >= gicrIsenabler0 && off < gicrIsenabler0+12:
		return r.enabled[(off-gicrIsenabler0)/4]
	case off >= gicrIcenabler0 && off < gicrIcenabler0+12:
		return r.enabled[(off-gicrIcenabler0)/4]
	case off >= gicrIspendr0 && off < gicrIspendr0+12:
		return r.pending[(off-gicrIspendr0)/4]
	case off >= gicrIcpendr0 && off < gicrIcpendr0+12:
		return r.pending[(off-gicrIcpendr0)/4]
	case off >= gicrIsactiver0 && off < gicrIsactiver0+12:
		return r.active[(off-gicrIsactiver0)/4]
	case off >= gicrIcactiver0 && off < gicrIcactiver0+12:
		return r.active[(off-gicrIcactiver0)/4]
	case off >= gicrIpriorityr && off < gicrIpriorityr+numPrivLanes:
		var w uint32
		base := off - gicrIpriorityr
		for i := uint64(0); i < 4; i++ {
			w |= uint32(r.prio[base+i]) << (8 * i)
		}
		return w
	case off >= gicrIcfgr0 && off < gicrIcfgr0+24:
		return r.cfg[(off-gicrIcfgr0)/4]
	default:
		return 0
	}
}

func (r *Redistributor) Write32(off uint64, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case off == gicrWaker:
		if value&gicrWakerProcessorSleep == 0 {
			// Waking the core wakes its interrupt group with it.
			r.waker = 0
		} else {
			r.waker = value & (gicrWakerProcessorSleep | gicrWakerChildrenAsleep)
		}
	case off >= gicrIgroupr0 && off < gicrIgroupr0+12:
		r.group[(off-gicrIgroupr0)/4] = value
	case off >= gicrIsenabler0 && off < gicrIsenabler0+12:
		r.enabled[(off-gicrIsenabler0)/4] |= value
	case off >= gicrIcenabler0 && off < gicrIcenabler0+12:
		r.enabled[(off-gicrIcenabler0)/4] &^= value
	case off >= gicrIspendr0 && off < gicrIspendr0+12:
		r.pending[(off-gicrIspendr0)/4] |= value
	case off >= gicrIcpendr0 && off < gicrIcpendr0+12:
		r.pending[(off-gicrIcpendr0)/4] &^= value
	case off >= gicrIsactiver0 && off < gicrIsactiver0+12:
		r.active[(off-gicrIsactiver0)/4] |= value
	case off >= gicrIcactiver0 && off < gicrIcactiver0+12:
		r.active[(off-gicrIcactiver0)/4] &^= value
	case off >= gicrIpriorityr && off < gicrIpriorityr+numPrivLanes:
		base := off - gicrIpriorityr
		for i := uint64(0); i < 4; i++ {
			r.prio[base+i] = uint8(value >> (8 * i))
		}
	case off >= gicrIcfgr0 && off < gicrIcfgr0+24:
		r.cfg[(off-gicrIcfgr0)/4] = value
	}
}

func (r *Redistributor) Read64(off uint64) uint64 {
	if off == gicrTyper {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.typer()
	}
	return uint64(r.Read32(off))
}

func (r *Redistributor) Write64(off uint64, value uint64) {
	r.Write32(off, uint32(value))
}

// Awake reports whether the wake handshake has completed.
func (r *Redistributor) Awake() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waker&gicrWakerChildrenAsleep == 0
}

// AssertPPI marks a private peripheral interrupt pending on this core.
func (r *Redistributor) AssertPPI(intid uint32) {
	if intid >= 32 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[0] |= 1 << intid
}

// IsEnabled reports the enable bit for private lane intid.
func (r *Redistributor) IsEnabled(lane uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled[lane/32]&(1<<(lane%32)) != 0
}

// Priority returns the stored priority for private lane intid.
func (r *Redistributor) Priority(lane uint32) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prio[lane]
}

// claimPriv finds the best pending private interrupt, marks it active,
// and returns its lane, or intidNone. The caller holds the lock.
func (r *Redistributor) claimPriv() (lane uint32, prio uint8, ok bool) {
	best := uint32(intidNone)
	var bestPrio uint8
	for l := uint32(0); l < numPrivLanes; l++ {
		word, bit := l/32, uint32(1)<<(l%32)
		if r.pending[word]&bit == 0 || r.enabled[word]&bit == 0 || r.active[word]&bit != 0 {
			continue
		}
		if best == intidNone || r.prio[l] < bestPrio {
			best = l
			bestPrio = r.prio[l]
		}
	}
	if best == intidNone {
		return 0, 0, false
	}
	return best, bestPrio, true
}

func (r *Redistributor) takePriv(lane uint32) {
	word, bit := lane/32, uint32(1)<<(lane%32)
	r.active[word] |= bit
	r.pending[word] &^= bit
}

// V3 models a complete GICv3: a distributor, one redistributor per
// core, and a simulated ICC register file per core.
type V3 struct {
	mu      sync.Mutex
	dist    *Distributor
	redists []*Redistributor
	iccs    []*ICC
}

// NewV3 returns a GICv3 model for the given number of cores.
func NewV3(cores int) *V3 {
	s := &V3{}
	s.dist = newDistributor(3, cores, &s.mu)
	for core := 0; core < cores; core++ {
		s.redists = append(s.redists, newRedistributor(core, core == cores-1, &s.mu))
		s.iccs = append(s.iccs, &ICC{core: core, sim: s})
	}
	return s
}

// Distributor returns the shared distributor frame.
func (s *V3) Distributor() *Distributor { return s.dist }

// Redistributor returns the given core's GICR frames.
func (s *V3) Redistributor(core int) *Redistributor { return s.redists[core] }

// ICC returns the given core's simulated system-register interface.
func (s *V3) ICC(core int) *ICC { return s.iccs[core] }

// ICC models one core's ICC system registers against the shared state
// in V3. It satisfies the driver's CPUInterface contract.
type ICC struct {
	core int
	sim  *V3

	pmr        uint8
	sre        uint32
	grpEnabled bool
}

// Enable models ICC_SRE and ICC_IGRPEN1 writes.
func (c *ICC) Enable() {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	c.sre |= 1
	c.grpEnabled = true
}

// Enabled reports whether group 1 delivery is on for this core.
func (c *ICC) Enabled() bool {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	return c.grpEnabled
}

// SetPriorityMask models an ICC_PMR write.
func (c *ICC) SetPriorityMask(priority uint8) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	c.pmr = priority
}

// PriorityMask returns the mask last written.
func (c *ICC) PriorityMask() uint8 {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	return c.pmr
}

// Acknowledge models an ICC_IAR1 read: the best of this core's private
// interrupts and the distributor's deliverable SPIs.
func (c *ICC) Acknowledge() uint32 {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	if !c.grpEnabled {
		return intidNone
	}

	r := c.sim.redists[c.core]
	privLane, privPrio, havePriv := r.claimPriv()

	// Peek the distributor side without claiming yet.
	spi := c.sim.dist.bestSPI(c.core)

	switch {
	case havePriv && (spi == intidNone || privPrio <= c.sim.dist.prio[spi]):
		r.takePriv(privLane)
		return privLaneToIntid(privLane)
	case spi != intidNone:
		c.sim.dist.active.set(spi)
		c.sim.dist.pending.clear(spi)
		return spi
	default:
		return intidNone
	}
}

// EndInterrupt models an ICC_EOIR1 write.
func (c *ICC) EndInterrupt(intid uint32) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	if lane, ok := intidToPrivLane(intid); ok {
		r := c.sim.redists[c.core]
		word, bit := lane/32, uint32(1)<<(lane%32)
		r.active[word] &^= bit
		return
	}
	if intid < numIntids {
		c.sim.dist.active.clear(intid)
	}
}

// SendSGI decodes an ICC_SGI1R value and pends the SGI on the target
// cores' redistributors. The model uses flat Aff0 core numbering.
func (c *ICC) SendSGI(value uint64) {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()

	intid := uint32(value>>24) & 0xF
	if value&(1<<40) != 0 {
		// Broadcast to everyone but the sender.
		for core, r := range c.sim.redists {
			if core != c.core {
				r.pending[0] |= 1 << intid
			}
		}
		return
	}

	aff := value >> 16 & 0xFF
	if aff != 0 || value>>32&0xFF != 0 || value>>48&0xFF != 0 {
		// No such cluster in the flat model.
		return
	}
	rangeSel := uint32(value>>44) & 0xF
	list := uint16(value)
	for bit := 0; bit < 16; bit++ {
		if list&(1<<bit) == 0 {
			continue
		}
		core := int(rangeSel)*16 + bit
		if core < len(c.sim.redists) {
			c.sim.redists[core].pending[0] |= 1 << intid
		}
	}
}

// privLaneToIntid maps a redistributor lane back to an absolute INTID.
func privLaneToIntid(lane uint32) uint32 {
	if lane < 32 {
		return lane
	}
	return 1056 + (lane - 32)
}

// intidToPrivLane maps an absolute INTID to a redistributor lane.
func intidToPrivLane(intid uint32) (uint32, bool) {
	switch {
	case intid < 32:
		return intid, true
	case intid >= 1056 && intid < 1056+64:
		return 32 + (intid - 1056), true
	default:
		return 0, false
	}
}
