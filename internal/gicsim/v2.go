package gicsim

import "sync"

// CPU interface register offsets.
const (
	giccCtlr = 0x0000
	giccPmr  = 0x0004
	giccBpr  = 0x0008
	giccIar  = 0x000C
	giccEoir = 0x0010
	giccRpr  = 0x0014
	giccIidr = 0x00FC
)

// V2 models a complete GICv2: one distributor and one banked CPU
// interface per core.
type V2 struct {
	mu   sync.Mutex
	dist *Distributor
	cpus []*CPUInterface
}

// NewV2 returns a GICv2 model for the given number of cores.
func NewV2(cores int) *V2 {
	s := &V2{}
	s.dist = newDistributor(2, cores, &s.mu)
	for core := 0; core < cores; core++ {
		s.cpus = append(s.cpus, &CPUInterface{core: core, dist: s.dist})
	}
	s.dist.sgiDeliver = func(core int, intid uint32) {
		// Private state is not banked per core in this model; the SGI
		// lands in the shared word regardless of the target core.
		s.dist.pend(intid)
	}
	return s
}

// Distributor returns the shared distributor frame.
func (s *V2) Distributor() *Distributor { return s.dist }

// CPUInterface returns the given core's view of the banked GICC frame.
func (s *V2) CPUInterface(core int) *CPUInterface { return s.cpus[core] }

// CPUInterface models the banked GICC register frame as one core sees
// it. Reading IAR claims an interrupt from the distributor; writing EOIR
// releases it.
type CPUInterface struct {
	core int
	dist *Distributor

	ctlr uint32
	pmr  uint32
	bpr  uint32
}

func (c *CPUInterface) Read32(off uint64) uint32 {
	switch off {
	case giccCtlr:
		return c.ctlr
	case giccPmr:
		return c.pmr
	case giccBpr:
		return c.bpr
	case giccIar:
		c.dist.mu.Lock()
		defer c.dist.mu.Unlock()
		return c.dist.claim(c.core)
	case giccIidr:
		return gicImplementerArm
	default:
		return 0
	}
}

func (c *CPUInterface) Write32(off uint64, value uint32) {
	switch off {
	case giccCtlr:
		c.ctlr = value
	case giccPmr:
		c.pmr = value & 0xFF
	case giccBpr:
		c.bpr = value & 0x7
	case giccEoir:
		c.dist.eoi(value & 0x3FF)
	}
}

func (c *CPUInterface) Read64(off uint64) uint64 {
	return uint64(c.Read32(off))
}

func (c *CPUInterface) Write64(off uint64, value uint64) {
	c.Write32(off, uint32(value))
}
