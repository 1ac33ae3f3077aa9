package gic

import (
	"fmt"

	"github.com/tinyrange/gic/mmio"
)

// InterruptState is one interrupt's configuration as read back from the
// distributor.
type InterruptState struct {
	Id       IntId
	Enabled  bool
	Pending  bool
	Active   bool
	Priority uint8
	Trigger  TriggerMode

	// Targets is the GICv2 target core mask. Route is the GICv3 raw
	// GICD_IROUTER value; RouteAll is set when its 1-of-N bit is on.
	// Only the fields for the inspected version are meaningful, and
	// only for SPIs.
	Targets  uint8
	Route    Affinity
	RouteAll bool
}

// DistributorState is a decoded snapshot of a distributor frame.
type DistributorState struct {
	// Version is 2 or 3, read from GICD_PIDR2.
	Version int

	// Ctlr is the raw control register; Forwarding reports whether the
	// distributor is forwarding interrupts at all.
	Ctlr       uint32
	Forwarding bool

	// NumInterrupts is the implemented INTID count from GICD_TYPER.
	NumInterrupts uint32

	Interrupts []InterruptState
}

// InspectDistributor reads a distributor frame, either live hardware or
// a register dump, and decodes the per-interrupt configuration. The
// reads are side-effect free: no IAR-style claiming registers are
// touched.
func InspectDistributor(s mmio.Space) (*DistributorState, error) {
	st := &DistributorState{}

	// GICv2 identifies itself at the top of its 4KB frame, GICv3 at the
	// top of its 64KB frame. Probe the low location first so a bare v2
	// window is never read past its end.
	pidr2 := s.Read32(gicdPidr2V2)
	if pidr2>>4&0xF == 0 {
		pidr2 = s.Read32(gicdPidr2)
	}
	switch pidr2 >> 4 & 0xF {
	case 2:
		st.Version = 2
	case 3, 4:
		st.Version = 3
	default:
		return nil, fmt.Errorf("gic: unrecognized distributor (PIDR2=%#x)", pidr2)
	}

	st.Ctlr = s.Read32(gicdCtlr)
	if st.Version == 2 {
		st.Forwarding = st.Ctlr&1 != 0
	} else {
		st.Forwarding = st.Ctlr&(gicdCtlrEnableGrp1A|1) != 0
	}

	typer := s.Read32(gicdTyper)
	st.NumInterrupts = (typer&0x1F + 1) * 32
	if st.NumInterrupts > specialStart {
		st.NumInterrupts = specialStart
	}

	for raw := uint32(0); raw < st.NumInterrupts; raw++ {
		id, err := NewIntId(raw)
		if err != nil {
			continue
		}
		is := InterruptState{
			Id:       id,
			Enabled:  readBit(s, gicdIsenabler, raw),
			Pending:  readBit(s, gicdIspendr, raw),
			Active:   readBit(s, gicdIsactiver, raw),
			Priority: readByteLane(s, gicdIpriorityr, raw),
			Trigger:  readCfgLane(s, gicdIcfgr, raw),
		}
		if id.Class() == ClassSPI {
			if st.Version == 2 {
				is.Targets = readByteLane(s, gicdItargetsr, raw)
			} else {
				r := s.Read64(gicdIrouter + uint64(raw)*8)
				is.RouteAll = r&irouterIRM != 0
				is.Route = Affinity{
					Aff3: uint8(r >> 32),
					Aff2: uint8(r >> 16),
					Aff1: uint8(r >> 8),
					Aff0: uint8(r),
				}
			}
		}
		st.Interrupts = append(st.Interrupts, is)
	}
	return st, nil
}

// Configured filters the snapshot to the interrupts that differ from
// reset state: enabled, pending, or active.
func (st *DistributorState) Configured() []InterruptState {
	var out []InterruptState
	for _, is := range st.Interrupts {
		if is.Enabled || is.Pending || is.Active {
			out = append(out, is)
		}
	}
	return out
}

func readBit(s mmio.Space, base uint64, intid uint32) bool {
	off, mask := bitWord(base, intid)
	return s.Read32(off)&mask != 0
}

func readByteLane(s mmio.Space, base uint64, intid uint32) uint8 {
	off := base + uint64(intid/4)*4
	shift := (intid % 4) * 8
	return uint8(s.Read32(off) >> shift)
}

func readCfgLane(s mmio.Space, base uint64, intid uint32) TriggerMode {
	off := base + uint64(intid/16)*4
	shift := (intid % 16) * cfgBitsPerIntr
	return triggerFromCfgBits(s.Read32(off) >> shift & 0b11)
}
