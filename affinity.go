package gic

import "fmt"

// Affinity is the hierarchical address of a core under GICv3 affinity
// routing: four 8-bit levels, most significant first. Level 0 names a
// core within a cluster, higher levels name clusters of clusters.
type Affinity struct {
	Aff3 uint8
	Aff2 uint8
	Aff1 uint8
	Aff0 uint8
}

// AffinityFromMPIDR extracts the affinity fields of an MPIDR_EL1 value.
func AffinityFromMPIDR(mpidr uint64) Affinity {
	return Affinity{
		Aff3: uint8(mpidr >> 32),
		Aff2: uint8(mpidr >> 16),
		Aff1: uint8(mpidr >> 8),
		Aff0: uint8(mpidr),
	}
}

// routerValue encodes the affinity in the GICD_IROUTER layout:
// Aff3 in bits [39:32], Aff2 [23:16], Aff1 [15:8], Aff0 [7:0].
func (a Affinity) routerValue() uint64 {
	return uint64(a.Aff3)<<32 | uint64(a.Aff2)<<16 | uint64(a.Aff1)<<8 | uint64(a.Aff0)
}

// sgiValue encodes the cluster address in the ICC_SGI1R layout:
// Aff3 in bits [55:48], Aff2 [39:32], Aff1 [23:16]. Aff0 is carried by
// the target list instead of an affinity field.
func (a Affinity) sgiValue() uint64 {
	return uint64(a.Aff3)<<48 | uint64(a.Aff2)<<32 | uint64(a.Aff1)<<16
}

func (a Affinity) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a.Aff3, a.Aff2, a.Aff1, a.Aff0)
}
