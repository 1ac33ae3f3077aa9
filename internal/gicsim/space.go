package gicsim

import "github.com/tinyrange/gic/mmio"

var (
	_ mmio.Space = (*Distributor)(nil)
	_ mmio.Space = (*CPUInterface)(nil)
	_ mmio.Space = (*Redistributor)(nil)
)
