package platform

import (
	"fmt"

	"github.com/tinyrange/gic/internal/fdt"
)

// DeviceTreeNode emits the interrupt-controller node for this
// configuration into an open device tree. The caller supplies the
// phandle other nodes will use in their interrupt-parent references.
func DeviceTreeNode(b *fdt.Builder, cfg Config, phandle uint32) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	b.Begin(fmt.Sprintf("interrupt-controller@%x", cfg.Distributor.Base))
	if cfg.Version == 2 {
		b.PropStrings("compatible", "arm,gic-400", "arm,cortex-a15-gic")
		b.PropU64("reg",
			cfg.Distributor.Base, cfg.Distributor.Size,
			cfg.CPUInterface.Base, cfg.CPUInterface.Size)
	} else {
		b.PropString("compatible", "arm,gic-v3")
		b.PropU32("#redistributor-regions", 1)
		b.PropU64("reg",
			cfg.Distributor.Base, cfg.Distributor.Size,
			cfg.Redistributor.Base, uint64(cfg.Cores)*cfg.Redistributor.Stride)
	}
	b.PropU32("#interrupt-cells", 3)
	b.PropU32("#address-cells", 2)
	b.PropU32("#size-cells", 2)
	b.PropEmpty("interrupt-controller")
	b.PropU32("phandle", phandle)
	b.End()
	return nil
}
