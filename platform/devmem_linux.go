//go:build linux

package platform

import (
	"fmt"

	"github.com/tinyrange/gic"
	"github.com/tinyrange/gic/internal/sysreg"
	"github.com/tinyrange/gic/mmio"
)

// System is a live controller plus the mappings that back it.
type System struct {
	Controller gic.InterruptController

	unmaps []func() error
}

// Close unmaps the register windows. The controller must not be used
// afterwards.
func (s *System) Close() error {
	var first error
	for _, unmap := range s.unmaps {
		if err := unmap(); err != nil && first == nil {
			first = err
		}
	}
	s.unmaps = nil
	return first
}

// OpenDevMem maps the configured register windows from a device-memory
// node (typically /dev/mem) and constructs a driver over them. Requires
// an uncached mapping path, so the kernel must not have claimed the
// controller already.
func OpenDevMem(devPath string, cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sys := &System{}
	mapWindow := func(base, size uint64) (mmio.Space, error) {
		region, unmap, err := mmio.MapDevice(devPath, base, size)
		if err != nil {
			sys.Close()
			return nil, err
		}
		sys.unmaps = append(sys.unmaps, unmap)
		return region, nil
	}

	dist, err := mapWindow(cfg.Distributor.Base, cfg.Distributor.Size)
	if err != nil {
		return nil, err
	}

	switch cfg.Version {
	case 2:
		cpu, err := mapWindow(cfg.CPUInterface.Base, cfg.CPUInterface.Size)
		if err != nil {
			return nil, err
		}
		sys.Controller = gic.NewGicV2(dist, cpu)
	default:
		redists := make([]mmio.Space, cfg.Cores)
		for core := range redists {
			base := cfg.Redistributor.Base + uint64(core)*cfg.Redistributor.Stride
			redists[core], err = mapWindow(base, cfg.Redistributor.Stride)
			if err != nil {
				return nil, err
			}
		}
		ctrl, err := gic.NewGicV3(gic.GicV3Config{
			Distributor:    dist,
			Redistributors: redists,
			CPU:            sysreg.Native{},
		})
		if err != nil {
			sys.Close()
			return nil, fmt.Errorf("platform: %w", err)
		}
		sys.Controller = ctrl
	}
	return sys, nil
}
