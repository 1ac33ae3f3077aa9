//go:build linux

package main

import (
	"github.com/tinyrange/gic/mmio"
	"github.com/tinyrange/gic/platform"
)

// openLive maps just the distributor window; gicinfo never needs the
// CPU interface or redistributors.
func openLive(dev string, cfg platform.Config) (mmio.Space, func() error, error) {
	return mmio.MapDevice(dev, cfg.Distributor.Base, cfg.Distributor.Size)
}
