//go:build !linux

package main

import (
	"fmt"

	"github.com/tinyrange/gic/mmio"
	"github.com/tinyrange/gic/platform"
)

func openLive(dev string, cfg platform.Config) (mmio.Space, func() error, error) {
	return nil, nil, fmt.Errorf("live register access requires linux; use --dump")
}
