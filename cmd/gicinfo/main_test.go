package main

import (
	"testing"

	"github.com/tinyrange/gic"
)

func TestLoadPlatformPresets(t *testing.T) {
	cfg, err := loadPlatform("", "qemu-virt-v3", 4)
	if err != nil {
		t.Fatalf("loadPlatform: %v", err)
	}
	if cfg.Version != 3 || cfg.Cores != 4 {
		t.Fatalf("cfg=%+v", cfg)
	}

	if _, err := loadPlatform("", "", 1); err == nil {
		t.Fatalf("accepted empty selection")
	}
	if _, err := loadPlatform("", "no-such-board", 1); err == nil {
		t.Fatalf("accepted unknown preset")
	}
	if _, err := loadPlatform("x.yaml", "qemu-virt-v2", 1); err == nil {
		t.Fatalf("accepted config and preset together")
	}
}

func TestStateString(t *testing.T) {
	spi, _ := gic.NewSPI(0)
	is := gic.InterruptState{Id: spi, Enabled: true, Pending: true}
	if got := stateString(is); got != "on+pend" {
		t.Fatalf("stateString=%q, want %q", got, "on+pend")
	}
	is = gic.InterruptState{Id: spi, Active: true}
	if got := stateString(is); got != "off+act" {
		t.Fatalf("stateString=%q, want %q", got, "off+act")
	}
}

func TestTargetString(t *testing.T) {
	ppi, _ := gic.NewPPI(0)
	if got := targetString(3, gic.InterruptState{Id: ppi}); got != "-" {
		t.Fatalf("targetString(PPI)=%q, want -", got)
	}
	spi, _ := gic.NewSPI(0)
	if got := targetString(3, gic.InterruptState{Id: spi, RouteAll: true}); got != "any core" {
		t.Fatalf("targetString=%q, want %q", got, "any core")
	}
	got := targetString(3, gic.InterruptState{Id: spi, Route: gic.Affinity{Aff0: 2}})
	if got != "0.0.0.2" {
		t.Fatalf("targetString=%q, want %q", got, "0.0.0.2")
	}
}
