// Package platform describes where a machine puts its interrupt
// controller and constructs drivers from that description.
//
// A Config can be written by hand, loaded from YAML, or taken from one
// of the presets for well-known machines. From a validated Config the
// package builds a gic.InterruptController over raw register windows,
// over a /dev/mem mapping, or over any mmio.Space the caller supplies.
package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/gic"
	"github.com/tinyrange/gic/internal/sysreg"
	"github.com/tinyrange/gic/mmio"
)

// Window is one contiguous register frame in physical address space.
type Window struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// RedistWindow describes the redistributor array: one frame pair per
// core, Stride bytes apart, starting at Base.
type RedistWindow struct {
	Base   uint64 `yaml:"base"`
	Stride uint64 `yaml:"stride"`
}

// Config locates a GIC on a specific machine.
type Config struct {
	// Version is the GIC architecture version, 2 or 3.
	Version int `yaml:"version"`

	// Cores is the number of cores the controller serves.
	Cores int `yaml:"cores"`

	Distributor Window `yaml:"distributor"`

	// CPUInterface is the memory-mapped GICC frame. GICv2 only.
	CPUInterface *Window `yaml:"cpu_interface,omitempty"`

	// Redistributor locates the per-core GICR frames. GICv3 only.
	Redistributor *RedistWindow `yaml:"redistributor,omitempty"`
}

// LoadConfig reads and validates a YAML platform description.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("platform: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a YAML platform description.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("platform: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the description for internal consistency.
func (cfg Config) Validate() error {
	switch cfg.Version {
	case 2:
		if cfg.Cores < 1 || cfg.Cores > 8 {
			return fmt.Errorf("platform: GICv2 serves 1-8 cores, not %d", cfg.Cores)
		}
		if cfg.CPUInterface == nil {
			return fmt.Errorf("platform: GICv2 config needs a cpu_interface window")
		}
		if cfg.CPUInterface.Size < gic.GicV2CPUInterfaceSize {
			return fmt.Errorf("platform: cpu_interface window %#x too small", cfg.CPUInterface.Size)
		}
		if cfg.Distributor.Size < gic.GicV2DistributorSize {
			return fmt.Errorf("platform: distributor window %#x too small", cfg.Distributor.Size)
		}
	case 3:
		if cfg.Cores < 1 {
			return fmt.Errorf("platform: GICv3 needs at least one core, not %d", cfg.Cores)
		}
		if cfg.Redistributor == nil {
			return fmt.Errorf("platform: GICv3 config needs a redistributor window")
		}
		if cfg.Redistributor.Stride < gic.GicV3RedistributorStride {
			return fmt.Errorf("platform: redistributor stride %#x too small", cfg.Redistributor.Stride)
		}
		if cfg.Distributor.Size < gic.GicV3DistributorSize {
			return fmt.Errorf("platform: distributor window %#x too small", cfg.Distributor.Size)
		}
	default:
		return fmt.Errorf("platform: unsupported GIC version %d", cfg.Version)
	}
	if cfg.Distributor.Base == 0 {
		return fmt.Errorf("platform: distributor base not set")
	}
	return nil
}

// QEMU virt machine memory map.
const (
	qemuVirtGICDist   = 0x08000000
	qemuVirtGICCPU    = 0x08010000
	qemuVirtGICRedist = 0x080a0000
)

// QEMUVirtV2 describes the QEMU virt machine with its default GICv2.
func QEMUVirtV2(cores int) Config {
	return Config{
		Version:     2,
		Cores:       cores,
		Distributor: Window{Base: qemuVirtGICDist, Size: gic.GicV2DistributorSize},
		CPUInterface: &Window{
			Base: qemuVirtGICCPU,
			Size: gic.GicV2CPUInterfaceSize,
		},
	}
}

// QEMUVirtV3 describes the QEMU virt machine with gic-version=3.
func QEMUVirtV3(cores int) Config {
	return Config{
		Version:     3,
		Cores:       cores,
		Distributor: Window{Base: qemuVirtGICDist, Size: gic.GicV3DistributorSize},
		Redistributor: &RedistWindow{
			Base:   qemuVirtGICRedist,
			Stride: gic.GicV3RedistributorStride,
		},
	}
}

// New constructs a driver over raw register windows at the configured
// physical addresses. This is the bare-metal and kernel path, where the
// addresses are already mapped (or identity mapped) for the caller.
//
// On GICv3 the CPU interface runs through the calling core's ICC system
// registers.
func New(cfg Config) (gic.InterruptController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Version {
	case 2:
		return gic.NewGicV2Raw(uintptr(cfg.Distributor.Base), uintptr(cfg.CPUInterface.Base)), nil
	default:
		redists := make([]mmio.Space, cfg.Cores)
		for core := range redists {
			base := cfg.Redistributor.Base + uint64(core)*cfg.Redistributor.Stride
			redists[core] = mmio.NewRegion(uintptr(base), gic.GicV3RedistributorStride)
		}
		return gic.NewGicV3(gic.GicV3Config{
			Distributor:    mmio.NewRegion(uintptr(cfg.Distributor.Base), gic.GicV3DistributorSize),
			Redistributors: redists,
			CPU:            sysreg.Native{},
		})
	}
}

// NewFromSpaces constructs a driver over caller-supplied register
// spaces, one per window in the configuration. It is how a register
// dump, a simulator, or a pre-mapped window is driven.
//
// For GICv3 the cpu argument selects the acknowledge path; nil means
// the calling core's ICC system registers. GICv2 ignores it and takes
// its CPU interface from the second space.
func NewFromSpaces(cfg Config, cpu gic.CPUInterface, dist mmio.Space, rest ...mmio.Space) (gic.InterruptController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Version {
	case 2:
		if len(rest) != 1 {
			return nil, fmt.Errorf("platform: GICv2 takes exactly one CPU interface space")
		}
		return gic.NewGicV2(dist, rest[0]), nil
	default:
		if len(rest) != cfg.Cores {
			return nil, fmt.Errorf("platform: GICv3 takes one redistributor space per core")
		}
		if cpu == nil {
			cpu = sysreg.Native{}
		}
		return gic.NewGicV3(gic.GicV3Config{
			Distributor:    dist,
			Redistributors: rest,
			CPU:            cpu,
		})
	}
}
