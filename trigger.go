package gic

import "fmt"

// TriggerMode selects how the controller recognizes an interrupt signal.
type TriggerMode int

const (
	// Edge asserts the interrupt on a rising edge of the signal and
	// keeps it asserted until acknowledged, regardless of the signal
	// afterwards.
	Edge TriggerMode = iota
	// Level asserts the interrupt while the signal level is active and
	// deasserts it when the level drops.
	Level
)

func (m TriggerMode) String() string {
	switch m {
	case Edge:
		return "edge"
	case Level:
		return "level"
	default:
		return fmt.Sprintf("TriggerMode(%d)", int(m))
	}
}

// ICFGR packs two bits per interrupt; only the upper bit carries the
// trigger mode, the lower bit is reserved.
const (
	cfgBitsPerIntr = 2
	cfgLevel       = 0b00
	cfgEdge        = 0b10
)

func (m TriggerMode) cfgBits() uint32 {
	if m == Edge {
		return cfgEdge
	}
	return cfgLevel
}

func triggerFromCfgBits(bits uint32) TriggerMode {
	if bits&cfgEdge != 0 {
		return Edge
	}
	return Level
}
