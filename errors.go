package gic

import "errors"

// All three errors are detected before any register access is issued, so
// a failed call never leaves the controller partially mutated. The caller
// decides whether a configuration error is fatal; nothing here retries.
var (
	// ErrBadIntId reports a raw interrupt number outside every defined
	// INTID range, including the 1024-1055 gap below the extended ranges.
	ErrBadIntId = errors.New("gic: interrupt ID outside any defined range")

	// ErrClassUnsupported reports an operation that is not defined for
	// the interrupt's class, such as setting a trigger mode on an SGI.
	ErrClassUnsupported = errors.New("gic: operation unsupported for interrupt class")

	// ErrCoreOutOfRange reports a core index beyond the number of cores
	// the controller was constructed for.
	ErrCoreOutOfRange = errors.New("gic: core index outside configured range")
)
