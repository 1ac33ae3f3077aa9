// Package trace is an optional sink for driver-level register traces.
//
// Tracing is off by default and costs one atomic load per call site, so
// driver paths call Writef unconditionally. The sink is process-wide;
// concurrent writers are serialized per line by the underlying writer.
package trace

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

type sink struct {
	w io.Writer
}

var current atomic.Pointer[sink]

// SetWriter directs traces to w. Passing nil disables tracing again.
func SetWriter(w io.Writer) {
	if w == nil {
		current.Store(nil)
		return
	}
	current.Store(&sink{w: w})
}

// Enabled reports whether a sink is installed.
func Enabled() bool { return current.Load() != nil }

// Writef records one trace line tagged with its source. It is a no-op
// without an installed sink.
func Writef(source, format string, args ...any) {
	s := current.Load()
	if s == nil {
		return
	}
	fmt.Fprintf(s.w, "%s %s: %s\n",
		time.Now().Format(time.RFC3339Nano), source, fmt.Sprintf(format, args...))
}
