//go:build arm64

package sysreg

// Implemented in sysreg_arm64.s. The ICC registers are not in the Go
// assembler's system register table, so the accessors use raw
// instruction words, MRS/MSR via x0.

func readICCSRE() uint64
func writeICCSRE(v uint64)
func readICCIAR1() uint64
func writeICCEOIR1(v uint64)
func writeICCPMR(v uint64)
func writeICCIGrpEn1(v uint64)
func writeICCSGI1R(v uint64)
func isb()
