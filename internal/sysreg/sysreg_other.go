//go:build !arm64

package sysreg

func unsupported() {
	panic("sysreg: ICC system registers require an arm64 core")
}

func readICCSRE() uint64     { unsupported(); return 0 }
func writeICCSRE(uint64)     { unsupported() }
func readICCIAR1() uint64    { unsupported(); return 0 }
func writeICCEOIR1(uint64)   { unsupported() }
func writeICCPMR(uint64)     { unsupported() }
func writeICCIGrpEn1(uint64) { unsupported() }
func writeICCSGI1R(uint64)   { unsupported() }
func isb()                   { unsupported() }
