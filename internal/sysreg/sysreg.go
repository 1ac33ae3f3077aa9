// Package sysreg reaches the GICv3 CPU interface through its ICC system
// registers. Unlike the distributor and redistributor, this path is not
// memory mapped: each access is an MRS or MSR executed on the calling
// core, which is what makes it per-core by construction.
package sysreg

// Native executes ICC accesses directly. It is only functional on an
// arm64 core running at an exception level that exposes the registers;
// elsewhere every method panics, which keeps cross-compiled builds
// honest without a build-tag split in callers.
type Native struct{}

// Enable switches the core to the system-register interface and unmasks
// group 1 interrupts.
func (Native) Enable() {
	writeICCSRE(readICCSRE() | 1)
	isb()
	writeICCIGrpEn1(1)
	isb()
}

// SetPriorityMask writes ICC_PMR_EL1.
func (Native) SetPriorityMask(priority uint8) {
	writeICCPMR(uint64(priority))
}

// Acknowledge reads ICC_IAR1_EL1. The read itself claims the interrupt.
func (Native) Acknowledge() uint32 {
	return uint32(readICCIAR1())
}

// EndInterrupt writes ICC_EOIR1_EL1.
func (Native) EndInterrupt(intid uint32) {
	writeICCEOIR1(uint64(intid))
	isb()
}

// SendSGI writes a pre-encoded ICC_SGI1R_EL1 value.
func (Native) SendSGI(value uint64) {
	writeICCSGI1R(value)
	isb()
}
