package gic

// InterruptController is the capability set shared by GicV2 and GicV3.
// Trap dispatch and driver bring-up code written against it works with
// either controller; the two differ only in how they reach the hardware.
type InterruptController interface {
	// Init performs the one-time, system-wide distributor setup. It is
	// not idempotent; call it exactly once before any other operation.
	Init() error

	// InitCPU prepares the given core to receive interrupts. Call it
	// once on (or for) each participating core after Init.
	InitCPU(core int) error

	// Enable allows the interrupt to be forwarded to a core.
	Enable(id IntId) error

	// Disable stops the interrupt from being forwarded.
	Disable(id IntId) error

	// SetPriority assigns the 8-bit priority; lower values are more
	// urgent.
	SetPriority(id IntId, priority uint8) error

	// SetTriggerMode configures edge or level sensing. SGIs are edge
	// triggered by definition and are rejected.
	SetTriggerMode(id IntId, mode TriggerMode) error

	// Acknowledge returns the highest-priority pending interrupt for
	// the calling core and marks it active. It never blocks; with
	// nothing pending it returns IntIdNone.
	Acknowledge() IntId

	// EndInterrupt signals that servicing of id has completed,
	// permitting re-delivery. Special INTIDs are ignored.
	EndInterrupt(id IntId)

	// SendSGI raises a software-generated interrupt on the cores named
	// by target. id must be an SGI.
	SendSGI(id IntId, target SGITarget) error
}

// CPUInterface is the per-core acknowledge/completion path of a GICv3,
// reached through ICC system registers rather than memory-mapped ones.
// The production implementation executes MRS/MSR on the calling core;
// simulated implementations back the package tests and VMM device models.
type CPUInterface interface {
	// Enable routes the system-register interface to group 1 and
	// unmasks it (ICC_SRE, ICC_IGRPEN1).
	Enable()

	// SetPriorityMask sets the minimum priority an interrupt needs to
	// be delivered to this core (ICC_PMR).
	SetPriorityMask(priority uint8)

	// Acknowledge reads ICC_IAR1 and returns the raw INTID.
	Acknowledge() uint32

	// EndInterrupt writes ICC_EOIR1 for the given raw INTID.
	EndInterrupt(intid uint32)

	// SendSGI writes a pre-encoded ICC_SGI1R value.
	SendSGI(value uint64)
}

// SGITargetMode selects which cores receive a software-generated
// interrupt.
type SGITargetMode int

const (
	// SGITargetList delivers to the cores named explicitly: CPUMask on
	// GICv2, Affinity plus TargetList on GICv3.
	SGITargetList SGITargetMode = iota
	// SGITargetAllOthers delivers to every core except the sender.
	SGITargetAllOthers
	// SGITargetSelf delivers only to the sending core.
	SGITargetSelf
)

// SGITarget names the destination cores for SendSGI.
type SGITarget struct {
	Mode SGITargetMode

	// CPUMask is the GICv2 destination: one bit per core, up to eight
	// cores. Used only with SGITargetList.
	CPUMask uint8

	// Affinity addresses the destination cluster on GICv3 and
	// TargetList selects cores within it (bit n = Aff0 value n).
	// Used only with SGITargetList.
	Affinity   Affinity
	TargetList uint16
}
