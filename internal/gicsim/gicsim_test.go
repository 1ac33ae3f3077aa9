package gicsim

import "testing"

func TestDistributorSetClearSemantics(t *testing.T) {
	sim := NewV2(1)
	d := sim.Distributor()

	// ISENABLER is write-1-to-set: zero bits leave state alone.
	d.Write32(gicdIsenabler+4, 1<<8) // INTID 40
	d.Write32(gicdIsenabler+4, 1<<10)
	if got := d.Read32(gicdIsenabler + 4); got != 1<<8|1<<10 {
		t.Fatalf("ISENABLER=%#x, want %#x", got, uint32(1<<8|1<<10))
	}

	// ICENABLER clears only the written bits.
	d.Write32(gicdIcenabler+4, 1<<8)
	if got := d.Read32(gicdIsenabler + 4); got != 1<<10 {
		t.Fatalf("ISENABLER after clear=%#x, want %#x", got, uint32(1<<10))
	}
}

func TestDistributorPriorityByteLanes(t *testing.T) {
	sim := NewV2(1)
	d := sim.Distributor()

	d.Write32(gicdIpriorityr+40, 0x40302010) // INTIDs 40-43
	for i, want := range []uint8{0x10, 0x20, 0x30, 0x40} {
		if got := d.Priority(uint32(40 + i)); got != want {
			t.Fatalf("Priority(%d)=%#x, want %#x", 40+i, got, want)
		}
	}
	if got := d.Read32(gicdIpriorityr + 40); got != 0x40302010 {
		t.Fatalf("IPRIORITYR readback=%#x", got)
	}
}

func TestClaimOrdering(t *testing.T) {
	sim := NewV2(1)
	d := sim.Distributor()

	// Two SPIs targeted at core 0, one more urgent.
	d.Write32(gicdIsenabler+4, 1<<1|1<<5) // INTIDs 33, 37
	d.Write32(gicdItargetsr+32, 0x01010101)
	d.Write32(gicdItargetsr+36, 0x01010101)
	d.Write32(gicdIpriorityr+32, 0x0000A000) // INTID 33 -> 0xA0
	d.Write32(gicdIpriorityr+36, 0x00001000) // INTID 37 -> 0x10
	d.AssertSPI(33)
	d.AssertSPI(37)

	cpu := sim.CPUInterface(0)
	if got := cpu.Read32(giccIar); got != 37 {
		t.Fatalf("first claim=%d, want 37", got)
	}
	// 33 is still deliverable while 37 is active.
	if got := cpu.Read32(giccIar); got != 33 {
		t.Fatalf("second claim=%d, want 33", got)
	}
	if got := cpu.Read32(giccIar); got != intidNone {
		t.Fatalf("third claim=%d, want %d", got, intidNone)
	}

	cpu.Write32(giccEoir, 37)
	if d.IsActive(37) {
		t.Fatalf("INTID 37 still active after EOI")
	}
}

func TestClaimHonorsTargets(t *testing.T) {
	sim := NewV2(2)
	d := sim.Distributor()

	d.Write32(gicdIsenabler+4, 1<<8) // INTID 40
	d.Write32(gicdItargetsr+40, 0x02) // core 1 only
	d.AssertSPI(40)

	if got := sim.CPUInterface(0).Read32(giccIar); got != intidNone {
		t.Fatalf("core 0 claimed %d, want spurious", got)
	}
	if got := sim.CPUInterface(1).Read32(giccIar); got != 40 {
		t.Fatalf("core 1 claim=%d, want 40", got)
	}
}

func TestV2SGIRFilters(t *testing.T) {
	sim := NewV2(3)
	d := sim.Distributor()
	d.Write32(gicdIsenabler, 0xFFFF)

	d.AccessCPU = 1
	d.Write32(gicdSgir, 1<<24|2) // all others, SGI 2
	if !d.IsPending(2) {
		t.Fatalf("SGI 2 not pending after all-others filter")
	}

	d.Write32(gicdIcpendr, 0xFFFFFFFF)
	d.Write32(gicdSgir, 2<<24|7) // self, SGI 7
	if !d.IsPending(7) {
		t.Fatalf("SGI 7 not pending after self filter")
	}
}

func TestRedistributorWakeHandshake(t *testing.T) {
	sim := NewV3(1)
	r := sim.Redistributor(0)

	if r.Awake() {
		t.Fatalf("redistributor awake out of reset")
	}
	waker := r.Read32(gicrWaker)
	if waker&gicrWakerProcessorSleep == 0 || waker&gicrWakerChildrenAsleep == 0 {
		t.Fatalf("WAKER=%#x, want both sleep bits", waker)
	}

	r.Write32(gicrWaker, waker&^uint32(gicrWakerProcessorSleep))
	if got := r.Read32(gicrWaker); got&gicrWakerChildrenAsleep != 0 {
		t.Fatalf("ChildrenAsleep still set after wake: %#x", got)
	}
	if !r.Awake() {
		t.Fatalf("redistributor still asleep")
	}
}

func TestRedistributorTyperLast(t *testing.T) {
	sim := NewV3(2)
	if typer := sim.Redistributor(0).Read64(gicrTyper); typer&(1<<4) != 0 {
		t.Fatalf("core 0 TYPER claims Last: %#x", typer)
	}
	typer := sim.Redistributor(1).Read64(gicrTyper)
	if typer&(1<<4) == 0 {
		t.Fatalf("core 1 TYPER missing Last: %#x", typer)
	}
	if aff := typer >> 32; aff != 1 {
		t.Fatalf("core 1 affinity=%#x, want 1", aff)
	}
}

func TestICCSGIRangeSelector(t *testing.T) {
	sim := NewV3(20)
	for core := 0; core < 20; core++ {
		sim.Redistributor(core).Write32(gicrIsenabler0, 1<<4)
		sim.ICC(core).Enable()
	}

	// SGI 4 to core 17: target list bit 1 with range selector 1.
	sim.ICC(0).SendSGI(uint64(4)<<24 | uint64(1)<<44 | 1<<1)
	for core := 0; core < 20; core++ {
		want := uint32(intidNone)
		if core == 17 {
			want = 4
		}
		if got := sim.ICC(core).Acknowledge(); got != want {
			t.Fatalf("core %d Acknowledge=%d, want %d", core, got, want)
		}
	}
}
