package gic

import (
	"errors"
	"testing"

	"github.com/tinyrange/gic/internal/gicsim"
	"github.com/tinyrange/gic/mmio"
)

func newV3UnderTest(t *testing.T, cores int) (*GicV3, *gicsim.V3) {
	t.Helper()
	sim := gicsim.NewV3(cores)
	redists := make([]mmio.Space, cores)
	for core := range redists {
		redists[core] = sim.Redistributor(core)
	}
	g, err := NewGicV3(GicV3Config{
		Distributor:    sim.Distributor(),
		Redistributors: redists,
		CPU:            sim.ICC(0),
	})
	if err != nil {
		t.Fatalf("NewGicV3: %v", err)
	}
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := g.InitCPU(0); err != nil {
		t.Fatalf("InitCPU: %v", err)
	}
	return g, sim
}

func TestGicV3ConfigValidation(t *testing.T) {
	if _, err := NewGicV3(GicV3Config{}); err == nil {
		t.Fatalf("empty config accepted")
	}
	sim := gicsim.NewV3(1)
	if _, err := NewGicV3(GicV3Config{Distributor: sim.Distributor()}); err == nil {
		t.Fatalf("config without redistributors accepted")
	}
	if _, err := NewGicV3(GicV3Config{
		Distributor:    sim.Distributor(),
		Redistributors: []mmio.Space{sim.Redistributor(0)},
	}); err == nil {
		t.Fatalf("config without CPU interface accepted")
	}
}

func TestGicV3InitWakesRedistributor(t *testing.T) {
	_, sim := newV3UnderTest(t, 2)
	if !sim.Redistributor(0).Awake() {
		t.Fatalf("redistributor 0 still asleep after InitCPU")
	}
	// Core 1 has not been brought up.
	if sim.Redistributor(1).Awake() {
		t.Fatalf("redistributor 1 awake without InitCPU")
	}
	if !sim.ICC(0).Enabled() {
		t.Fatalf("group 1 not enabled on core 0")
	}
	if got := sim.ICC(0).PriorityMask(); got != 0xFF {
		t.Fatalf("priority mask=%#x, want 0xFF", got)
	}
}

func TestGicV3CoreRange(t *testing.T) {
	g, _ := newV3UnderTest(t, 2)
	if err := g.InitCPU(2); !errors.Is(err, ErrCoreOutOfRange) {
		t.Fatalf("InitCPU(2) error %v, want ErrCoreOutOfRange", err)
	}
	if err := g.InitCPU(-1); !errors.Is(err, ErrCoreOutOfRange) {
		t.Fatalf("InitCPU(-1) error %v, want ErrCoreOutOfRange", err)
	}
}

func TestGicV3SPIDeliveryWithRouting(t *testing.T) {
	g, sim := newV3UnderTest(t, 2)

	spi, _ := NewSPI(8) // INTID 40
	if err := g.SetPriority(spi, 0x40); err != nil {
		t.Fatalf("SetPriority: %v", err)
	}
	if err := g.SetTriggerMode(spi, Edge); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	if err := g.SetRoute(spi, Affinity{Aff0: 0}); err != nil {
		t.Fatalf("SetRoute: %v", err)
	}
	if err := g.Enable(spi); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	sim.Distributor().AssertSPI(40)
	got := g.Acknowledge()
	if got != spi {
		t.Fatalf("Acknowledge=%v, want %v", got, spi)
	}
	if again := g.Acknowledge(); again != IntIdNone {
		t.Fatalf("second Acknowledge=%v, want IntIdNone", again)
	}
	g.EndInterrupt(got)
	if sim.Distributor().IsActive(40) {
		t.Fatalf("INTID 40 still active after EOI")
	}
}

func TestGicV3RoutingAwayFromCore(t *testing.T) {
	g, sim := newV3UnderTest(t, 2)

	spi, _ := NewSPI(8)
	if err := g.Enable(spi); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	// Routed to core 1; core 0 must not see it.
	if err := g.SetRoute(spi, Affinity{Aff0: 1}); err != nil {
		t.Fatalf("SetRoute: %v", err)
	}
	sim.Distributor().AssertSPI(40)
	if got := g.Acknowledge(); got != IntIdNone {
		t.Fatalf("Acknowledge on core 0=%v, want IntIdNone", got)
	}
	if got := sim.Distributor().Route(40); got != uint64(1) {
		t.Fatalf("router value=%#x, want 1", got)
	}

	// 1-of-N routing makes it deliverable anywhere again.
	if err := g.SetRouteAll(spi); err != nil {
		t.Fatalf("SetRouteAll: %v", err)
	}
	if got := g.Acknowledge(); got != spi {
		t.Fatalf("Acknowledge after SetRouteAll=%v, want %v", got, spi)
	}
	g.EndInterrupt(spi)
}

func TestGicV3RouteRejectsPrivate(t *testing.T) {
	g, _ := newV3UnderTest(t, 1)
	ppi, _ := NewPPI(0)
	if err := g.SetRoute(ppi, Affinity{}); !errors.Is(err, ErrClassUnsupported) {
		t.Fatalf("SetRoute(PPI) error %v, want ErrClassUnsupported", err)
	}
	if err := g.SetRouteAll(IntIdNone); !errors.Is(err, ErrClassUnsupported) {
		t.Fatalf("SetRouteAll(IntIdNone) error %v, want ErrClassUnsupported", err)
	}
}

func TestGicV3PrivateInterrupts(t *testing.T) {
	g, sim := newV3UnderTest(t, 1)

	ppi, _ := NewPPI(11) // INTID 27, the virtual timer on most SoCs
	if err := g.SetPriority(ppi, 0x10); err != nil {
		t.Fatalf("SetPriority: %v", err)
	}
	if err := g.Enable(ppi); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !sim.Redistributor(0).IsEnabled(27) {
		t.Fatalf("PPI 11 not enabled in redistributor")
	}
	if got := sim.Redistributor(0).Priority(27); got != 0x10 {
		t.Fatalf("PPI priority=%#x, want 0x10", got)
	}

	sim.Redistributor(0).AssertPPI(27)
	if got := g.Acknowledge(); got != ppi {
		t.Fatalf("Acknowledge=%v, want %v", got, ppi)
	}
	g.EndInterrupt(ppi)
}

func TestGicV3ExtendedRanges(t *testing.T) {
	g, sim := newV3UnderTest(t, 1)

	eppi, _ := NewEPPI(2) // INTID 1058, redistributor lane 34
	if err := g.Enable(eppi); err != nil {
		t.Fatalf("Enable(EPPI): %v", err)
	}
	if err := g.SetPriority(eppi, 0x30); err != nil {
		t.Fatalf("SetPriority(EPPI): %v", err)
	}
	if !sim.Redistributor(0).IsEnabled(34) {
		t.Fatalf("EPPI 2 not enabled in extended redistributor lane")
	}
	if got := sim.Redistributor(0).Priority(34); got != 0x30 {
		t.Fatalf("EPPI priority=%#x, want 0x30", got)
	}

	espi, _ := NewESPI(5) // INTID 4101
	if err := g.Enable(espi); err != nil {
		t.Fatalf("Enable(ESPI): %v", err)
	}
	if err := g.SetTriggerMode(espi, Edge); err != nil {
		t.Fatalf("SetTriggerMode(ESPI): %v", err)
	}
	if err := g.SetRoute(espi, Affinity{Aff0: 0}); err != nil {
		t.Fatalf("SetRoute(ESPI): %v", err)
	}
}

// bringUpSecondary prepares a core the driver under test is not bound
// to: wake it, enable group 1, and enable the given SGI in its
// redistributor.
func bringUpSecondary(t *testing.T, g *GicV3, sim *gicsim.V3, core int, sgi IntId) {
	t.Helper()
	if err := g.InitCPU(core); err != nil {
		t.Fatalf("InitCPU(%d): %v", core, err)
	}
	sim.ICC(core).Enable()
	sim.Redistributor(core).Write32(gicrIsenabler0, 1<<sgi.Raw())
}

func TestGicV3SGIEncoding(t *testing.T) {
	g, sim := newV3UnderTest(t, 4)

	sgi, _ := NewSGI(5)
	for core := 0; core < 4; core++ {
		bringUpSecondary(t, g, sim, core, sgi)
	}
	if err := g.SendSGI(sgi, SGITarget{
		Mode:       SGITargetList,
		Affinity:   Affinity{},
		TargetList: 0b0110, // cores 1 and 2
	}); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	for core, want := range map[int]bool{0: false, 1: true, 2: true, 3: false} {
		got := sim.ICC(core).Acknowledge()
		if want && got != 5 {
			t.Fatalf("core %d Acknowledge=%d, want SGI 5", core, got)
		}
		if !want && got != 1023 {
			t.Fatalf("core %d Acknowledge=%d, want spurious", core, got)
		}
		if want {
			sim.ICC(core).EndInterrupt(got)
		}
	}
}

func TestGicV3SGIAllOthers(t *testing.T) {
	g, sim := newV3UnderTest(t, 3)

	sgi, _ := NewSGI(1)
	for core := 0; core < 3; core++ {
		bringUpSecondary(t, g, sim, core, sgi)
	}
	if err := g.SendSGI(sgi, SGITarget{Mode: SGITargetAllOthers}); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	// The sender (core 0) must not receive its own broadcast.
	if got := g.Acknowledge(); got != IntIdNone {
		t.Fatalf("sender Acknowledge=%v, want IntIdNone", got)
	}
	for core := 1; core < 3; core++ {
		if got := sim.ICC(core).Acknowledge(); got != 1 {
			t.Fatalf("core %d Acknowledge=%d, want SGI 1", core, got)
		}
		sim.ICC(core).EndInterrupt(1)
	}
}

func TestGicV3SGISelf(t *testing.T) {
	g, _ := newV3UnderTest(t, 2)

	sgi, _ := NewSGI(7)
	if err := g.Enable(sgi); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := g.SendSGI(sgi, SGITarget{Mode: SGITargetSelf}); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	if got := g.Acknowledge(); got != sgi {
		t.Fatalf("Acknowledge=%v, want %v", got, sgi)
	}
	g.EndInterrupt(sgi)
}

func TestGicV3SGIRejectsNonSGI(t *testing.T) {
	g, _ := newV3UnderTest(t, 1)
	spi, _ := NewSPI(0)
	if err := g.SendSGI(spi, SGITarget{Mode: SGITargetSelf}); !errors.Is(err, ErrClassUnsupported) {
		t.Fatalf("SendSGI(SPI) error %v, want ErrClassUnsupported", err)
	}
}

func TestGicV3SGITriggerModeRejected(t *testing.T) {
	g, _ := newV3UnderTest(t, 1)
	sgi, _ := NewSGI(0)
	if err := g.SetTriggerMode(sgi, Level); !errors.Is(err, ErrClassUnsupported) {
		t.Fatalf("SetTriggerMode(SGI) error %v, want ErrClassUnsupported", err)
	}
}

func TestGicV3PriorityMask(t *testing.T) {
	g, sim := newV3UnderTest(t, 1)
	g.SetPriorityMask(0x80)
	if got := sim.ICC(0).PriorityMask(); got != 0x80 {
		t.Fatalf("priority mask=%#x, want 0x80", got)
	}
}
