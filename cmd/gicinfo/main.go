// gicinfo decodes the configuration of a GIC distributor, either from a
// live machine through /dev/mem or from a register dump taken earlier.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/tinyrange/gic"
	"github.com/tinyrange/gic/internal/trace"
	"github.com/tinyrange/gic/mmio"
	"github.com/tinyrange/gic/platform"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gicinfo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Platform description (YAML)")
	preset := flag.String("preset", "", "Built-in platform: qemu-virt-v2, qemu-virt-v3")
	cores := flag.Int("cores", 1, "Core count for presets")
	dump := flag.String("dump", "", "Decode a distributor register dump instead of live hardware")
	dev := flag.String("dev", "/dev/mem", "Device-memory node for live access")
	showAll := flag.Bool("all", false, "List every interrupt, not just configured ones")
	noColor := flag.Bool("no-color", false, "Disable styled output")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Decode GIC distributor state from a dump or live hardware.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s --preset qemu-virt-v3 --cores 4 --dump gicd.bin\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config board.yaml\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		trace.SetWriter(os.Stderr)
	}

	cfg, err := loadPlatform(*configPath, *preset, *cores)
	if err != nil {
		return err
	}
	slog.Debug("platform", "version", cfg.Version, "cores", cfg.Cores,
		"distributor", fmt.Sprintf("%#x", cfg.Distributor.Base))

	var dist mmio.Space
	if *dump != "" {
		data, err := os.ReadFile(*dump)
		if err != nil {
			return fmt.Errorf("read dump: %w", err)
		}
		// Identification registers sit at the top of the 64KB frame;
		// pad short dumps so they read as zero.
		if len(data) < gic.GicV3DistributorSize {
			data = append(data, make([]byte, gic.GicV3DistributorSize-len(data))...)
		}
		dist = mmio.NewBuffer(data)
	} else {
		space, closeFn, err := openLive(*dev, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		dist = space
	}

	st, err := gic.InspectDistributor(dist)
	if err != nil {
		return err
	}

	styled := !*noColor && term.IsTerminal(int(os.Stdout.Fd()))
	printState(os.Stdout, st, *showAll, styled)
	return nil
}

func loadPlatform(configPath, preset string, cores int) (platform.Config, error) {
	switch {
	case configPath != "" && preset != "":
		return platform.Config{}, fmt.Errorf("--config and --preset are mutually exclusive")
	case configPath != "":
		return platform.LoadConfig(configPath)
	case preset == "qemu-virt-v2":
		return platform.QEMUVirtV2(cores), nil
	case preset == "qemu-virt-v3":
		return platform.QEMUVirtV3(cores), nil
	case preset != "":
		return platform.Config{}, fmt.Errorf("unknown preset %q", preset)
	default:
		return platform.Config{}, fmt.Errorf("either --config or --preset is required")
	}
}

func printState(w *os.File, st *gic.DistributorState, showAll, styled bool) {
	bold := func(s string) string { return s }
	dim := bold
	green := bold
	yellow := bold
	if styled {
		bold = ansi.Style{}.Bold().Styled
		dim = ansi.Style{}.Faint().Styled
		green = ansi.Style{}.ForegroundColor(ansi.Green).Styled
		yellow = ansi.Style{}.ForegroundColor(ansi.Yellow).Styled
	}

	forwarding := green("forwarding")
	if !st.Forwarding {
		forwarding = yellow("disabled")
	}
	fmt.Fprintf(w, "%s GICv%d, %d INTIDs, %s (CTLR=%#x)\n\n",
		bold("distributor:"), st.Version, st.NumInterrupts, forwarding, st.Ctlr)

	rows := st.Interrupts
	if !showAll {
		rows = st.Configured()
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, dim("no configured interrupts"))
		return
	}

	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("%-12s %-6s %-8s %-5s %-7s %s",
		"INTID", "RAW", "STATE", "PRIO", "TRIGGER", "TARGET")))
	for _, is := range rows {
		state := stateString(is)
		if is.Enabled {
			state = green(state)
		} else {
			state = dim(state)
		}
		fmt.Fprintf(w, "%-12s %-6d %-8s %#-5x %-7s %s\n",
			is.Id, is.Id.Raw(), state, is.Priority, is.Trigger, targetString(st.Version, is))
	}
}

func stateString(is gic.InterruptState) string {
	var parts []string
	if is.Enabled {
		parts = append(parts, "on")
	} else {
		parts = append(parts, "off")
	}
	if is.Pending {
		parts = append(parts, "pend")
	}
	if is.Active {
		parts = append(parts, "act")
	}
	return strings.Join(parts, "+")
}

func targetString(version int, is gic.InterruptState) string {
	if is.Id.Class() != gic.ClassSPI {
		return "-"
	}
	if version == 2 {
		return fmt.Sprintf("cores %08b", is.Targets)
	}
	if is.RouteAll {
		return "any core"
	}
	return is.Route.String()
}
