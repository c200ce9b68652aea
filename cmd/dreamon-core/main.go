// Command dreamon-core is a thin CLI over the module-registration contract
// from spec §6 (init/reset/run_slice/save_state/load_state). It is not part
// of the core; it only drives internal/core.Machine from the terminal.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamon-emu/sh4core/internal/core"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dreamon-core",
		Short: "SH4/ASIC/ARM7 core driver",
	}

	var loadPath string
	var loadAddr string
	var sliceNs int64
	var useJIT bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load a binary image and run it until it hits a breakpoint, halts or faults",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.NewMachine()
			if err != nil {
				return fmt.Errorf("building machine: %w", err)
			}
			m.Reset()
			m.SetUseJIT(useJIT)

			if loadPath != "" {
				addr, err := parseAddr(loadAddr)
				if err != nil {
					return err
				}
				if err := loadImage(m, loadPath, addr); err != nil {
					return err
				}
			}

			for {
				m.RunSlice(sliceNs)
				switch m.LastStopReason() {
				case core.StopBreakpoint:
					fmt.Printf("stopped at breakpoint, pc=%#08x\n", m.CPU.Regs.PC)
					return nil
				case core.StopHalted:
					fmt.Printf("halted: %s\n", m.CPU.HaltReason())
					return nil
				case core.StopFatal:
					return fmt.Errorf("fatal error during run_slice")
				case core.StopSliceDone:
					// Guest kept running past the slice budget; hand it
					// another slice (spec §4.3's scheduler round-robins
					// slices indefinitely until a module halts or faults).
				}
			}
		},
	}
	runCmd.Flags().StringVar(&loadPath, "load", "", "binary image to load into main RAM before running")
	runCmd.Flags().StringVar(&loadAddr, "load-addr", "0x0C000000", "physical address to load the image at")
	runCmd.Flags().Int64Var(&sliceNs, "slice-ns", 1_000_000_000, "nanoseconds of guest time per run_slice call")
	runCmd.Flags().BoolVar(&useJIT, "jit", true, "dispatch through the translation cache instead of the interpreter alone")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Build a machine and immediately reset it (sanity check / smoke test)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.NewMachine()
			if err != nil {
				return err
			}
			m.Reset()
			fmt.Printf("reset ok: pc=%#08x sr=%#08x vbr=%#08x\n", m.CPU.Regs.PC, m.CPU.Regs.ReadSR(), m.CPU.Regs.VBR)
			return nil
		},
	}

	var saveOut string
	saveCmd := &cobra.Command{
		Use:   "save-state [binary]",
		Short: "Load a binary, run it for a slice, then write a save-state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.NewMachine()
			if err != nil {
				return err
			}
			m.Reset()
			addr, err := parseAddr(loadAddr)
			if err != nil {
				return err
			}
			if err := loadImage(m, args[0], addr); err != nil {
				return err
			}
			m.RunSlice(sliceNs)

			f, err := os.Create(saveOut)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := m.SaveState(f); err != nil {
				return fmt.Errorf("save-state: %w", err)
			}
			fmt.Printf("wrote %s\n", saveOut)
			return nil
		},
	}
	saveCmd.Flags().StringVar(&saveOut, "out", "dreamon.state", "save-state output path")
	saveCmd.Flags().StringVar(&loadAddr, "load-addr", "0x0C000000", "physical address to load the image at")
	saveCmd.Flags().Int64Var(&sliceNs, "slice-ns", 1_000_000, "nanoseconds to run before snapshotting")

	loadCmd := &cobra.Command{
		Use:   "load-state [state-file]",
		Short: "Load a save-state file and report the restored register state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.NewMachine()
			if err != nil {
				return err
			}
			m.Reset()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if err := m.LoadState(f); err != nil {
				return fmt.Errorf("load-state: %w", err)
			}
			fmt.Printf("restored: pc=%#08x sr=%#08x\n", m.CPU.Regs.PC, m.CPU.Regs.ReadSR())
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, resetCmd, saveCmd, loadCmd, newMonitorCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

// loadImage reads a flat binary and writes it byte-by-byte into the
// machine's physical address space via the bus's direct byte path, which
// skips the store-queue and MMU handling of guest accesses but still
// dispatches to MMIO regions, so a loader targeting the AICA mirror or a
// shadow peripheral still lands correctly.
func loadImage(m *core.Machine, path string, addr uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for i, b := range data {
		m.Mem.WriteByteDirect(addr+uint32(i), b)
	}
	fmt.Printf("loaded %d bytes at %#08x\n", len(data), addr)
	return nil
}
