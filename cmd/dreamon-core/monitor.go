package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dreamon-emu/sh4core/internal/core"
)

// newMonitorCmd builds the interactive debugger subcommand. Input is read
// line-by-line in raw mode (grounded on terminal_host.go's MakeRaw/Restore
// pairing) so the monitor can be driven from a plain pipe in tests without
// requiring a real tty; raw mode is best-effort and silently skipped when
// stdin isn't a terminal.
func newMonitorCmd() *cobra.Command {
	var loadPath string
	var loadAddr string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Interactive single-step / breakpoint debugger over stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.NewMachine()
			if err != nil {
				return err
			}
			m.Reset()
			m.SetUseJIT(false) // single-step must never skip past a whole translated block

			if loadPath != "" {
				addr, err := parseAddr(loadAddr)
				if err != nil {
					return err
				}
				if err := loadImage(m, loadPath, addr); err != nil {
					return err
				}
			}

			fd := int(os.Stdin.Fd())
			var restore *term.State
			if term.IsTerminal(fd) {
				oldState, err := term.MakeRaw(fd)
				if err != nil {
					fmt.Fprintf(os.Stderr, "monitor: failed to set raw mode: %v\n", err)
				} else {
					restore = oldState
				}
			}
			defer func() {
				if restore != nil {
					_ = term.Restore(fd, restore)
				}
			}()

			runMonitorLoop(m, os.Stdin, os.Stdout)
			return nil
		},
	}
	cmd.Flags().StringVar(&loadPath, "load", "", "binary image to load into main RAM before debugging")
	cmd.Flags().StringVar(&loadAddr, "load-addr", "0x0C000000", "physical address to load the image at")
	return cmd
}

// runMonitorLoop implements a tiny command language: step [n], continue,
// break <addr>, clear <addr>, regs, quit. Raw-mode terminals send \r for
// Enter, so that's translated to \n here just as terminal_host.go does for
// the guest TERM_IN device.
func runMonitorLoop(m *core.Machine, in *os.File, out *os.File) {
	reader := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	defer w.Flush()

	fmt.Fprintln(w, "dreamon-core monitor. commands: step [n], continue, break <addr>, clear <addr>, regs, quit")
	w.Flush()

	for {
		fmt.Fprint(w, "(dreamon) ")
		w.Flush()

		var sb strings.Builder
		var err error
		for {
			var ch byte
			if ch, err = reader.ReadByte(); err != nil || ch == '\r' || ch == '\n' {
				break
			}
			sb.WriteByte(ch)
		}
		if err != nil {
			return
		}
		fields := strings.Fields(sb.String())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "q":
			return
		case "regs", "r":
			printRegs(w, m)
		case "step", "s":
			n := int64(1)
			if len(fields) > 1 {
				if v, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					n = v
				}
			}
			for i := int64(0); i < n; i++ {
				m.RunSlice(cpuStepBudgetNs)
				if m.LastStopReason() == core.StopHalted {
					fmt.Fprintf(w, "halted: %s\n", m.CPU.HaltReason())
					break
				}
			}
			printRegs(w, m)
		case "continue", "c":
			m.RunSlice(freeRunSliceNs)
			switch m.LastStopReason() {
			case core.StopBreakpoint:
				fmt.Fprintf(w, "breakpoint hit at pc=%#08x\n", m.CPU.Regs.PC)
			case core.StopHalted:
				fmt.Fprintf(w, "halted: %s\n", m.CPU.HaltReason())
			}
			printRegs(w, m)
		case "break", "b":
			if len(fields) < 2 {
				fmt.Fprintln(w, "usage: break <addr>")
				continue
			}
			addr, err := parseAddr(fields[1])
			if err != nil {
				fmt.Fprintln(w, err)
				continue
			}
			m.SetBreakpoint(addr)
			fmt.Fprintf(w, "breakpoint set at %#08x\n", addr)
		case "clear":
			if len(fields) < 2 {
				fmt.Fprintln(w, "usage: clear <addr>")
				continue
			}
			addr, err := parseAddr(fields[1])
			if err != nil {
				fmt.Fprintln(w, err)
				continue
			}
			m.ClearBreakpoint(addr)
			fmt.Fprintf(w, "breakpoint cleared at %#08x\n", addr)
		default:
			fmt.Fprintf(w, "unknown command: %s\n", fields[0])
		}
		w.Flush()
	}
}

// cpuStepBudgetNs is sized so a single "step" command advances exactly one
// instruction's worth of slice_cycle (see internal/core.cpuPeriodNs) without
// a second instruction sneaking in under the same RunSlice call.
const cpuStepBudgetNs = 5

// freeRunSliceNs is a deliberately large slice handed to "continue"; a
// breakpoint or halt cuts it short long before the budget is exhausted.
const freeRunSliceNs = 1 << 40

func printRegs(w *bufio.Writer, m *core.Machine) {
	r := m.CPU.Regs
	fmt.Fprintf(w, "pc=%#08x new_pc=%#08x pr=%#08x sr=%#08x t=%v\n", r.PC, r.NewPC, r.PR, r.ReadSR(), r.T)
}
