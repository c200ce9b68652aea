package core

import (
	"sync"

	"github.com/dreamon-emu/sh4core/internal/asic"
)

// irqLevel is the external interrupt priority SH4 hardware assigns to
// each of the three ASIC-routed lines. A line whose level is less than or
// equal to the current SR.IMASK is masked (spec §4.3 run-loop step 1).
// INTEVT values match the real Dreamcast SH4's external-interrupt vector
// table for these three priority levels; not pinned down by the
// retrieval pack's original_source slice, so they are the
// literature-standard encoding rather than a verified source excerpt.
const (
	levelIRQ9  = 9
	levelIRQ11 = 11
	levelIRQ13 = 13

	intevtIRQ9  = 0x320
	intevtIRQ11 = 0x360
	intevtIRQ13 = 0x3A0
)

// InterruptController tracks the three ASIC-routed external interrupt
// lines and resolves which (if any) is eligible for delivery against the
// current SR.IMASK, implementing asic.InterruptController.
type InterruptController struct {
	mu      sync.Mutex
	lineSet [3]bool // indexed by asic.Line
}

func NewInterruptController() *InterruptController { return &InterruptController{} }

func (c *InterruptController) RaiseLine(line asic.Line) {
	c.mu.Lock()
	c.lineSet[line] = true
	c.mu.Unlock()
}

func (c *InterruptController) ClearLine(line asic.Line) {
	c.mu.Lock()
	c.lineSet[line] = false
	c.mu.Unlock()
}

// Pending reports the INTEVT code of the highest-priority line currently
// set and not masked by imask, if any. Ties cannot occur: the three lines
// have distinct fixed priorities.
func (c *InterruptController) Pending(imask uint32) (intevt uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	type candidate struct {
		set    bool
		level  uint32
		intevt uint32
	}
	candidates := [3]candidate{
		{c.lineSet[asic.LineIRQ13], levelIRQ13, intevtIRQ13},
		{c.lineSet[asic.LineIRQ11], levelIRQ11, intevtIRQ11},
		{c.lineSet[asic.LineIRQ9], levelIRQ9, intevtIRQ9},
	}
	best := candidate{}
	for _, cand := range candidates {
		if cand.set && cand.level > imask && cand.level > best.level {
			best = cand
		}
	}
	if best.set {
		return best.intevt, true
	}
	return 0, false
}
