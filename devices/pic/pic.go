// Package pic implements an 8259A-equivalent Programmable Interrupt
// Controller: the device whose timing feeds directly back into the CPU core
// (spec §4.4). It priority-encodes up to 8 IRQ lines into a single `intr`
// signal and answers the CPU's INTA bus-cycle pair with a vector byte.
//
// Only the single-PIC configuration is modeled; a slave-chained PIC is a
// second instance wired through IRQ2 by the host the same way the original
// MartyPC machine assembly does, not something this package needs to know
// about internally.
package pic

import "github.com/8088cycle/marty88/bus"

// Registers: ICW1-4 initialization, OCW1-3 operation.
const (
	icw1Mask = 0x10 // bit 4 of the first byte written to the command port identifies ICW1
)

// PIC is an 8259A-equivalent interrupt controller.
type PIC struct {
	irr uint8 // Interrupt Request Register: lines currently asserted
	isr uint8 // In-Service Register: lines currently being serviced
	imr uint8 // Interrupt Mask Register

	vectorBase uint8 // base vector installed via ICW2

	initSeq   int  // which ICW the controller expects next (0 = none in progress)
	expectICW4 bool
	autoEOI   bool

	specialMask bool
	rotateOnEOI bool
}

// New creates a PIC with all lines masked and IRR/ISR clear, matching the
// 8259A's power-on state before initialization.
func New() *PIC {
	return &PIC{imr: 0xFF}
}

// Raise asserts IRQ line n (0-7), edge-triggered: it stays pending in IRR
// until acknowledged via INTA, regardless of whether Raise is called again
// before then.
func (p *PIC) Raise(line uint8) {
	if line > 7 {
		return
	}
	p.irr |= 1 << line
}

// Lower clears IRQ line n, for level-triggered devices that explicitly
// deassert (most PC/XT devices are effectively edge-triggered from the
// PIC's point of view; Lower exists for devices, like the PIT, that model
// a literal level signal).
func (p *PIC) Lower(line uint8) {
	if line > 7 {
		return
	}
	p.irr &^= 1 << line
}

// Tick is a no-op for the PIC itself: it has no internal clock divider. It
// exists so PIC satisfies bus.Device and can sit in the machine's tick list
// alongside PIT/DMA for a uniform assembly step.
func (p *PIC) Tick() bus.Requests {
	return bus.Requests{}
}

// pendingLine returns the highest-priority unmasked, unserviced IRQ line
// with a request pending, or -1 if none. IRQ0 has the highest priority.
func (p *PIC) pendingLine() int {
	active := p.irr &^ p.imr
	if active == 0 {
		return -1
	}
	for line := 0; line < 8; line++ {
		bit := uint8(1 << line)
		if active&bit == 0 {
			continue
		}
		// Fully-nested mode: a line is only eligible if no equal-or-higher
		// priority line (lines 0..line, inclusive) is currently in service.
		// Special mask mode lifts that restriction so a masked-out lower
		// priority ISR entry cannot starve a higher-numbered request.
		if !p.specialMask {
			priorityMask := uint8(1<<(line+1)) - 1
			if p.isr&priorityMask != 0 {
				continue
			}
		}
		return line
	}
	return -1
}

// INTR reports whether the PIC currently wants to drive the CPU's INTR pin
// high: the EU polls this at instruction boundaries (spec §4.3.2 "Hardware
// IRQ").
func (p *PIC) INTR() bool {
	return p.pendingLine() >= 0
}

// Acknowledge performs the CPU-visible half of an INTA bus-cycle pair: it
// marks the highest-priority pending line in-service and returns the vector
// byte the CPU should use to index the IVT. Call exactly once per accepted
// hardware interrupt, after the BIU's two INTA cycles have elapsed.
func (p *PIC) Acknowledge() uint8 {
	line := p.pendingLine()
	if line < 0 {
		// Spurious: the 8259A drives IRQ7's vector when no line is
		// actually pending at the second INTA pulse.
		return p.vectorBase + 7
	}
	p.isr |= 1 << line
	// Edge-triggered lines are cleared from IRR once acknowledged; the PIT
	// and keyboard controller re-raise on their next edge.
	p.irr &^= 1 << line
	return p.vectorBase + uint8(line)
}

// EOI processes a non-specific end-of-interrupt command (OCW2, the common
// case used by PC/XT BIOS ISRs): it clears the highest-priority in-service
// bit, which in fully-nested mode is the lowest-numbered line in service.
func (p *PIC) EOI() {
	for line := 0; line < 8; line++ {
		bit := uint8(1 << line)
		if p.isr&bit != 0 {
			p.isr &^= bit
			return
		}
	}
}

// SpecificEOI clears the in-service bit for a specific line, for OCW2
// specific-EOI commands.
func (p *PIC) SpecificEOI(line uint8) {
	if line > 7 {
		return
	}
	p.isr &^= 1 << line
}

// ReadIMR returns the current interrupt mask register (OCW1 readback).
func (p *PIC) ReadIMR() uint8 { return p.imr }

// WriteIMR sets the interrupt mask register (OCW1).
func (p *PIC) WriteIMR(v uint8) { p.imr = v }

// ReadIRR returns the interrupt request register (OCW3 readback mode).
func (p *PIC) ReadIRR() uint8 { return p.irr }

// ReadISR returns the in-service register (OCW3 readback mode).
func (p *PIC) ReadISR() uint8 { return p.isr }

// PortWriteU8 implements the bus.PortDevice command/data port pair at
// relative offsets 0 (command) and 1 (data), matching the 8259A's two
// address lines (A0).
func (p *PIC) PortWriteU8(port uint16, val uint8) int {
	switch port {
	case 0: // command port
		if val&icw1Mask != 0 {
			// ICW1: start initialization sequence.
			p.expectICW4 = val&0x01 != 0
			p.initSeq = 2 // next write is ICW2
			p.irr = 0
			p.isr = 0
			p.imr = 0
			return 0
		}
		// OCW2/OCW3 selection: bit 3 (0x08) distinguishes OCW3 from OCW2.
		if val&0x08 != 0 {
			// OCW3.
			p.specialMask = val&0x20 != 0
			return 0
		}
		// OCW2: EOI commands. Bits 7:5 select rotate/specific behavior;
		// the common PC BIOS usage is non-specific EOI (0x20).
		if val&0x20 != 0 {
			if val&0x40 != 0 {
				p.SpecificEOI(val & 0x07)
			} else {
				p.EOI()
			}
			p.rotateOnEOI = val&0x80 != 0
		}
		return 0
	case 1: // data port
		switch p.initSeq {
		case 2: // ICW2: vector base
			p.vectorBase = val & 0xF8
			if p.expectICW4 {
				p.initSeq = 4
			} else {
				p.initSeq = 0
			}
			return 0
		case 4: // ICW4
			p.autoEOI = val&0x02 != 0
			p.initSeq = 0
			return 0
		default:
			p.imr = val
			return 0
		}
	}
	return 0
}

// PortReadU8 returns IRR on the command port (offset 0) and the interrupt
// mask on the data port (offset 1). OCW3's read-register select bits are
// not decoded, so ISR cannot be read through the ports; ReadISR exposes it.
func (p *PIC) PortReadU8(port uint16) (uint8, int) {
	switch port {
	case 0:
		return p.irr, 0
	case 1:
		return p.imr, 0
	}
	return 0xFF, 0
}
