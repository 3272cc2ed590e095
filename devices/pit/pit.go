// Package pit implements an 8253/8254-equivalent Programmable Interval
// Timer: three 16-bit down-counting channels clocked at a fixed divisor of
// the system crystal. Channel 0 drives IRQ0 (the system tick), channel 1
// historically drives DRAM refresh HOLD requests, and channel 2 drives the
// PC speaker (spec §4.4).
package pit

import "github.com/8088cycle/marty88/bus"

// Mode selects one of the 8253's six counting modes. Only the subset the
// PC/XT BIOS actually programs is modeled with full fidelity (0, 2, 3);
// the rest decrement and report terminal count the same way mode 0 does,
// which is close enough for any software that merely counts on them.
type Mode uint8

const (
	Mode0 Mode = iota // interrupt on terminal count
	Mode1             // hardware retriggerable one-shot
	Mode2             // rate generator
	Mode3             // square wave generator
	Mode4             // software triggered strobe
	Mode5             // hardware triggered strobe
)

type channel struct {
	mode      Mode
	bcd       bool
	reload    uint16
	counter   uint16
	latch     uint16
	latched   bool
	loMode    bool // RW mode is LSB-only
	hiMode    bool // RW mode is MSB-only
	awaitHi   bool // in lobyte/hibyte mode, waiting on the high byte write
	gate      bool
	out       bool
	armed     bool // a reload value has been programmed at least once
}

// PIT is an 8253/8254-equivalent interval timer with three channels.
type PIT struct {
	ch [3]channel

	// refreshToggle flips every time channel 1 (in mode 2, the PC/XT
	// refresh configuration) reaches terminal count, modeling the classic
	// "refresh bit" seen on port 0x61 bit 4 as a square wave.
	refreshToggle bool

	// speakerGate mirrors port 0x61 bit 0/1, wired in by the host (the PIT
	// itself does not own port 0x61; the chipset glue logic does).
	speakerGate bool

	irq0Pending bool
	refreshPend bool
}

// New creates a PIT with all channels gated on and counters at their
// 8253 power-on undefined state (modeled here as the maximum count, 0,
// which the 8253 interprets as 0x10000).
func New() *PIT {
	p := &PIT{}
	for i := range p.ch {
		p.ch[i].gate = true
	}
	return p
}

// SetGate sets channel n's gate input. Channel 2's gate is driven by port
// 0x61 bit 0 on PC/XT hardware (the speaker enable bit); the host wires
// that through here rather than the PIT owning port 0x61 itself.
func (p *PIT) SetGate(channel int, level bool) {
	if channel < 0 || channel > 2 {
		return
	}
	p.ch[channel].gate = level
}

// Tick advances all three channels by one PIT clock (already divided down
// from the system crystal by the host's clock ratio) and returns the
// request lines channel 0 (IRQ0) and channel 1 (refresh HOLD) want to
// assert this clock.
func (p *PIT) Tick() bus.Requests {
	p.tickChannel(0)
	p.tickChannel(1)
	p.tickChannel(2)

	req := bus.Requests{IRQ: p.irq0Pending, Refresh: p.refreshPend}
	p.irq0Pending = false
	p.refreshPend = false
	return req
}

func (p *PIT) tickChannel(n int) {
	c := &p.ch[n]
	if !c.armed || !c.gate {
		return
	}

	prevOut := c.out

	switch c.mode {
	case Mode2: // rate generator: reload on terminal count, pulse low for one clock
		c.counter--
		if c.counter == 0 {
			c.counter = c.reload
			if c.reload == 0 {
				c.counter = 0x10000 - 1
			}
			c.out = false
			p.fireTerminalCount(n)
		} else if !prevOut {
			c.out = true
		}
	case Mode3: // square wave: counts down by 2, toggling out at the midpoint
		if c.counter <= 2 {
			c.counter = c.reload
			c.out = !c.out
			if c.out {
				p.fireTerminalCount(n)
			}
		} else {
			c.counter -= 2
		}
	default: // Mode0 and the unmodeled 1/4/5: plain down-count to terminal count
		if c.counter == 0 {
			return
		}
		c.counter--
		if c.counter == 0 {
			c.out = true
			p.fireTerminalCount(n)
		}
	}
}

func (p *PIT) fireTerminalCount(n int) {
	switch n {
	case 0:
		p.irq0Pending = true
	case 1:
		p.refreshToggle = !p.refreshToggle
		p.refreshPend = true
	}
}

// PortReadU8 implements the 4 PIT ports: 0x40/0x41/0x42 are the channel
// data ports, 0x43 is write-only (mode/command) and reads back 0xFF.
func (p *PIT) PortReadU8(port uint16) (uint8, int) {
	if port > 2 {
		return 0xFF, 0
	}
	c := &p.ch[port]
	val := c.counter
	if c.latched {
		val = c.latch
	}
	switch {
	case c.loMode:
		if c.latched {
			c.latched = false
		}
		return uint8(val), 0
	case c.hiMode:
		if c.latched {
			c.latched = false
		}
		return uint8(val >> 8), 0
	default: // lobyte/hibyte
		if !c.awaitHi {
			c.awaitHi = true
			return uint8(val), 0
		}
		c.awaitHi = false
		if c.latched {
			c.latched = false
		}
		return uint8(val >> 8), 0
	}
}

// PortWriteU8 implements the PIT's command port (0x43) and the three
// channel data ports (0x40-0x42).
func (p *PIT) PortWriteU8(port uint16, val uint8) int {
	if port == 3 {
		p.writeCommand(val)
		return 0
	}
	if port > 2 {
		return 0
	}
	c := &p.ch[port]

	writeLo := func(v uint8) {
		c.reload = (c.reload &^ 0xFF) | uint16(v)
	}
	writeHi := func(v uint8) {
		c.reload = (c.reload & 0xFF) | uint16(v)<<8
	}

	switch {
	case c.loMode:
		writeLo(val)
		p.armChannel(int(port))
	case c.hiMode:
		writeHi(val)
		p.armChannel(int(port))
	default: // lobyte/hibyte
		if !c.awaitHi {
			writeLo(val)
			c.awaitHi = true
		} else {
			writeHi(val)
			c.awaitHi = false
			p.armChannel(int(port))
		}
	}
	return 0
}

func (p *PIT) armChannel(n int) {
	c := &p.ch[n]
	c.counter = c.reload
	if c.counter == 0 {
		c.counter = 0x10000 - 1
	}
	c.armed = true
	c.out = c.mode != Mode2 && c.mode != Mode3
}

// writeCommand decodes an 8253 mode/command byte (SC1 SC0 RW1 RW0 M2 M1 M0 BCD).
func (p *PIT) writeCommand(val uint8) {
	sel := (val >> 6) & 0x3
	if sel == 3 {
		// Read-back command (8254 only); not modeled beyond being a no-op,
		// since the PC/XT BIOS never issues it against an 8253.
		return
	}
	c := &p.ch[sel]

	rw := (val >> 4) & 0x3
	switch rw {
	case 0: // counter latch command
		c.latch = c.counter
		c.latched = true
		return
	case 1:
		c.loMode, c.hiMode = true, false
	case 2:
		c.loMode, c.hiMode = false, true
	case 3:
		c.loMode, c.hiMode = false, false
		c.awaitHi = false
	}

	c.mode = Mode((val >> 1) & 0x7)
	c.bcd = val&0x1 != 0
	c.armed = false
}

// Channel0TerminalCount reports whether IRQ0 is pending for this host tick;
// used by tests and by a machine assembly that wants to route it into a
// PIC instance explicitly rather than relying on bus.Requests aggregation.
func (p *PIT) Channel0TerminalCount() bool { return p.irq0Pending }

// ReadCounter returns channel n's live countdown value, for debugger use.
func (p *PIT) ReadCounter(n int) uint16 {
	if n < 0 || n > 2 {
		return 0
	}
	return p.ch[n].counter
}
