// Package dma implements an 8237A-equivalent DMA controller, modeling only
// the behavior that feeds back into CPU bus timing (spec §4.4): asserting
// HOLD for channel-0 DRAM refresh cycles (driven by the PIT's channel 1
// terminal count, per the classic PC/XT wiring) and for device-initiated
// transfers on channels 1-3. Register-level transfer semantics (address/
// count registers, single vs. block vs. demand mode, autoinitialize) are
// modeled to the extent a refresh-cycle-accurate core needs them; channels
// 1-3 expose the same register file for floppy/sound DMA consumers even
// though the core itself does not interpret the bytes moved.
package dma

import "github.com/8088cycle/marty88/bus"

const numChannels = 4

type channel struct {
	baseAddr  uint16
	baseCount uint16
	addr      uint16
	count     uint16
	mode      uint8
	masked    bool
	request   bool
	flipFlop  bool // low/high byte toggle for address/count programming
}

// Controller is an 8237A-equivalent DMA controller.
type Controller struct {
	ch         [numChannels]channel
	page       [numChannels]uint8 // page registers extend addr to 20 bits on PC/XT
	holdCycles int                // remaining system clocks the BIU has granted us
	holding    bool
}

// New creates a Controller with all channels masked, matching the 8237A
// power-on state.
func New() *Controller {
	c := &Controller{}
	for i := range c.ch {
		c.ch[i].masked = true
	}
	return c
}

// RequestRefresh asserts a HOLD request on behalf of channel 0, driven by
// the host wiring PIT channel 1's terminal count into here (the classic
// PC/XT "DMA channel 0 refresh" configuration). It is idempotent: multiple
// calls before the request is serviced just mean refresh is still pending.
func (c *Controller) RequestRefresh() {
	if !c.ch[0].masked {
		c.ch[0].request = true
	}
}

// RequestChannel asserts a device-initiated DMA request on channel n (1-3).
func (c *Controller) RequestChannel(n int) {
	if n < 1 || n > 3 || c.ch[n].masked {
		return
	}
	c.ch[n].request = true
}

// Tick reports whether any unmasked channel currently wants the bus. The
// DMA controller has no internal clock divider of its own on PC/XT
// hardware (it runs in lockstep with the CPU bus), so Tick only aggregates
// pending requests; actual transfer stepping happens in HoldAck once HOLDA
// has been granted.
func (c *Controller) Tick() bus.Requests {
	return bus.Requests{Hold: c.anyRequest()}
}

func (c *Controller) anyRequest() bool {
	for i := range c.ch {
		if c.ch[i].request && !c.ch[i].masked {
			return true
		}
	}
	return false
}

// HoldRequested implements bus.HoldDevice.
func (c *Controller) HoldRequested() bool {
	return c.anyRequest()
}

// HoldAck implements bus.HoldDevice: the BIU has granted the bus for count
// system clocks. A single-cycle refresh (or one DMA transfer unit) is
// serviced per grant; the controller clears the request for whichever
// channel it served so the BIU only re-grants if another request arrives.
func (c *Controller) HoldAck(count int) {
	c.holding = true
	c.holdCycles += count
	for i := range c.ch {
		if !c.ch[i].request || c.ch[i].masked {
			continue
		}
		c.serviceChannel(i)
		c.ch[i].request = false
		break
	}
}

func (c *Controller) serviceChannel(n int) {
	ch := &c.ch[n]
	if ch.mode&0x20 != 0 { // mode bit 5 set: address decrement
		ch.addr--
	} else { // bit5=0 => increment
		ch.addr++
	}
	if ch.count == 0 {
		if ch.mode&0x10 != 0 { // autoinitialize
			ch.addr = ch.baseAddr
			ch.count = ch.baseCount
		}
	} else {
		ch.count--
	}
}

// Holding reports whether the controller currently believes it owns the
// bus (between HoldAck and the BIU's next grant cycle boundary).
func (c *Controller) Holding() bool { return c.holding }

// ReleaseHold clears the controller's internal holding flag once the BIU
// has returned the bus to the CPU.
func (c *Controller) ReleaseHold() { c.holding = false }

// PortWriteU8 implements the 8237A's channel address/count registers
// (ports 0x00-0x07 map to channels 0-3 in pairs) and the mask/mode
// registers (0x08-0x0F region, only the subset the PC/XT BIOS/DOS actually
// use is decoded).
func (c *Controller) PortWriteU8(port uint16, val uint8) int {
	switch {
	case port <= 0x07:
		ch := int(port / 2)
		isCount := port%2 == 1
		c.writeAddrOrCount(ch, isCount, val)
	case port == 0x08: // command register: not modeled beyond accepting the write
	case port == 0x09: // request register
		n := int(val & 0x03)
		if val&0x04 != 0 {
			c.ch[n].request = true
		} else {
			c.ch[n].request = false
		}
	case port == 0x0A: // single mask bit
		n := int(val & 0x03)
		c.ch[n].masked = val&0x04 != 0
	case port == 0x0B: // mode register
		n := int(val & 0x03)
		c.ch[n].mode = val
	case port == 0x0C: // clear flip-flop
		for i := range c.ch {
			c.ch[i].flipFlop = false
		}
	case port == 0x0D: // master clear
		*c = *New()
	case port == 0x0F: // write all mask bits
		for i := 0; i < 4; i++ {
			c.ch[i].masked = val&(1<<i) != 0
		}
	}
	return 0
}

func (c *Controller) writeAddrOrCount(ch int, isCount bool, val uint8) {
	if ch < 0 || ch >= numChannels {
		return
	}
	target := &c.ch[ch].addr
	base := &c.ch[ch].baseAddr
	if isCount {
		target = &c.ch[ch].count
		base = &c.ch[ch].baseCount
	}
	if !c.ch[ch].flipFlop {
		*target = (*target &^ 0xFF) | uint16(val)
		*base = (*base &^ 0xFF) | uint16(val)
	} else {
		*target = (*target & 0xFF) | uint16(val)<<8
		*base = (*base & 0xFF) | uint16(val)<<8
	}
	c.ch[ch].flipFlop = !c.ch[ch].flipFlop
}

// PortReadU8 implements address/count readback for the channel registers
// and the status register at 0x08.
func (c *Controller) PortReadU8(port uint16) (uint8, int) {
	switch {
	case port <= 0x07:
		ch := int(port / 2)
		isCount := port%2 == 1
		val := c.ch[ch].addr
		if isCount {
			val = c.ch[ch].count
		}
		c.ch[ch].flipFlop = !c.ch[ch].flipFlop
		if !c.ch[ch].flipFlop {
			return uint8(val >> 8), 0
		}
		return uint8(val), 0
	case port == 0x08: // status register: terminal-count / request bits
		var status uint8
		for i := range c.ch {
			if c.ch[i].count == 0 {
				status |= 1 << i
			}
			if c.ch[i].request {
				status |= 1 << (i + 4)
			}
		}
		return status, 0
	}
	return 0xFF, 0
}

// WritePage sets channel n's page register (the high 8 address bits beyond
// the 8237A's native 16-bit span, giving the 20-bit physical address PC/XT
// DMA needs).
func (c *Controller) WritePage(n int, val uint8) {
	if n < 0 || n >= numChannels {
		return
	}
	c.page[n] = val
}

// PhysicalAddress returns channel n's current 20-bit physical address
// (page register high byte, current address register low 16 bits).
func (c *Controller) PhysicalAddress(n int) uint32 {
	if n < 0 || n >= numChannels {
		return 0
	}
	return uint32(c.page[n])<<16 | uint32(c.ch[n].addr)
}
