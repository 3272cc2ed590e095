// Package bus implements the flat 20-bit system bus shared by the CPU core
// and its memory-mapped and port-mapped peripherals.
//
// A Bus owns no architectural CPU state; it is a pure routing layer between
// the address/data phases the BIU drives and whichever Device answers for a
// given address or port range. Exactly one memory responder may claim a
// given address range and exactly one device may claim a given port range;
// registering an overlapping range is a configuration error surfaced at
// construction, never at runtime (spec §4.1).
package bus

import "fmt"

// AddressSpaceSize is the size of the 8088/V20 physical address space (1 MiB).
const AddressSpaceSize = 1 << 20

// PortSpaceSize is the size of the 16-bit IO port address space.
const PortSpaceSize = 1 << 16

// Device is anything attached to the bus that must advance in lockstep with
// the system clock. Tick is called once per system clock consumed by a bus
// cycle; devices that also respond to memory or IO accesses additionally
// implement MemDevice and/or PortDevice.
type Device interface {
	// Tick advances the device by one system clock and returns the set of
	// edge-triggered request lines it wants to assert this clock.
	Tick() Requests
}

// Requests carries the out-of-band signals a Device can raise on a given
// clock: an interrupt request, a DMA hold request, or an NMI edge.
type Requests struct {
	IRQ    bool // device wants line Index serviced (devices own their IRQ number externally via the PIC)
	Hold   bool // device wants the bus (DMA HOLD)
	NMI    bool // device is raising a non-maskable interrupt edge
	Refresh bool // device is specifically requesting a refresh-style HOLD (for wait-state accounting)
}

// MemDevice answers memory-mapped reads/writes within a registered range.
// Addresses passed in are already range-relative (addr - rangeStart).
type MemDevice interface {
	MemReadU8(addr uint32) (val uint8, wait int)
	MemWriteU8(addr uint32, val uint8) (wait int)
}

// PortDevice answers IO port reads/writes within a registered range.
// Ports passed in are already range-relative.
type PortDevice interface {
	PortReadU8(port uint16) (val uint8, wait int)
	PortWriteU8(port uint16, val uint8) (wait int)
}

// HoldDevice is implemented by devices that can assert bus HOLD (DMA
// controllers, refresh generators). The BIU grants HOLDA only at T4
// boundaries (see cpu/biu.go); this interface is how the Bus learns a
// device wants the bus.
type HoldDevice interface {
	Device
	HoldRequested() bool
	// HoldAck is called once the BIU has granted the bus; count is the
	// number of system clocks the device may hold it for this grant.
	HoldAck(count int)
}

// IntAckDevice is implemented by the interrupt controller: the BIU performs
// an INTA bus cycle by calling Acknowledge, which returns the vector number
// to dispatch. Discovered automatically by RegisterDevice the same way a
// HoldDevice is.
type IntAckDevice interface {
	Device
	Acknowledge() uint8
}

// RangeError is a configuration error returned by Register* when two
// responders claim overlapping address or port ranges.
type RangeError struct {
	Kind        string // "memory" or "port"
	NewStart    uint32
	NewEnd      uint32
	ExistStart  uint32
	ExistEnd    uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("bus: overlapping %s range [%#x,%#x] conflicts with existing [%#x,%#x]",
		e.Kind, e.NewStart, e.NewEnd, e.ExistStart, e.ExistEnd)
}

type memRange struct {
	start, end uint32 // inclusive
	dev        MemDevice
}

type portRange struct {
	start, end uint32 // inclusive, 16-bit space
	dev        PortDevice
}

// Bus is the flat system bus. The zero value is not usable; use New.
type Bus struct {
	ram      []uint8
	memMap   []memRange
	portMap  []portRange
	devices  []Device
	holdDevs []HoldDevice
	intAck   IntAckDevice

	// lastWait is the wait-state count produced by the most recently
	// completed access; kept so tests and the BIU can inspect it without
	// threading an extra return value through every call site.
	lastWait int

	ticks uint64
}

// New creates a Bus with ramSize bytes of flat conventional memory backing
// any address not claimed by a registered MMIO device. ramSize must be
// <= AddressSpaceSize.
func New(ramSize int) *Bus {
	if ramSize > AddressSpaceSize {
		ramSize = AddressSpaceSize
	}
	return &Bus{ram: make([]uint8, ramSize)}
}

// LoadROM copies data into the flat address space starting at addr,
// overwriting RAM contents. Used by the host to seed a ROM image; the core
// does not distinguish ROM from RAM at the byte level (write protection is
// a host/BIOS-shadowing concern, out of scope here).
func (b *Bus) LoadROM(addr uint32, data []byte) {
	for i, v := range data {
		a := int(addr) + i
		if a < 0 || a >= len(b.ram) {
			continue
		}
		b.ram[a] = v
	}
}

// RegisterMemory attaches a MemDevice to the flat address space over
// [start,end] inclusive. Returns a *RangeError if the range overlaps an
// already-registered memory device.
func (b *Bus) RegisterMemory(start, end uint32, dev MemDevice) error {
	for _, r := range b.memMap {
		if start <= r.end && end >= r.start {
			return &RangeError{Kind: "memory", NewStart: start, NewEnd: end, ExistStart: r.start, ExistEnd: r.end}
		}
	}
	b.memMap = append(b.memMap, memRange{start: start, end: end, dev: dev})
	return nil
}

// RegisterPort attaches a PortDevice to the IO port space over [start,end]
// inclusive. Returns a *RangeError on overlap.
func (b *Bus) RegisterPort(start, end uint16, dev PortDevice) error {
	s, e := uint32(start), uint32(end)
	for _, r := range b.portMap {
		if s <= r.end && e >= r.start {
			return &RangeError{Kind: "port", NewStart: s, NewEnd: e, ExistStart: r.start, ExistEnd: r.end}
		}
	}
	b.portMap = append(b.portMap, portRange{start: s, end: e, dev: dev})
	return nil
}

// RegisterDevice adds a device to the per-clock tick list. Devices that are
// also MemDevice/PortDevice/HoldDevice should additionally be registered via
// RegisterMemory/RegisterPort, and — if they assert HOLD — are discovered
// automatically here via a HoldDevice type assertion.
func (b *Bus) RegisterDevice(dev Device) {
	b.devices = append(b.devices, dev)
	if hd, ok := dev.(HoldDevice); ok {
		b.holdDevs = append(b.holdDevs, hd)
	}
	if ia, ok := dev.(IntAckDevice); ok {
		b.intAck = ia
	}
}

// INTA performs an interrupt-acknowledge cycle against the registered
// IntAckDevice (the system's PIC). With no PIC attached this floats to 0xFF,
// matching an unacknowledged/spurious vector read on real hardware.
func (b *Bus) INTA() uint8 {
	if b.intAck == nil {
		return 0xFF
	}
	return b.intAck.Acknowledge()
}

func (b *Bus) findMem(addr uint32) (MemDevice, uint32, bool) {
	for _, r := range b.memMap {
		if addr >= r.start && addr <= r.end {
			return r.dev, addr - r.start, true
		}
	}
	return nil, 0, false
}

func (b *Bus) findPort(port uint16) (PortDevice, uint16, bool) {
	p := uint32(port)
	for _, r := range b.portMap {
		if p >= r.start && p <= r.end {
			return r.dev, uint16(p - r.start), true
		}
	}
	return nil, 0, false
}

// ReadU8 returns the byte at addr and the wait states the responder
// requires. Unmapped addresses return 0xFF and 0 wait states, matching the
// floating-bus behavior observed on real 5150/5160 hardware.
func (b *Bus) ReadU8(addr uint32) (uint8, int) {
	addr &= AddressSpaceSize - 1
	if dev, rel, ok := b.findMem(addr); ok {
		val, wait := dev.MemReadU8(rel)
		b.lastWait = wait
		return val, wait
	}
	if int(addr) < len(b.ram) {
		b.lastWait = 0
		return b.ram[addr], 0
	}
	b.lastWait = 0
	return 0xFF, 0
}

// WriteU8 writes val to addr. Writes to unmapped addresses beyond the RAM
// backing are silently dropped (spec §4.1).
func (b *Bus) WriteU8(addr uint32, val uint8) int {
	addr &= AddressSpaceSize - 1
	if dev, rel, ok := b.findMem(addr); ok {
		wait := dev.MemWriteU8(rel, val)
		b.lastWait = wait
		return wait
	}
	if int(addr) < len(b.ram) {
		b.ram[addr] = val
	}
	b.lastWait = 0
	return 0
}

// ReadU16 reads a little-endian word at addr. A word access that crosses a
// device boundary is split into two independent byte accesses, each
// charging its own wait states (spec §4.1 guarantee).
func (b *Bus) ReadU16(addr uint32) (uint16, int) {
	lo, w1 := b.ReadU8(addr)
	hi, w2 := b.ReadU8(addr + 1)
	return uint16(lo) | uint16(hi)<<8, w1 + w2
}

// WriteU16 writes a little-endian word at addr, split into two byte writes.
func (b *Bus) WriteU16(addr uint32, val uint16) int {
	w1 := b.WriteU8(addr, uint8(val))
	w2 := b.WriteU8(addr+1, uint8(val>>8))
	return w1 + w2
}

// IoReadU8 reads one byte from an IO port. Unmapped ports float to 0xFF.
func (b *Bus) IoReadU8(port uint16) (uint8, int) {
	if dev, rel, ok := b.findPort(port); ok {
		val, wait := dev.PortReadU8(rel)
		return val, wait
	}
	return 0xFF, 0
}

// IoWriteU8 writes one byte to an IO port. Writes to unmapped ports are
// dropped.
func (b *Bus) IoWriteU8(port uint16, val uint8) int {
	if dev, rel, ok := b.findPort(port); ok {
		return dev.PortWriteU8(rel, val)
	}
	return 0
}

// IoReadU16 reads a little-endian word from consecutive ports port, port+1.
func (b *Bus) IoReadU16(port uint16) (uint16, int) {
	lo, w1 := b.IoReadU8(port)
	hi, w2 := b.IoReadU8(port + 1)
	return uint16(lo) | uint16(hi)<<8, w1 + w2
}

// IoWriteU16 writes a little-endian word to consecutive ports port, port+1.
func (b *Bus) IoWriteU16(port uint16, val uint16) int {
	w1 := b.IoWriteU8(port, uint8(val))
	w2 := b.IoWriteU8(port+1, uint8(val>>8))
	return w1 + w2
}

// TickResult summarizes the aggregated device requests observed during a
// Tick call, so the BIU can decide whether to grant HOLDA or latch an NMI
// edge without re-walking the device list itself.
type TickResult struct {
	NMI  bool
	Hold bool
}

// Tick advances every registered device by one system clock and aggregates
// their request lines. Called once per system clock consumed by a bus
// cycle, per spec §5's ordering guarantee: device state observed on cycle N
// is never stale relative to CPU state observed on cycle N.
func (b *Bus) Tick() TickResult {
	b.ticks++
	var tr TickResult
	for _, d := range b.devices {
		req := d.Tick()
		if req.NMI {
			tr.NMI = true
		}
		if req.Hold || req.Refresh {
			tr.Hold = true
		}
	}
	return tr
}

// TickN advances the bus by n system clocks, aggregating requests across
// the whole span (an NMI or HOLD asserted on any of the n clocks is
// reported).
func (b *Bus) TickN(n int) TickResult {
	var agg TickResult
	for i := 0; i < n; i++ {
		r := b.Tick()
		agg.NMI = agg.NMI || r.NMI
		agg.Hold = agg.Hold || r.Hold
	}
	return agg
}

// Ticks returns the total number of system clocks ticked since construction.
func (b *Bus) Ticks() uint64 { return b.ticks }

// HoldRequested reports whether any registered HoldDevice currently wants
// the bus. The BIU consults this at T4 boundaries before granting HOLDA.
func (b *Bus) HoldRequested() bool {
	for _, hd := range b.holdDevs {
		if hd.HoldRequested() {
			return true
		}
	}
	return false
}

// GrantHold notifies all requesting HoldDevices that the bus has been
// granted for count system clocks.
func (b *Bus) GrantHold(count int) {
	for _, hd := range b.holdDevs {
		if hd.HoldRequested() {
			hd.HoldAck(count)
		}
	}
}

// Snapshot returns a copy of the flat RAM backing, for debugger/test use.
func (b *Bus) Snapshot() []byte {
	out := make([]byte, len(b.ram))
	copy(out, b.ram)
	return out
}
