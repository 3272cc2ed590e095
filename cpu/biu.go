package cpu

// biu.go implements the Bus Interface Unit: the bus-cycle sequencer that
// keeps the 4-byte prefetch queue topped up and performs the EU's explicit
// memory/port reads and writes. Every access is charged in system clocks,
// the 8088's native unit, matching the original source's cycle-by-cycle
// bookkeeping rather than an instruction-level cost table (spec §4.2).
//
// Fidelity note (recorded in DESIGN.md): a literal T1/T2/T3/Tw/T4 bus-cycle
// state machine running genuinely concurrently with EU execution would
// require modeling both units as coroutines stepping in lockstep. Instead,
// prefetching is modeled as opportunistic: every clock the EU spends on
// work that does not itself touch the bus (see cycles below) is offered to
// the BIU, which completes a 4-clock fetch whenever the queue has room and
// is not suspended. Explicit EU-initiated reads/writes always charge a full
// bus cycle (4 clocks plus any reported wait states) at the point they
// occur. This reproduces the queue's steady-state occupancy and the
// documented stall-on-empty-queue behavior without a true dual state
// machine, at the cost of exact stall/overlap timing on busy bus segments.

const biuCycleClocks = 4 // nominal T1-T4 for one 8088 bus cycle

// cyclesIdle charges n system clocks of EU work that does not itself touch
// the bus (internal ALU cycles, decode cycles). The BIU is given first
// refusal to interleave an opportunistic fetch into this span.
func (c *CPU) cyclesIdle(n int) {
	for i := 0; i < n; i++ {
		c.tickOneClock(true)
		c.simulateDramRefresh()
	}
}

// simulateDramRefresh charges an independent periodic HOLD stall configured
// via the ScheduleDramRefresh option, for a validation harness that wants
// refresh-driven bus contention without wiring a real PIT+DMA pair. It only
// runs on idle clocks, matching how a refresh HOLD request on real hardware
// competes with opportunistic prefetch rather than an EU-owned bus cycle.
func (c *CPU) simulateDramRefresh() {
	if !c.dramRefreshSimulation || c.dramRefreshCyclePeriod == 0 {
		return
	}
	threshold := int64(c.dramRefreshCyclePeriod) + int64(c.dramRefreshAdjust)
	if threshold <= 0 {
		return
	}
	if c.cycles%uint64(threshold) != 0 {
		return
	}
	if c.dramRefreshTC && !c.dramRefreshRetrigger {
		return
	}
	c.dramRefreshTC = true
	for i := uint64(0); i < c.dramRefreshCyclesPer; i++ {
		c.cycles++
		c.bus.Tick()
	}
}

// cyclesBusy charges n system clocks that the EU itself is using for a bus
// transaction (used internally by the explicit read/write helpers below, so
// opportunistic prefetch does not also try to run on the same clocks).
func (c *CPU) cyclesBusy(n int) {
	for i := 0; i < n; i++ {
		c.tickOneClock(false)
	}
}

func (c *CPU) tickOneClock(allowFetch bool) {
	c.cycles++
	tr := c.bus.Tick()
	if tr.NMI {
		c.nmiPending = true
	}
	if allowFetch {
		c.idleSinceFetch++
		if !c.suspended && !c.queue.full() && c.idleSinceFetch >= biuCycleClocks {
			c.idleSinceFetch = 0
			c.opportunisticFetch()
		}
	}
}

// opportunisticFetch completes one idle-interleaved prefetch. HOLD requests
// are honored here (a device holding the bus blocks a prefetch from
// starting, but never rewinds clocks already charged to the EU, matching
// "The EU's cycle accounting continues to advance regardless" in spec §5).
func (c *CPU) opportunisticFetch() {
	if c.bus.HoldRequested() {
		c.grantHoldIfRequested()
		return
	}
	val, _ := c.bus.ReadU8(c.fetchAddr)
	c.queue.push(val, c.fetchAddr)
	c.reg.pc++
	c.fetchAddr = (c.fetchAddr + 1) & (addressSpaceMask)
	c.emitTrace("bus-read", "prefetch")
}

func (c *CPU) grantHoldIfRequested() {
	if !c.bus.HoldRequested() {
		return
	}
	c.bus.GrantHold(1)
}

const addressSpaceMask = 1<<20 - 1

// fetchInstructionByte returns the next byte in program order, blocking on
// a synchronous fetch if the queue is currently empty (spec §4.2: the EU
// stalls whenever it needs a byte the BIU hasn't prefetched yet).
func (c *CPU) fetchInstructionByte() uint8 {
	if c.queue.empty() {
		c.blockingFetch()
	}
	qb := c.queue.pop()
	c.ir = append(c.ir, qb.b)
	return qb.b
}

// blockingFetch performs a synchronous, full-cost bus fetch because the EU
// needs a byte right now and the queue is dry.
func (c *CPU) blockingFetch() {
	if c.bus.HoldRequested() {
		c.cyclesBusy(1)
	}
	val, wait := c.bus.ReadU8(c.fetchAddr)
	cost := biuCycleClocks
	if c.enableWaitStates {
		cost += wait
	}
	c.cyclesBusy(cost)
	c.queue.push(val, c.fetchAddr)
	c.reg.pc++
	c.fetchAddr = (c.fetchAddr + 1) & addressSpaceMask
	c.emitTrace("bus-read", "fetch")
}

// fetchSuspend stops the BIU from prefetching further, used by the EU
// immediately before a control transfer whose target it is about to
// compute (spec §4.2's FetchSuspend/FetchResume pair).
func (c *CPU) fetchSuspend() { c.suspended = true }

// fetchResume re-enables prefetching, typically right after queueFlush has
// retargeted fetchAddr to the branch destination.
func (c *CPU) fetchResume() { c.suspended = false; c.idleSinceFetch = 0 }

// queueFlush empties the prefetch queue and retargets the BIU's fetch
// pointer at a new linear address, as happens on every taken branch, far
// call/jump, interrupt dispatch, and IRET (spec §4.2).
func (c *CPU) queueFlush(newLinear uint32) {
	c.queue.flush()
	c.fetchAddr = newLinear & addressSpaceMask
	c.emitTrace("jump", "queue flush")
}

// ReadWriteFlag distinguishes a plain bus access from one immediately
// followed by the EU beginning its next instruction fetch in the same bus
// cycle (RNI — "ready next instruction"), a microcode optimization the
// original source tracks per access (spec §4.2, SPEC_FULL §4).
type ReadWriteFlag int

const (
	RWNormal ReadWriteFlag = iota
	RWReadyNextInstruction
)

// readU8 performs an EU-initiated byte read at a linear address, charging a
// full bus cycle.
func (c *CPU) readU8(addr uint32) uint8 {
	val, wait := c.bus.ReadU8(addr)
	cost := biuCycleClocks
	if c.enableWaitStates {
		cost += wait
	}
	c.cyclesBusy(cost)
	c.emitTrace("bus-read", "data")
	return val
}

// writeU8 performs an EU-initiated byte write at a linear address.
func (c *CPU) writeU8(addr uint32, val uint8) {
	wait := c.bus.WriteU8(addr, val)
	cost := biuCycleClocks
	if c.enableWaitStates {
		cost += wait
	}
	c.cyclesBusy(cost)
	c.emitTrace("bus-write", "data")
}

// readU16 reads a little-endian word, charging two bus cycles (the 8088's
// 8-bit external data bus always splits a word access into two transfers,
// unlike the 8086/V30).
func (c *CPU) readU16(addr uint32) uint16 {
	lo := c.readU8(addr)
	hi := c.readU8(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// writeU16 writes a little-endian word as two byte transfers.
func (c *CPU) writeU16(addr uint32, val uint16) {
	c.writeU8(addr, uint8(val))
	c.writeU8(addr+1, uint8(val>>8))
}

// inta performs one INTA bus cycle, returning the vector number the PIC (or
// whichever device answers interrupt acknowledge) drives onto the bus. On
// this bus model that device is reached through the ack function passed in
// (the bus's INTA), not through a port access.
const intaPort = 0xFFFF // sentinel: acknowledge is modeled as a dedicated call, not a port

func (c *CPU) inta(ack func() uint8) uint8 {
	c.cyclesBusy(biuCycleClocks * 2) // two INTA cycles on real hardware
	vector := ack()
	c.emitTrace("bus-read", "inta")
	return vector
}
