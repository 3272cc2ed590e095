package cpu

import "github.com/8088cycle/marty88/bus"

// Variant names the CPU model a core was created as, modeled as a tagged
// field rather than a trait/interface hierarchy. Both variants share one
// opcode table (exec.go's opcodeTable), one set of cycle costs and the
// 8088's 4-byte prefetch queue: the variant is stored on the CPU, but no
// decode or timing path consults it, and no variant-only mnemonics are
// implemented.
type Variant int

const (
	Intel8088 Variant = iota
	NECV20
)

// StepResult classifies what happened during a Step call.
type StepResult int

const (
	StepNormal StepResult = iota
	StepBreakpointHit
	StepHalt
	StepServiceEvent
)

// resetVector is the architectural 8088/V20 reset state: CS=F000, IP=FFF0.
const (
	resetCS = 0xF000
	resetIP = 0xFFF0
)

// CPU is the 8088/V20 core: register file, BIU (prefetch queue + bus cycle
// sequencing), and EU (decode/execute), bound to a single bus.Bus for its
// entire lifetime (spec §5: the core performs no locking, holds no
// cross-thread resources, and is driven purely by host calls to Step).
type CPU struct {
	variant Variant
	bus     *bus.Bus
	logger  Logger

	reg registers

	// --- BIU state ---
	queue         *prefetchQueue
	fetchAddr     uint32 // linear address the next fetch will read from
	suspended     bool   // fetch_suspend()/fetch_resume() (microcode SUSP)
	idleSinceFetch int   // clocks accumulated toward the next opportunistic fetch
	fetchScheduled bool

	cycles uint64 // total system clocks consumed since reset

	// --- execution state ---
	halted    bool
	fatalErr  *CpuError
	prevPC    uint16 // PC at the start of the instruction currently/just executing
	ir        []byte // raw bytes of the instruction currently executing (for history/errors)
	inRep     bool
	inInt     bool
	segOverride Reg16
	hasSegOverride bool
	repPrefix   repKind
	lockPrefix  bool

	instructionCount uint64

	// --- interrupt pins ---
	nmiLine     bool // edge-triggered latch
	nmiPending  bool
	intrLine    bool // level-triggered
	interruptInhibit bool // set for exactly one instruction after MOV/POP to a segment register

	// trapSuppressed holds off the single-step trap for exactly one
	// instruction after a POPF/IRET newly sets TF (spec §4.3.2 "Single-step").
	trapSuppressed bool

	// trapDisableArmed/trapDisableDelay force one more single-step trap
	// after a POPF/IRET newly clears TF, landing on the instruction that
	// follows the one right after POPF (so that instruction still gets to
	// execute before the trap fires, per spec §4.3.2): the transition
	// arms trapDisableArmed; the next instruction boundary promotes it to
	// trapDisableDelay without yet forcing a trap; the boundary after that
	// forces one.
	trapDisableArmed bool
	trapDisableDelay bool

	// --- options ---
	instructionHistoryOn   bool
	interruptScheduling    bool
	interruptCyclePeriod   uint64
	interruptCycleNum      uint64
	interruptRetrigger     bool
	dramRefreshSimulation  bool
	dramRefreshCyclePeriod uint64
	dramRefreshCyclesPer   uint64
	dramRefreshRetrigger   bool
	dramRefreshTC          bool
	dramRefreshAdjust      int
	haltResumeDelay        uint64
	offRailsDetection      bool
	enableWaitStates       bool
	traceEnabled           bool
	enableServiceInterrupt bool

	offRailsCounter int

	history     []HistoryEntry
	callStack   []CallStackEntry
	breakpoints *BreakpointSet
	breakpointHit bool

	services serviceQueue
	traceLog []traceEvent

	// rep-string resumption: set by a string instruction when it breaks
	// out of its iteration loop to let a pending interrupt through; Step
	// rewinds CS:IP to the prefix so the same instruction resumes next call.
	pendingRepRestart bool
	repRestartIP      uint16
	repRestartLinear  uint32
}

// New creates a CPU of the given variant wired to bus b and performs an
// architectural reset.
func New(variant Variant, b *bus.Bus) *CPU {
	c := &CPU{
		variant:     variant,
		bus:         b,
		logger:      defaultLogger,
		breakpoints: NewBreakpointSet(),
		enableWaitStates: true,
	}
	c.Reset()
	return c
}

// Reset restores architectural reset state: CS=F000, IP=FFF0, flags
// cleared (except the permanently-set reserved bit), queue empty. Idempotent:
// Reset from any state yields the same observable state as Reset from
// initial power-on (spec §8).
func (c *CPU) Reset() {
	c.reg = registers{}
	c.reg.seg[CS-CS] = resetCS
	c.reg.pc = resetIP
	c.reg.setFlags(0)

	c.queue = newPrefetchQueue(queueCapacity8088)
	c.fetchAddr = c.linearAddr(resetCS, resetIP)
	c.suspended = false
	c.idleSinceFetch = 0
	c.fetchScheduled = false

	c.cycles = 0
	c.halted = false
	c.fatalErr = nil
	c.prevPC = resetIP
	c.ir = nil
	c.inRep = false
	c.inInt = false
	c.hasSegOverride = false
	c.repPrefix = repNone
	c.lockPrefix = false
	c.instructionCount = 0

	c.nmiLine = false
	c.nmiPending = false
	c.intrLine = false
	c.interruptInhibit = false
	c.trapSuppressed = false
	c.trapDisableArmed = false
	c.trapDisableDelay = false

	c.offRailsCounter = 0
	c.breakpointHit = false

	c.services.events = nil
	c.history = c.history[:0]
	c.callStack = c.callStack[:0]
	c.pendingRepRestart = false
	c.traceFlush()

	c.services.push(ServiceEvent{Kind: EventReset})
}

// SetResetVector overrides the CS:IP the core treats as its current
// position without a full architectural reset; used by the validation
// harness to run tests from arbitrary locations (spec §4.3).
func (c *CPU) SetResetVector(cs, ip uint16) {
	c.reg.seg[CS-CS] = cs
	c.reg.pc = ip
	c.queue.flush()
	c.fetchAddr = c.linearAddr(cs, ip)
}

// SetNMI sets the edge-triggered NMI pin. A rising edge latches a pending
// NMI serviced at the next instruction boundary regardless of IF (spec
// §4.3.2 "NMI").
func (c *CPU) SetNMI(state bool) {
	if state && !c.nmiLine {
		c.nmiPending = true
	}
	c.nmiLine = state
}

// SetINTR sets the level-triggered hardware interrupt request pin.
func (c *CPU) SetINTR(state bool) { c.intrLine = state }

// InRep reports whether the EU is mid-REP-prefixed string instruction.
func (c *CPU) InRep() bool { return c.inRep }

// Registers16 returns register reg's current 16-bit value.
func (c *CPU) Registers16(reg Reg16) uint16 { return c.reg.get16(reg) }

// SetRegister16 sets register reg's 16-bit value directly (debugger use).
func (c *CPU) SetRegister16(reg Reg16, val uint16) { c.reg.set16(reg, val) }

// Registers8 returns register reg's current 8-bit value.
func (c *CPU) Registers8(reg Reg8) uint8 { return c.reg.get8(reg) }

// SetRegister8 sets register reg's 8-bit value directly (debugger use).
func (c *CPU) SetRegister8(reg Reg8, val uint8) { c.reg.set8(reg, val) }

// Flags returns the current FLAGS word.
func (c *CPU) Flags() uint16 { return c.reg.flags }

// SetFlags installs a FLAGS value directly (debugger use; does not go
// through the trap-delay shadow that a POPF executed by the EU does).
func (c *CPU) SetFlags(val uint16) { c.reg.setFlags(val) }

// GetFlag reports whether a single FLAGS bit is set.
func (c *CPU) GetFlag(f Flag) bool { return c.reg.getFlag(f) }

// Cycles returns the total system clocks consumed since the last Reset.
func (c *CPU) Cycles() uint64 { return c.cycles }

// InstructionCount returns the number of instructions successfully
// retired since the last Reset.
func (c *CPU) InstructionCount() uint64 { return c.instructionCount }

// Halted reports whether the CPU is halted on a fatal CpuError: the core
// then refuses to execute further instructions and Step returns StepHalt.
// Distinct from HLT, which Step reports by queuing an EventHalted service
// event (StepServiceEvent) and which the next accepted interrupt ends.
func (c *CPU) Halted() bool { return c.fatalErr != nil }

// ip returns the architectural instruction pointer: pc - queue_length, so
// that re-entrant instructions (string ops resumed after an interrupt,
// disassembly of the currently executing instruction) observe the correct
// address rather than the BIU's read-ahead fetch pointer (spec §3, §4.3.4).
func (c *CPU) ip() uint16 {
	return c.reg.pc - uint16(c.queue.len)
}

// linearAddr computes the 20-bit physical address for segment:offset,
// wrapping within the 1 MiB address space (spec §4.2 invariant: "modulo
// the 20-bit address space, with documented wrap behavior when CS:IP
// crosses 0xFFFFF").
func (c *CPU) linearAddr(segment, offset uint16) uint32 {
	return (uint32(segment)<<4 + uint32(offset)) & (bus.AddressSpaceSize - 1)
}

// flatIP returns the resolved linear address of CS:IP (architectural,
// queue-corrected).
func (c *CPU) flatIP() uint32 { return c.linearAddr(c.reg.get16(CS), c.ip()) }

// segmentFor resolves the effective segment register for a memory access,
// honoring any active segment-override prefix (default defSeg otherwise).
func (c *CPU) segmentFor(defSeg Reg16) Reg16 {
	if c.hasSegOverride {
		return c.segOverride
	}
	return defSeg
}

type repKind int

const (
	repNone repKind = iota
	repEqual
	repNotEqual
)
