package cpu

// interrupt.go implements interrupt/exception dispatch: software INT n,
// the three CPU-generated exceptions (divide error, single-step trap,
// breakpoint/overflow share the same dispatch shape), NMI, and the
// hardware INTR/INTA sequence. All five funnel through interruptRoutine,
// matching the single dispatch entry point in the original source's
// cpu_808x/interrupt.rs (SPEC_FULL §4).

const (
	vecDivideError = 0x00
	vecSingleStep  = 0x01
	vecNMI         = 0x02
	vecBreakpoint  = 0x03
	vecOverflow    = 0x04
)

// serviceTrapVector is the undocumented INT FC the validation harness and
// original BIOS stub use as a host-visible trap (SPEC_FULL §4 "Supplemented
// features", grounded on original_source/crates/marty_core/src/cpu_808x/
// interrupt.rs's AH-selector handling).
const serviceTrapVector = 0xFC

// interruptRoutine pushes FLAGS, CS, and the return address, clears IF and
// TF, and transfers control to the vector's handler read from the IVT at
// vector*4. Every interrupt source (software, hardware, or CPU-generated)
// goes through this one routine. An accepted interrupt also ends a HLT.
func (c *CPU) interruptRoutine(vector uint8, kind CallStackEntryKind) {
	retCS := c.reg.get16(CS)
	retIP := c.ip()
	ah := c.reg.get8(AH)
	c.halted = false

	c.pushStack(c.reg.flags)
	c.pushStack(retCS)
	c.pushStack(retIP)

	c.reg.setFlag(FlagInterrupt, false)
	c.reg.setFlag(FlagTrap, false)
	c.trapSuppressed = false
	c.trapDisableArmed = false
	c.trapDisableDelay = false

	ivtAddr := uint32(vector) * 4
	newIP := c.readU16(ivtAddr)
	newCS := c.readU16(ivtAddr + 2)

	c.pushCallStack(CallStackEntry{
		Kind:   kind,
		RetCS:  retCS,
		RetIP:  retIP,
		CallCS: newCS,
		CallIP: newIP,
		Vector: vector,
		AH:     ah,
	})

	c.reg.set16(CS, newCS)
	c.reg.pc = newIP
	c.fetchSuspend()
	c.queueFlush(c.linearAddr(newCS, newIP))
	c.fetchResume()

	if c.breakpoints.hitInterrupt(vector) {
		c.breakpointHit = true
	}
}

// swInterrupt executes a software INT n (opcode CD /n). INT3 (CC) and INTO
// (CE) dispatch through interruptRoutine directly and do not come here.
func (c *CPU) swInterrupt(vector uint8) {
	if vector == serviceTrapVector && c.enableServiceInterrupt {
		c.serviceTrap()
		return
	}
	c.inInt = true
	c.interruptRoutine(vector, CallStackInterrupt)
	c.inInt = false
}

// serviceTrap implements the INT FC vendor trap: AH selects the request
// (SPEC_FULL §4, grounded on original_source's cpu_808x/interrupt.rs
// AH-selector table). It never touches the IVT or the stack — it is a
// direct host signal, not an architectural interrupt.
func (c *CPU) serviceTrap() {
	ah := c.reg.get8(AH)
	switch ah {
	case 0x01: // emulator trap / checkpoint
		al := c.reg.get8(AL)
		c.services.push(ServiceEvent{Kind: EventCheckpointHit, ID: uint32(al)})
	case 0x02: // trigger PIT logging dump
		c.services.push(ServiceEvent{Kind: EventTriggerPitLogging})
	case 0x03: // quit emulator, AL is the exit code
		al := c.reg.get8(AL)
		c.services.push(ServiceEvent{Kind: EventQuitRequested, ExitCode: al})
	default:
		// Undocumented AH selector: no-op, matching the original's
		// fallthrough behavior rather than raising an invalid-opcode fault.
	}
}

// int0 dispatches the CPU-generated divide-error exception. The return
// address interruptRoutine pushes is the instruction after the faulting
// DIV/IDIV/AAM (the 8088 behavior, spec §4.3.2 "Divide error"), so the
// handler's IRET resumes past it rather than re-executing it.
func (c *CPU) int0() { c.interruptRoutine(vecDivideError, CallStackInterrupt) }

// intO dispatches INTO: taken only if OF is set.
func (c *CPU) intO() {
	if c.reg.getFlag(FlagOverflow) {
		c.interruptRoutine(vecOverflow, CallStackInterrupt)
	}
}

// applyTrapDelay arms the one-instruction-late shadow for a POPF/IRET that
// changes TF. The enable and disable sides are asymmetric on real silicon:
// a 0->1 transition must NOT trap on the instruction immediately following
// (trapSuppressed holds off the trap check made right after the POPF/IRET
// itself), while a 1->0 transition must STILL cause one more trap after the
// instruction immediately following, despite TF already reading clear by
// then (trapDisableArmed promotes to trapDisableDelay at the next
// instruction boundary, then forces a trap at the boundary after that, so
// the intervening instruction still gets to execute). Grounded on
// cpu_vx0/stack.rs's trap_enable_delay / trap_disable_delay pair (spec
// §4.3.2).
func (c *CPU) applyTrapDelay(oldTrap, newTrap bool) {
	if !oldTrap && newTrap {
		c.trapSuppressed = true
	} else if oldTrap && !newTrap {
		c.trapDisableArmed = true
	}
}

// checkTrapAndExternal is called at every instruction boundary (after an
// instruction retires) to dispatch single-step trap, NMI, and hardware
// INTR in their architectural priority order: NMI beats INTR; the trap
// flag is serviced only once enabled and not while suppressed by a fresh
// POPF/IRET (trapSuppressed) or a fresh segment-register load
// (interruptInhibit), nor within a REP prefix's own instruction (which
// traps only after the whole string completes, per spec §4.3.2
// "Single-step"). A pending trapDisableDelay forces one more trap even
// though TF now reads clear.
func (c *CPU) checkTrapAndExternal() {
	if c.interruptInhibit {
		c.interruptInhibit = false
		return
	}

	if c.nmiPending {
		c.nmiPending = false
		c.interruptRoutine(vecNMI, CallStackInterrupt)
		return
	}

	trapPending := (c.reg.getFlag(FlagTrap) && !c.trapSuppressed) || c.trapDisableDelay
	c.trapSuppressed = false
	c.trapDisableDelay = c.trapDisableArmed
	c.trapDisableArmed = false
	if trapPending && !c.inRep {
		c.trapDisableDelay = false
		c.interruptRoutine(vecSingleStep, CallStackInterrupt)
		return
	}

	if c.reg.getFlag(FlagInterrupt) && c.intrLine && !c.inRep {
		c.hwInterrupt()
	}
}

// hwInterrupt performs the INTA bus-cycle pair and dispatches whatever
// vector the PIC drives back.
func (c *CPU) hwInterrupt() {
	vector := c.inta(c.bus.INTA)
	c.interruptRoutine(vector, CallStackInterrupt)
}

// pushStack and popStack are small helpers shared by PUSH/POP, CALL/RET,
// and interrupt dispatch; SP always addresses within SS.
func (c *CPU) pushStack(val uint16) {
	sp := c.reg.get16(SP) - 2
	c.reg.set16(SP, sp)
	c.writeU16(c.linearAddr(c.reg.get16(SS), sp), val)
}

func (c *CPU) popStack() uint16 {
	sp := c.reg.get16(SP)
	val := c.readU16(c.linearAddr(c.reg.get16(SS), sp))
	c.reg.set16(SP, sp+2)
	return val
}

// iret pops IP, CS, and FLAGS, restoring the reserved-bit behavior that
// setFlags already enforces.
func (c *CPU) iret() {
	newIP := c.popStack()
	newCS := c.popStack()
	newFlags := c.popStack()

	oldTrap := c.reg.getFlag(FlagTrap)
	c.reg.set16(CS, newCS)
	c.reg.pc = newIP
	c.reg.setFlags(newFlags)
	c.applyTrapDelay(oldTrap, c.reg.getFlag(FlagTrap))
	c.queueFlush(c.linearAddr(newCS, newIP))

	c.popCallStack()
}
