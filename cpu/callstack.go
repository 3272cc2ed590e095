package cpu

// CallStackEntryKind distinguishes the control-transfer forms that push a
// shadow call-stack frame (spec §3 "Call stack shadow").
type CallStackEntryKind int

const (
	CallStackCall CallStackEntryKind = iota
	CallStackCallFar
	CallStackInterrupt
)

// CallStackEntry is a non-architectural debugging aid: it records enough
// about a CALL/CALLF/INT to let a debugger format a useful call-stack
// display (SPEC_FULL §4 "typed call-stack shadow entries") and to match
// step-over breakpoints against the matching RET/RETF/IRET.
type CallStackEntry struct {
	Kind CallStackEntryKind

	RetCS, RetIP   uint16 // return address (next instruction after the call)
	CallCS, CallIP uint16 // target of the call

	// Only meaningful when Kind == CallStackInterrupt.
	Vector uint8
	AH     uint8
}

// pushCallStack records a call/interrupt frame. Invariant (spec §3): push
// on any control transfer that saves state, pop on any matching return,
// tolerate mismatched pops silently.
func (c *CPU) pushCallStack(entry CallStackEntry) {
	c.callStack = append(c.callStack, entry)
}

// popCallStack removes the most recent frame, if any. A RET/IRET executed
// with no matching CALL/INT on the shadow stack (e.g. the program manually
// balanced the stack in a way the shadow tracker couldn't see) is not an
// error: the shadow stack's job is debugger convenience, not correctness
// enforcement, so an empty pop is silently tolerated.
func (c *CPU) popCallStack() (CallStackEntry, bool) {
	if len(c.callStack) == 0 {
		return CallStackEntry{}, false
	}
	e := c.callStack[len(c.callStack)-1]
	c.callStack = c.callStack[:len(c.callStack)-1]
	return e, true
}

// CallStack returns a snapshot of the shadow call stack, innermost frame
// last.
func (c *CPU) CallStack() []CallStackEntry {
	out := make([]CallStackEntry, len(c.callStack))
	copy(out, c.callStack)
	return out
}
