package cpu

// exec.go assembles the opcode dispatch table and drives the top-level
// Step loop: prefix consumption, dispatch, instruction retirement
// bookkeeping, and the post-instruction interrupt/trap check. The dispatch
// table itself is built once via a set of register* functions grouped by
// instruction family (ops_alu.go, ops_move.go, ops_shift.go, ops_muldiv.go,
// ops_bcd.go, ops_string.go, ops_jump.go, ops_flags.go), the same
// nested-registration shape the teacher repo uses to avoid one enormous
// switch statement.

type opFunc func(c *CPU)

var opcodeTable [256]opFunc

var opcodeMnemonic [256]string

func init() {
	registerALU()
	registerGroup80()
	registerTest()
	registerMove()
	registerShift()
	registerGroupF6F7()
	registerIncDec()
	registerBCD()
	registerString()
	registerJumps()
	registerFlagsAndMisc()
	registerMnemonics()
}

// registerMnemonics fills in the small subset of opcodeMnemonic entries
// that matter for readable history/trace output; opcodes without an entry
// here simply show up as an empty mnemonic string, which is adequate for
// the debugger's raw-bytes fallback display.
func registerMnemonics() {
	names := map[uint8]string{
		0x00: "ADD", 0x28: "SUB", 0x30: "XOR", 0x38: "CMP", 0x20: "AND", 0x08: "OR",
		0x88: "MOV", 0x8A: "MOV", 0x8D: "LEA", 0xA4: "MOVSB", 0xA5: "MOVSW",
		0xAA: "STOSB", 0xAB: "STOSW", 0xAC: "LODSB", 0xAD: "LODSW",
		0xA6: "CMPSB", 0xA7: "CMPSW", 0xAE: "SCASB", 0xAF: "SCASW",
		0xE8: "CALL", 0xE9: "JMP", 0xEB: "JMP", 0xC3: "RET", 0xCB: "RETF",
		0xCC: "INT3", 0xCD: "INT", 0xCE: "INTO", 0xCF: "IRET",
		0xF4: "HLT", 0xF6: "GRP1", 0xF7: "GRP1", 0x27: "DAA", 0x2F: "DAS",
		0x37: "AAA", 0x3F: "AAS", 0xD4: "AAM", 0xD5: "AAD",
	}
	for op, name := range names {
		opcodeMnemonic[op] = name
	}
}

// decodePrefixes consumes any run of segment-override, REP, and LOCK prefix
// bytes immediately preceding an opcode, recording their effect on the CPU,
// and returns the actual opcode byte.
func (c *CPU) decodePrefixes() uint8 {
	for {
		b := c.fetchInstructionByte()
		switch b {
		case 0x26:
			c.segOverride, c.hasSegOverride = ES, true
		case 0x2E:
			c.segOverride, c.hasSegOverride = CS, true
		case 0x36:
			c.segOverride, c.hasSegOverride = SS, true
		case 0x3E:
			c.segOverride, c.hasSegOverride = DS, true
		case 0xF0:
			c.lockPrefix = true
		case 0xF2:
			c.repPrefix = repNotEqual
		case 0xF3:
			c.repPrefix = repEqual
		default:
			return b
		}
	}
}

// Step executes exactly one instruction (or, if the CPU is halted, idles
// one clock waiting for a wake-up interrupt) and reports what happened.
// skipBreakpoint suppresses the address breakpoint check for this one
// call, letting a debugger step past a breakpoint it just stopped at
// (spec §6 "step / step-over").
func (c *CPU) Step(skipBreakpoint bool) (StepResult, uint64, error) {
	if c.fatalErr != nil {
		return StepHalt, 0, c.fatalErr
	}

	startCycles := c.cycles
	startEvents := len(c.services.events)

	if c.halted {
		c.cyclesIdle(1)
		if c.nmiPending || (c.intrLine && c.reg.getFlag(FlagInterrupt)) {
			c.halted = false
			if c.haltResumeDelay > 0 {
				c.cyclesIdle(int(c.haltResumeDelay))
			}
		} else {
			return StepNormal, c.cycles - startCycles, nil
		}
	}

	addr := c.flatIP()
	if !skipBreakpoint && c.breakpoints.hitAddress(addr) {
		c.breakpointHit = true
		return StepBreakpointHit, 0, nil
	}

	startIP := c.ip()
	startCS := c.reg.get16(CS)
	startLinear := addr

	c.ir = c.ir[:0]
	c.hasSegOverride = false
	c.repPrefix = repNone
	c.lockPrefix = false
	c.pendingRepRestart = false
	c.repRestartIP = startIP
	c.repRestartLinear = startLinear

	opcode := c.decodePrefixes()

	fn := opcodeTable[opcode]
	if fn == nil {
		err := invalidOpcode(addr, c.ir)
		c.fatalErr = err
		return StepHalt, c.cycles - startCycles, err
	}

	fn(c)

	if c.pendingRepRestart {
		c.reg.set16(CS, startCS)
		c.reg.pc = c.repRestartIP
		c.queueFlush(c.repRestartLinear)
		c.pendingRepRestart = false
		c.checkTrapAndExternal()
		return StepNormal, c.cycles - startCycles, nil
	}

	c.instructionCount++
	c.recordHistory(HistoryEntry{
		CS:       startCS,
		IP:       startIP,
		Bytes:    append([]byte(nil), c.ir...),
		Mnemonic: opcodeMnemonic[opcode],
		Cycles:   uint32(c.cycles - startCycles),
	})

	if c.offRailsDetection {
		c.checkOffRails(opcode)
	}

	if c.interruptScheduling {
		c.tickScheduledInterrupt(startCycles)
	}

	result := StepNormal
	c.checkTrapAndExternal()
	if c.breakpointHit {
		result = StepBreakpointHit
	}
	if len(c.services.events) > startEvents {
		result = StepServiceEvent
	}

	return result, c.cycles - startCycles, nil
}

// checkOffRails trips a diagnostic ServiceEvent if the core appears to be
// looping on a pathological prefix chain (e.g. a REP/segment-override
// prefix repeated with no terminating opcode byte ever found, which would
// otherwise spin forever consuming bytes). A real decode always terminates
// at a non-prefix byte, so this is a guard against a corrupted opcode
// table, not a normal code path.
func (c *CPU) checkOffRails(opcode uint8) {
	isPrefix := opcode == 0x26 || opcode == 0x2E || opcode == 0x36 || opcode == 0x3E ||
		opcode == 0xF0 || opcode == 0xF2 || opcode == 0xF3
	if isPrefix {
		c.offRailsCounter++
	} else {
		c.offRailsCounter = 0
	}
	if c.offRailsCounter > 16 {
		c.services.push(ServiceEvent{Kind: EventHalted})
		c.offRailsCounter = 0
	}
}

// tickScheduledInterrupt implements the ScheduleInterrupt test option: an
// independent periodic NMI-style pulse the validation harness can arm
// without wiring a PIC, firing once per period at the configured offset
// and optionally retriggering every period thereafter. Every cycle the
// instruction just retired spanned is checked, so the pulse is raised at
// the first instruction boundary at or after its scheduled cycle.
func (c *CPU) tickScheduledInterrupt(startCycles uint64) {
	if c.interruptCyclePeriod == 0 {
		return
	}
	for cyc := startCycles + 1; cyc <= c.cycles; cyc++ {
		if cyc%c.interruptCyclePeriod == c.interruptCycleNum {
			c.nmiPending = true
			if !c.interruptRetrigger {
				c.interruptScheduling = false
			}
			return
		}
	}
}
