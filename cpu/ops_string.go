package cpu

// ops_string.go implements the string instructions (MOVS/CMPS/STOS/LODS/
// SCAS) and their REP/REPE/REPNE prefixes. A REP-prefixed string op runs
// every iteration within a single Step call, but checks for a pending
// interrupt once per iteration; if one is pending and iterations remain, it
// stops short and asks Step to rewind CS:IP back to the REP prefix so the
// loop resumes cleanly on the next Step, after the interrupt has been
// serviced (spec §4.3.2 "REP string interruption").

func registerString() {
	opcodeTable[0xA4] = func(c *CPU) { c.stringOp(WidthByte, c.movsOnce) }
	opcodeTable[0xA5] = func(c *CPU) { c.stringOp(WidthWord, c.movsOnce) }
	opcodeTable[0xA6] = func(c *CPU) { c.stringOpCompare(WidthByte, c.cmpsOnce) }
	opcodeTable[0xA7] = func(c *CPU) { c.stringOpCompare(WidthWord, c.cmpsOnce) }
	opcodeTable[0xAA] = func(c *CPU) { c.stringOp(WidthByte, c.stosOnce) }
	opcodeTable[0xAB] = func(c *CPU) { c.stringOp(WidthWord, c.stosOnce) }
	opcodeTable[0xAC] = func(c *CPU) { c.stringOp(WidthByte, c.lodsOnce) }
	opcodeTable[0xAD] = func(c *CPU) { c.stringOp(WidthWord, c.lodsOnce) }
	opcodeTable[0xAE] = func(c *CPU) { c.stringOpCompare(WidthByte, c.scasOnce) }
	opcodeTable[0xAF] = func(c *CPU) { c.stringOpCompare(WidthWord, c.scasOnce) }
}

func (c *CPU) stepIndex(w Width) uint16 {
	if c.reg.getFlag(FlagDirection) {
		if w == WidthByte {
			return 0xFFFF
		}
		return 0xFFFE
	}
	if w == WidthByte {
		return 1
	}
	return 2
}

// stringOp runs a non-comparing string primitive (MOVS/STOS/LODS) for
// either a single pass or, under REP, until CX reaches 0 or an interrupt
// preempts it.
func (c *CPU) stringOp(w Width, once func(Width)) {
	if c.repPrefix == repNone {
		once(w)
		c.cyclesIdle(stringBaseCycles(w))
		return
	}
	c.runRepLoop(w, func() {
		once(w)
		c.cyclesIdle(stringRepCycles(w))
	}, nil)
}

// stringOpCompare runs CMPS/SCAS, which additionally terminate a REP loop
// early based on ZF against the REPE/REPNE condition.
func (c *CPU) stringOpCompare(w Width, once func(Width)) {
	if c.repPrefix == repNone {
		once(w)
		c.cyclesIdle(stringBaseCycles(w))
		return
	}
	c.runRepLoop(w, func() {
		once(w)
		c.cyclesIdle(stringRepCycles(w))
	}, func() bool {
		zf := c.reg.getFlag(FlagZero)
		if c.repPrefix == repEqual {
			return !zf // REPE: stop once ZF clears
		}
		return zf // REPNE: stop once ZF sets
	})
}

// runRepLoop executes one REP-prefixed string instruction to completion or
// until interrupted. stopCond, if non-nil, is checked after each iteration
// and ends the loop (without consuming the interrupt-restart path) when true.
func (c *CPU) runRepLoop(w Width, iterate func(), stopCond func() bool) {
	c.inRep = true
	defer func() { c.inRep = false }()

	for {
		cx := c.reg.get16(CX)
		if cx == 0 {
			return
		}
		if c.pendingInterrupt() {
			// repRestartIP/repRestartLinear were already set by Step to the
			// address of the REP prefix byte before this opcode ran.
			c.pendingRepRestart = true
			return
		}

		iterate()
		cx--
		c.reg.set16(CX, cx)

		if cx == 0 {
			return
		}
		if stopCond != nil && stopCond() {
			return
		}
	}
}

// pendingInterrupt reports whether a higher-priority event wants in before
// the next string iteration: NMI, or INTR with IF set. The trap flag is not
// consulted here; TF single-stepping a REP instruction fires once per
// Step call at the instruction boundary like any other instruction, not
// mid-iteration.
func (c *CPU) pendingInterrupt() bool {
	if c.nmiPending {
		return true
	}
	return c.intrLine && c.reg.getFlag(FlagInterrupt)
}

func stringBaseCycles(w Width) int  { return 9 }
func stringRepCycles(w Width) int   { return 17 }

func (c *CPU) movsOnce(w Width) {
	srcSeg := c.segmentFor(DS)
	srcAddr := c.linearAddr(c.reg.get16(srcSeg), c.reg.get16(SI))
	dstAddr := c.linearAddr(c.reg.get16(ES), c.reg.get16(DI))
	if w == WidthByte {
		c.writeU8(dstAddr, c.readU8(srcAddr))
	} else {
		c.writeU16(dstAddr, c.readU16(srcAddr))
	}
	step := c.stepIndex(w)
	c.reg.set16(SI, c.reg.get16(SI)+step)
	c.reg.set16(DI, c.reg.get16(DI)+step)
}

func (c *CPU) stosOnce(w Width) {
	dstAddr := c.linearAddr(c.reg.get16(ES), c.reg.get16(DI))
	if w == WidthByte {
		c.writeU8(dstAddr, c.reg.get8(AL))
	} else {
		c.writeU16(dstAddr, c.reg.get16(AX))
	}
	c.reg.set16(DI, c.reg.get16(DI)+c.stepIndex(w))
}

func (c *CPU) lodsOnce(w Width) {
	srcSeg := c.segmentFor(DS)
	srcAddr := c.linearAddr(c.reg.get16(srcSeg), c.reg.get16(SI))
	if w == WidthByte {
		c.reg.set8(AL, c.readU8(srcAddr))
	} else {
		c.reg.set16(AX, c.readU16(srcAddr))
	}
	c.reg.set16(SI, c.reg.get16(SI)+c.stepIndex(w))
}

func (c *CPU) cmpsOnce(w Width) {
	srcSeg := c.segmentFor(DS)
	srcAddr := c.linearAddr(c.reg.get16(srcSeg), c.reg.get16(SI))
	dstAddr := c.linearAddr(c.reg.get16(ES), c.reg.get16(DI))
	if w == WidthByte {
		a := uint32(c.readU8(srcAddr))
		b := uint32(c.readU8(dstAddr))
		result, borrow := subWithBorrow(a, b, false, w)
		c.setFlagsSub(b, a, result, borrow, w)
	} else {
		a := uint32(c.readU16(srcAddr))
		b := uint32(c.readU16(dstAddr))
		result, borrow := subWithBorrow(a, b, false, w)
		c.setFlagsSub(b, a, result, borrow, w)
	}
	step := c.stepIndex(w)
	c.reg.set16(SI, c.reg.get16(SI)+step)
	c.reg.set16(DI, c.reg.get16(DI)+step)
}

func (c *CPU) scasOnce(w Width) {
	dstAddr := c.linearAddr(c.reg.get16(ES), c.reg.get16(DI))
	if w == WidthByte {
		a := uint32(c.reg.get8(AL))
		b := uint32(c.readU8(dstAddr))
		result, borrow := subWithBorrow(a, b, false, w)
		c.setFlagsSub(b, a, result, borrow, w)
	} else {
		a := uint32(c.reg.get16(AX))
		b := uint32(c.readU16(dstAddr))
		result, borrow := subWithBorrow(a, b, false, w)
		c.setFlagsSub(b, a, result, borrow, w)
	}
	c.reg.set16(DI, c.reg.get16(DI)+c.stepIndex(w))
}
