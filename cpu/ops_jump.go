package cpu

// ops_jump.go implements control transfer: conditional and unconditional
// jumps, CALL/RET (near and far), LOOP/LOOPE/LOOPNE/JCXZ, and the
// INT3/INT n/INTO/IRET family. Every taken branch flushes the prefetch
// queue (spec §4.2); a not-taken conditional jump does not.

func registerJumps() {
	ccNames := [16]func(*CPU) bool{
		0x0: func(c *CPU) bool { return c.reg.getFlag(FlagOverflow) },               // JO
		0x1: func(c *CPU) bool { return !c.reg.getFlag(FlagOverflow) },              // JNO
		0x2: func(c *CPU) bool { return c.reg.getFlag(FlagCarry) },                  // JB/JC
		0x3: func(c *CPU) bool { return !c.reg.getFlag(FlagCarry) },                 // JAE/JNC
		0x4: func(c *CPU) bool { return c.reg.getFlag(FlagZero) },                   // JE/JZ
		0x5: func(c *CPU) bool { return !c.reg.getFlag(FlagZero) },                  // JNE/JNZ
		0x6: func(c *CPU) bool { return c.reg.getFlag(FlagCarry) || c.reg.getFlag(FlagZero) },  // JBE
		0x7: func(c *CPU) bool { return !c.reg.getFlag(FlagCarry) && !c.reg.getFlag(FlagZero) }, // JA
		0x8: func(c *CPU) bool { return c.reg.getFlag(FlagSign) },                   // JS
		0x9: func(c *CPU) bool { return !c.reg.getFlag(FlagSign) },                  // JNS
		0xA: func(c *CPU) bool { return c.reg.getFlag(FlagParity) },                 // JP/JPE
		0xB: func(c *CPU) bool { return !c.reg.getFlag(FlagParity) },                // JNP/JPO
		0xC: func(c *CPU) bool { return c.reg.getFlag(FlagSign) != c.reg.getFlag(FlagOverflow) }, // JL
		0xD: func(c *CPU) bool { return c.reg.getFlag(FlagSign) == c.reg.getFlag(FlagOverflow) }, // JGE
		0xE: func(c *CPU) bool {
			return c.reg.getFlag(FlagZero) || c.reg.getFlag(FlagSign) != c.reg.getFlag(FlagOverflow)
		}, // JLE
		0xF: func(c *CPU) bool {
			return !c.reg.getFlag(FlagZero) && c.reg.getFlag(FlagSign) == c.reg.getFlag(FlagOverflow)
		}, // JG
	}
	for i := 0; i < 16; i++ {
		cond := ccNames[i]
		opcodeTable[0x70+uint8(i)] = func(c *CPU) { c.jccShort(cond) }
	}

	opcodeTable[0xE0] = func(c *CPU) { c.loopOp(loopNE) }
	opcodeTable[0xE1] = func(c *CPU) { c.loopOp(loopE) }
	opcodeTable[0xE2] = func(c *CPU) { c.loopOp(loopPlain) }
	opcodeTable[0xE3] = opJCXZ

	opcodeTable[0xEB] = func(c *CPU) {
		rel := int8(c.fetchInstructionByte())
		c.jumpNear(uint16(int32(c.ip()) + int32(rel)))
		c.cyclesIdle(15)
	}
	opcodeTable[0xE9] = func(c *CPU) {
		rel := int16(c.fetchImm16())
		c.jumpNear(uint16(int32(c.ip()) + int32(rel)))
		c.cyclesIdle(15)
	}
	opcodeTable[0xEA] = func(c *CPU) {
		off := c.fetchImm16()
		seg := c.fetchImm16()
		c.jumpFar(seg, off)
		c.cyclesIdle(15)
	}
	opcodeTable[0xE8] = func(c *CPU) {
		rel := int16(c.fetchImm16())
		ret := c.ip()
		target := uint16(int32(ret) + int32(rel))
		c.pushStack(ret)
		c.pushCallStack(CallStackEntry{Kind: CallStackCall, RetCS: c.reg.get16(CS), RetIP: ret, CallCS: c.reg.get16(CS), CallIP: target})
		c.jumpNear(target)
		c.cyclesIdle(19)
	}

	opcodeTable[0xC3] = func(c *CPU) {
		target := c.popStack()
		c.jumpNear(target)
		c.popCallStack()
		c.cyclesIdle(8)
	}
	opcodeTable[0xC2] = func(c *CPU) {
		n := c.fetchImm16()
		target := c.popStack()
		c.reg.set16(SP, c.reg.get16(SP)+n)
		c.jumpNear(target)
		c.popCallStack()
		c.cyclesIdle(12)
	}
	opcodeTable[0xCB] = func(c *CPU) {
		off := c.popStack()
		seg := c.popStack()
		c.jumpFar(seg, off)
		c.popCallStack()
		c.cyclesIdle(18)
	}
	opcodeTable[0xCA] = func(c *CPU) {
		n := c.fetchImm16()
		off := c.popStack()
		seg := c.popStack()
		c.reg.set16(SP, c.reg.get16(SP)+n)
		c.jumpFar(seg, off)
		c.popCallStack()
		c.cyclesIdle(17)
	}

	opcodeTable[0xCC] = func(c *CPU) { c.interruptRoutine(vecBreakpoint, CallStackInterrupt); c.cyclesIdle(52) }
	opcodeTable[0xCD] = func(c *CPU) {
		n := c.fetchInstructionByte()
		c.swInterrupt(n)
		c.cyclesIdle(51)
	}
	opcodeTable[0xCE] = func(c *CPU) { c.intO(); c.cyclesIdle(53) }
	opcodeTable[0xCF] = func(c *CPU) { c.iret(); c.cyclesIdle(24) }
}

func (c *CPU) jumpNear(target uint16) {
	c.fetchSuspend()
	c.reg.pc = target
	c.queueFlush(c.linearAddr(c.reg.get16(CS), target))
	c.fetchResume()
}

func (c *CPU) jumpFar(seg, off uint16) {
	c.fetchSuspend()
	c.reg.set16(CS, seg)
	c.reg.pc = off
	c.queueFlush(c.linearAddr(seg, off))
	c.fetchResume()
}

func (c *CPU) jccShort(cond func(*CPU) bool) {
	rel := int8(c.fetchInstructionByte())
	taken := cond(c)
	if taken {
		c.jumpNear(uint16(int32(c.ip()) + int32(rel)))
		c.cyclesIdle(16)
		return
	}
	c.cyclesIdle(4)
}

type loopKind int

const (
	loopPlain loopKind = iota
	loopE
	loopNE
)

func (c *CPU) loopOp(kind loopKind) {
	rel := int8(c.fetchInstructionByte())
	cx := c.reg.get16(CX) - 1
	c.reg.set16(CX, cx)

	taken := cx != 0
	switch kind {
	case loopE:
		taken = taken && c.reg.getFlag(FlagZero)
	case loopNE:
		taken = taken && !c.reg.getFlag(FlagZero)
	}
	if taken {
		c.jumpNear(uint16(int32(c.ip()) + int32(rel)))
		c.cyclesIdle(17)
		return
	}
	c.cyclesIdle(5)
}

func opJCXZ(c *CPU) {
	rel := int8(c.fetchInstructionByte())
	if c.reg.get16(CX) == 0 {
		c.jumpNear(uint16(int32(c.ip()) + int32(rel)))
		c.cyclesIdle(18)
		return
	}
	c.cyclesIdle(6)
}
