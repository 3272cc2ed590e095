package cpu

// ops_move.go implements data movement: MOV in all its addressing forms,
// PUSH/POP (general, segment, and immediate), XCHG, LEA, LDS/LES, XLAT,
// and IN/OUT.

func registerMove() {
	// MOV r/m, r and r, r/m (0x88-0x8B).
	opcodeTable[0x88] = func(c *CPU) { c.movRM(WidthByte, false) }
	opcodeTable[0x89] = func(c *CPU) { c.movRM(WidthWord, false) }
	opcodeTable[0x8A] = func(c *CPU) { c.movRM(WidthByte, true) }
	opcodeTable[0x8B] = func(c *CPU) { c.movRM(WidthWord, true) }

	// MOV r/m16, segreg and segreg, r/m16.
	opcodeTable[0x8C] = func(c *CPU) { c.movSeg(false) }
	opcodeTable[0x8E] = func(c *CPU) { c.movSeg(true) }

	// LEA r16, m.
	opcodeTable[0x8D] = opLEA

	// MOV AL/AX, moffs and moffs, AL/AX.
	opcodeTable[0xA0] = func(c *CPU) { c.movAccMoffs(WidthByte, true) }
	opcodeTable[0xA1] = func(c *CPU) { c.movAccMoffs(WidthWord, true) }
	opcodeTable[0xA2] = func(c *CPU) { c.movAccMoffs(WidthByte, false) }
	opcodeTable[0xA3] = func(c *CPU) { c.movAccMoffs(WidthWord, false) }

	// MOV r8, imm8 (0xB0-0xB7) and r16, imm16 (0xB8-0xBF).
	for i := 0; i < 8; i++ {
		reg8 := Reg8(i)
		reg16 := Reg16(i)
		opcodeTable[0xB0+uint8(i)] = func(c *CPU) {
			imm := c.fetchInstructionByte()
			c.reg.set8(reg8, imm)
			c.cyclesIdle(4)
		}
		opcodeTable[0xB8+uint8(i)] = func(c *CPU) {
			imm := c.fetchImm16()
			c.reg.set16(reg16, imm)
			c.cyclesIdle(4)
		}
	}

	// MOV r/m, imm (0xC6/0xC7).
	opcodeTable[0xC6] = func(c *CPU) { c.movImmRM(WidthByte) }
	opcodeTable[0xC7] = func(c *CPU) { c.movImmRM(WidthWord) }

	// XCHG AX, r16 (0x91-0x97); 0x90 is NOP (XCHG AX,AX).
	opcodeTable[0x90] = func(c *CPU) { c.cyclesIdle(3) }
	for i := 1; i < 8; i++ {
		reg16 := Reg16(i)
		opcodeTable[0x90+uint8(i)] = func(c *CPU) {
			a := c.reg.get16(AX)
			b := c.reg.get16(reg16)
			c.reg.set16(AX, b)
			c.reg.set16(reg16, a)
			c.cyclesIdle(3)
		}
	}
	opcodeTable[0x86] = func(c *CPU) { c.xchgRM(WidthByte) }
	opcodeTable[0x87] = func(c *CPU) { c.xchgRM(WidthWord) }

	// PUSH/POP r16 (0x50-0x5F).
	for i := 0; i < 8; i++ {
		reg16 := Reg16(i)
		opcodeTable[0x50+uint8(i)] = func(c *CPU) {
			c.pushStack(c.reg.get16(reg16))
			c.cyclesIdle(11)
		}
		opcodeTable[0x58+uint8(i)] = func(c *CPU) {
			c.reg.set16(reg16, c.popStack())
			c.cyclesIdle(8)
		}
	}

	// PUSH/POP segment registers; a POP into a segment register inhibits
	// interrupts/traps for the following instruction, like MOV to one.
	opcodeTable[0x06] = func(c *CPU) { c.pushStack(c.reg.get16(ES)); c.cyclesIdle(10) }
	opcodeTable[0x07] = func(c *CPU) { c.reg.set16(ES, c.popStack()); c.interruptInhibit = true; c.cyclesIdle(8) }
	opcodeTable[0x0E] = func(c *CPU) { c.pushStack(c.reg.get16(CS)); c.cyclesIdle(10) }
	opcodeTable[0x16] = func(c *CPU) { c.pushStack(c.reg.get16(SS)); c.cyclesIdle(10) }
	opcodeTable[0x17] = func(c *CPU) { c.reg.set16(SS, c.popStack()); c.interruptInhibit = true; c.cyclesIdle(8) }
	opcodeTable[0x1E] = func(c *CPU) { c.pushStack(c.reg.get16(DS)); c.cyclesIdle(10) }
	opcodeTable[0x1F] = func(c *CPU) { c.reg.set16(DS, c.popStack()); c.interruptInhibit = true; c.cyclesIdle(8) }

	// PUSH imm (0x68 word, 0x6A sign-extended byte; a V20/186 addition,
	// registered for every variant since both share one opcode table).
	opcodeTable[0x68] = func(c *CPU) { c.pushStack(c.fetchImm16()); c.cyclesIdle(10) }
	opcodeTable[0x6A] = func(c *CPU) {
		v := uint16(int16(int8(c.fetchInstructionByte())))
		c.pushStack(v)
		c.cyclesIdle(10)
	}

	// LDS/LES r16, m32.
	opcodeTable[0xC5] = func(c *CPU) { c.loadFarPointer(DS) }
	opcodeTable[0xC4] = func(c *CPU) { c.loadFarPointer(ES) }

	// XLAT / XLATB.
	opcodeTable[0xD7] = func(c *CPU) {
		addr := c.linearAddr(c.reg.get16(c.segmentFor(DS)), c.reg.get16(BX)+uint16(c.reg.get8(AL)))
		c.reg.set8(AL, c.readU8(addr))
		c.cyclesIdle(3)
	}

	// IN/OUT, fixed port (0xE4-0xE7) and DX-addressed (0xEC-0xEF).
	opcodeTable[0xE4] = func(c *CPU) { c.inFixed(WidthByte) }
	opcodeTable[0xE5] = func(c *CPU) { c.inFixed(WidthWord) }
	opcodeTable[0xE6] = func(c *CPU) { c.outFixed(WidthByte) }
	opcodeTable[0xE7] = func(c *CPU) { c.outFixed(WidthWord) }
	opcodeTable[0xEC] = func(c *CPU) { c.inDX(WidthByte) }
	opcodeTable[0xED] = func(c *CPU) { c.inDX(WidthWord) }
	opcodeTable[0xEE] = func(c *CPU) { c.outDX(WidthByte) }
	opcodeTable[0xEF] = func(c *CPU) { c.outDX(WidthWord) }
}

func (c *CPU) movRM(w Width, regIsDst bool) {
	m := c.decodeModRM(w)
	if regIsDst {
		if w == WidthByte {
			c.reg.set8(Reg8(m.reg), c.readEA8(m.ea))
		} else {
			c.reg.set16(Reg16(m.reg), c.readEA16(m.ea))
		}
	} else {
		if w == WidthByte {
			c.writeEA8(m.ea, c.reg.get8(Reg8(m.reg)))
		} else {
			c.writeEA16(m.ea, c.reg.get16(Reg16(m.reg)))
		}
	}
	c.cyclesIdle(aluCycles(m.ea.kind, regIsDst))
}

func (c *CPU) movSeg(toSeg bool) {
	m := c.decodeModRM(WidthWord)
	seg := segRegFromField(m.reg)
	if toSeg {
		c.reg.set16(seg, c.readEA16(m.ea))
		// A segment-register load inhibits interrupts/traps for the
		// following instruction so a pair such as SS:SP updates
		// atomically (spec §4.3.2).
		c.interruptInhibit = true
	} else {
		c.writeEA16(m.ea, c.reg.get16(seg))
	}
	c.cyclesIdle(aluCycles(m.ea.kind, toSeg))
}

func opLEA(c *CPU) {
	m := c.decodeModRM(WidthWord)
	if m.ea.kind == eaRegister {
		// Undefined on real hardware when the ModRM encodes a register
		// destination for both operands; treat as a no-op read of reg.
		c.cyclesIdle(2)
		return
	}
	c.reg.set16(Reg16(m.reg), m.ea.disp)
	c.cyclesIdle(2)
}

func (c *CPU) movAccMoffs(w Width, load bool) {
	off := c.fetchImm16()
	addr := c.linearAddr(c.reg.get16(c.segmentFor(DS)), off)
	if load {
		if w == WidthByte {
			c.reg.set8(AL, c.readU8(addr))
		} else {
			c.reg.set16(AX, c.readU16(addr))
		}
	} else {
		if w == WidthByte {
			c.writeU8(addr, c.reg.get8(AL))
		} else {
			c.writeU16(addr, c.reg.get16(AX))
		}
	}
	c.cyclesIdle(4)
}

func (c *CPU) movImmRM(w Width) {
	m := c.decodeModRM(w)
	if w == WidthByte {
		imm := c.fetchInstructionByte()
		c.writeEA8(m.ea, imm)
	} else {
		imm := c.fetchImm16()
		c.writeEA16(m.ea, imm)
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false))
}

func (c *CPU) xchgRM(w Width) {
	m := c.decodeModRM(w)
	if w == WidthByte {
		rv := c.reg.get8(Reg8(m.reg))
		ev := c.readEA8(m.ea)
		c.reg.set8(Reg8(m.reg), ev)
		c.writeEA8(m.ea, rv)
	} else {
		rv := c.reg.get16(Reg16(m.reg))
		ev := c.readEA16(m.ea)
		c.reg.set16(Reg16(m.reg), ev)
		c.writeEA16(m.ea, rv)
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false) + 1)
}

func (c *CPU) loadFarPointer(destSeg Reg16) {
	m := c.decodeModRM(WidthWord)
	if m.ea.kind == eaRegister {
		c.cyclesIdle(2)
		return
	}
	off := c.readU16(m.ea.addr)
	seg := c.readU16(m.ea.addr + 2)
	c.reg.set16(Reg16(m.reg), off)
	c.reg.set16(destSeg, seg)
	c.cyclesIdle(16)
}

func (c *CPU) inFixed(w Width) {
	port := uint16(c.fetchInstructionByte())
	c.ioRead(port, w)
}

func (c *CPU) outFixed(w Width) {
	port := uint16(c.fetchInstructionByte())
	c.ioWrite(port, w)
}

func (c *CPU) inDX(w Width) { c.ioRead(c.reg.get16(DX), w) }

func (c *CPU) outDX(w Width) { c.ioWrite(c.reg.get16(DX), w) }

func (c *CPU) ioRead(port uint16, w Width) {
	if w == WidthByte {
		val, wait := c.bus.IoReadU8(port)
		c.chargeIOWait(wait)
		c.reg.set8(AL, val)
	} else {
		val, wait := c.bus.IoReadU16(port)
		c.chargeIOWait(wait)
		c.reg.set16(AX, val)
	}
}

func (c *CPU) ioWrite(port uint16, w Width) {
	if w == WidthByte {
		wait := c.bus.IoWriteU8(port, c.reg.get8(AL))
		c.chargeIOWait(wait)
	} else {
		wait := c.bus.IoWriteU16(port, c.reg.get16(AX))
		c.chargeIOWait(wait)
	}
}

func (c *CPU) chargeIOWait(wait int) {
	cost := 8
	if c.enableWaitStates {
		cost += wait
	}
	c.cyclesBusy(cost)
}
