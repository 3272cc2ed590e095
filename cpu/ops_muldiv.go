package cpu

// ops_muldiv.go implements the F6/F7 unary group (TEST imm/NOT/NEG/MUL/
// IMUL/DIV/IDIV, selected by ModRM's reg field) and the FE/FF group
// (INC/DEC/CALL/JMP/PUSH). MUL/IMUL/DIV/IDIV use a flat, data-independent
// cycle cost rather than the real 8088's data-dependent CORX/CORD
// microcode looping, a documented simplification recorded in DESIGN.md.

func registerGroupF6F7() {
	opcodeTable[0xF6] = func(c *CPU) { c.groupF6F7(WidthByte) }
	opcodeTable[0xF7] = func(c *CPU) { c.groupF6F7(WidthWord) }
}

func (c *CPU) groupF6F7(w Width) {
	m := c.decodeModRM(w)
	switch m.reg {
	case 0, 1:
		c.testUnaryImm(m, w)
	case 2:
		c.notUnary(m, w)
	case 3:
		c.negUnary(m, w)
	case 4:
		c.mulUnary(m, w, false)
	case 5:
		c.mulUnary(m, w, true)
	case 6:
		c.divUnary(m, w, false)
	case 7:
		c.divUnary(m, w, true)
	}
}

func (c *CPU) testUnaryImm(m modrm, w Width) {
	if w == WidthByte {
		imm := uint32(c.fetchInstructionByte())
		c.setFlagsLogical(uint32(c.readEA8(m.ea))&imm, w)
	} else {
		imm := uint32(c.fetchImm16())
		c.setFlagsLogical(uint32(c.readEA16(m.ea))&imm, w)
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false))
}

func (c *CPU) notUnary(m modrm, w Width) {
	if w == WidthByte {
		c.writeEA8(m.ea, ^c.readEA8(m.ea))
	} else {
		c.writeEA16(m.ea, ^c.readEA16(m.ea))
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false))
}

func (c *CPU) negUnary(m modrm, w Width) {
	if w == WidthByte {
		v := uint32(c.readEA8(m.ea))
		result, borrow := subWithBorrow(0, v, false, w)
		c.setFlagsSub(v, 0, result, borrow, w)
		c.writeEA8(m.ea, uint8(result))
	} else {
		v := uint32(c.readEA16(m.ea))
		result, borrow := subWithBorrow(0, v, false, w)
		c.setFlagsSub(v, 0, result, borrow, w)
		c.writeEA16(m.ea, uint16(result))
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false))
}

// mulUnary implements MUL (unsigned) and IMUL (signed, one-operand form):
// AX = AL * r/m8 (byte form) or DX:AX = AX * r/m16 (word form).
func (c *CPU) mulUnary(m modrm, w Width, signed bool) {
	if w == WidthByte {
		src := c.readEA8(m.ea)
		var product uint16
		var overflow bool
		if signed {
			p := int16(int8(c.reg.get8(AL))) * int16(int8(src))
			product = uint16(p)
			overflow = p < -128 || p > 127
		} else {
			p := uint16(c.reg.get8(AL)) * uint16(src)
			product = p
			overflow = p > 0xFF
		}
		c.reg.set16(AX, product)
		c.reg.setFlag(FlagCarry, overflow)
		c.reg.setFlag(FlagOverflow, overflow)
	} else {
		src := c.readEA16(m.ea)
		var lo, hi uint16
		var overflow bool
		if signed {
			p := int32(int16(c.reg.get16(AX))) * int32(int16(src))
			lo, hi = uint16(p), uint16(p>>16)
			overflow = p < -32768 || p > 32767
		} else {
			p := uint32(c.reg.get16(AX)) * uint32(src)
			lo, hi = uint16(p), uint16(p>>16)
			overflow = hi != 0
		}
		c.reg.set16(AX, lo)
		c.reg.set16(DX, hi)
		c.reg.setFlag(FlagCarry, overflow)
		c.reg.setFlag(FlagOverflow, overflow)
	}
	cost := 70
	if m.ea.kind == eaMemory {
		cost += 8
	}
	c.cyclesIdle(cost)
}

// divUnary implements DIV (unsigned) and IDIV (signed). A zero divisor or
// a quotient that overflows the destination raises the divide-error
// exception (vector 0) with a return address pointing at the instruction
// after the DIV/IDIV, per spec §4.3.2 "Divide error".
func (c *CPU) divUnary(m modrm, w Width, signed bool) {
	if w == WidthByte {
		divisor := c.readEA8(m.ea)
		dividend := c.reg.get16(AX)
		if divisor == 0 {
			c.int0()
			return
		}
		if signed {
			d := int16(dividend)
			dv := int16(int8(divisor))
			q := d / dv
			r := d % dv
			if q > 127 || q < -128 {
				c.int0()
				return
			}
			c.reg.set8(AL, uint8(int8(q)))
			c.reg.set8(AH, uint8(int8(r)))
		} else {
			q := dividend / uint16(divisor)
			r := dividend % uint16(divisor)
			if q > 0xFF {
				c.int0()
				return
			}
			c.reg.set8(AL, uint8(q))
			c.reg.set8(AH, uint8(r))
		}
	} else {
		divisor := c.readEA16(m.ea)
		dividend := uint32(c.reg.get16(DX))<<16 | uint32(c.reg.get16(AX))
		if divisor == 0 {
			c.int0()
			return
		}
		if signed {
			d := int32(dividend)
			dv := int32(int16(divisor))
			q := d / dv
			r := d % dv
			if q > 32767 || q < -32768 {
				c.int0()
				return
			}
			c.reg.set16(AX, uint16(int16(q)))
			c.reg.set16(DX, uint16(int16(r)))
		} else {
			q := dividend / uint32(divisor)
			r := dividend % uint32(divisor)
			if q > 0xFFFF {
				c.int0()
				return
			}
			c.reg.set16(AX, uint16(q))
			c.reg.set16(DX, uint16(r))
		}
	}
	cost := 80
	if m.ea.kind == eaMemory {
		cost += 8
	}
	c.cyclesIdle(cost)
}

// registerIncDec wires 0x40-0x4F (INC/DEC reg16, which do not touch CF) and
// the FE/FF group (INC/DEC r/m, plus FF's CALL/JMP/PUSH extensions).
func registerIncDec() {
	for i := 0; i < 8; i++ {
		reg16 := Reg16(i)
		opcodeTable[0x40+uint8(i)] = func(c *CPU) {
			v := c.reg.get16(reg16)
			result, raw := addWithCarry(1, uint32(v), false, WidthWord)
			savedCarry := c.reg.getFlag(FlagCarry)
			c.setFlagsAdd(1, uint32(v), raw, WidthWord)
			c.reg.setFlag(FlagCarry, savedCarry)
			c.reg.set16(reg16, uint16(result))
			c.cyclesIdle(2)
		}
		opcodeTable[0x48+uint8(i)] = func(c *CPU) {
			v := c.reg.get16(reg16)
			result, borrow := subWithBorrow(uint32(v), 1, false, WidthWord)
			savedCarry := c.reg.getFlag(FlagCarry)
			c.setFlagsSub(1, uint32(v), result, borrow, WidthWord)
			c.reg.setFlag(FlagCarry, savedCarry)
			c.reg.set16(reg16, uint16(result))
			c.cyclesIdle(2)
		}
	}

	opcodeTable[0xFE] = func(c *CPU) { c.groupFEFF(WidthByte) }
	opcodeTable[0xFF] = func(c *CPU) { c.groupFEFF(WidthWord) }
}

func (c *CPU) groupFEFF(w Width) {
	m := c.decodeModRM(w)
	switch m.reg {
	case 0: // INC
		c.incDecEA(m, w, true)
	case 1: // DEC
		c.incDecEA(m, w, false)
	case 2: // CALL r/m16 (near, indirect)
		target := c.readEA16(m.ea)
		c.pushStack(c.ip())
		c.pushCallStack(CallStackEntry{Kind: CallStackCall, RetCS: c.reg.get16(CS), RetIP: c.ip(), CallCS: c.reg.get16(CS), CallIP: target})
		c.fetchSuspend()
		c.reg.pc = target
		c.queueFlush(c.linearAddr(c.reg.get16(CS), target))
		c.fetchResume()
		c.cyclesIdle(16)
	case 3: // CALL FAR m16:16 (indirect)
		if m.ea.kind == eaMemory {
			off := c.readU16(m.ea.addr)
			seg := c.readU16(m.ea.addr + 2)
			c.pushStack(c.reg.get16(CS))
			c.pushStack(c.ip())
			c.pushCallStack(CallStackEntry{Kind: CallStackCallFar, RetCS: c.reg.get16(CS), RetIP: c.ip(), CallCS: seg, CallIP: off})
			c.fetchSuspend()
			c.reg.set16(CS, seg)
			c.reg.pc = off
			c.queueFlush(c.linearAddr(seg, off))
			c.fetchResume()
		}
		c.cyclesIdle(37)
	case 4: // JMP r/m16 (near, indirect)
		target := c.readEA16(m.ea)
		c.fetchSuspend()
		c.reg.pc = target
		c.queueFlush(c.linearAddr(c.reg.get16(CS), target))
		c.fetchResume()
		c.cyclesIdle(11)
	case 5: // JMP FAR m16:16 (indirect)
		if m.ea.kind == eaMemory {
			off := c.readU16(m.ea.addr)
			seg := c.readU16(m.ea.addr + 2)
			c.fetchSuspend()
			c.reg.set16(CS, seg)
			c.reg.pc = off
			c.queueFlush(c.linearAddr(seg, off))
			c.fetchResume()
		}
		c.cyclesIdle(18)
	case 6: // PUSH r/m16
		c.pushStack(c.readEA16(m.ea))
		c.cyclesIdle(aluCycles(m.ea.kind, false))
	}
}

func (c *CPU) incDecEA(m modrm, w Width, inc bool) {
	var v, result uint32
	var raw uint32
	var borrow bool
	savedCarry := c.reg.getFlag(FlagCarry)
	if w == WidthByte {
		v = uint32(c.readEA8(m.ea))
	} else {
		v = uint32(c.readEA16(m.ea))
	}
	if inc {
		result, raw = addWithCarry(1, v, false, w)
		c.setFlagsAdd(1, v, raw, w)
	} else {
		result, borrow = subWithBorrow(v, 1, false, w)
		c.setFlagsSub(1, v, result, borrow, w)
	}
	c.reg.setFlag(FlagCarry, savedCarry) // INC/DEC never touch CF
	if w == WidthByte {
		c.writeEA8(m.ea, uint8(result))
	} else {
		c.writeEA16(m.ea, uint16(result))
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false))
}
