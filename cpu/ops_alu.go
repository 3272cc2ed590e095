package cpu

// ops_alu.go implements the eight-way ALU instruction family (ADD/OR/ADC/
// SBB/AND/SUB/XOR/CMP), each sharing the same six addressing forms at a
// fixed 8-opcode stride in the 8086 opcode map (0x00-0x3F). Rather than 48
// near-identical functions, one registration loop builds all six forms per
// operation, the same table-building-by-loop shape the teacher repo uses
// for its dense opcode tables (decode.go's nested bit-field registration).

type aluOpKind int

const (
	opAdd aluOpKind = iota
	opOr
	opAdc
	opSbb
	opAnd
	opSub
	opXor
	opCmp
)

type aluOpDef struct {
	kind aluOpKind
}

var aluOps = [8]aluOpDef{
	{opAdd}, {opOr}, {opAdc}, {opSbb}, {opAnd}, {opSub}, {opXor}, {opCmp},
}

func registerALU() {
	for i := range aluOps {
		base := uint8(i * 8)
		op := aluOps[i]
		opcodeTable[base+0x00] = func(c *CPU) { c.aluRM(op, WidthByte, false) }
		opcodeTable[base+0x01] = func(c *CPU) { c.aluRM(op, WidthWord, false) }
		opcodeTable[base+0x02] = func(c *CPU) { c.aluRM(op, WidthByte, true) }
		opcodeTable[base+0x03] = func(c *CPU) { c.aluRM(op, WidthWord, true) }
		opcodeTable[base+0x04] = func(c *CPU) { c.aluImmAcc(op, WidthByte) }
		opcodeTable[base+0x05] = func(c *CPU) { c.aluImmAcc(op, WidthWord) }
	}
}

// applyALU computes dst OP src at width w, setting flags, and returns the
// (possibly discarded, for CMP) truncated result.
func (c *CPU) applyALU(op aluOpDef, dst, src uint32, w Width) uint32 {
	switch op.kind {
	case opAdd:
		result, raw := addWithCarry(src, dst, false, w)
		c.setFlagsAdd(src, dst, raw, w)
		return result
	case opAdc:
		result, raw := addWithCarry(src, dst, c.reg.getFlag(FlagCarry), w)
		c.setFlagsAdd(src, dst, raw, w)
		return result
	case opSub:
		result, borrow := subWithBorrow(dst, src, false, w)
		c.setFlagsSub(src, dst, result, borrow, w)
		return result
	case opSbb:
		result, borrow := subWithBorrow(dst, src, c.reg.getFlag(FlagCarry), w)
		c.setFlagsSub(src, dst, result, borrow, w)
		return result
	case opCmp:
		result, borrow := subWithBorrow(dst, src, false, w)
		c.setFlagsSub(src, dst, result, borrow, w)
		return dst // CMP never writes back
	case opAnd:
		result := (dst & src) & w.mask()
		c.setFlagsLogical(result, w)
		return result
	case opOr:
		result := (dst | src) & w.mask()
		c.setFlagsLogical(result, w)
		return result
	case opXor:
		result := (dst ^ src) & w.mask()
		c.setFlagsLogical(result, w)
		return result
	}
	return dst
}

// aluCycles approximates the bus-traffic-dependent cost of an ALU
// instruction with three fixed costs, a simplification analogous to the
// flat MUL/DIV costs used elsewhere, rather than the full effective-address
// cycle breakdown table.
func aluCycles(kind eaKind, regIsDst bool) int {
	if kind == eaRegister {
		return 3
	}
	if regIsDst {
		return 9 // memory operand read into a register-destination op
	}
	return 16 // register into memory: read-modify-write
}

func (c *CPU) aluRM(op aluOpDef, w Width, regIsDst bool) {
	m := c.decodeModRM(w)

	var dstVal, srcVal uint32
	if w == WidthByte {
		rv := uint32(c.reg.get8(Reg8(m.reg)))
		ev := uint32(c.readEA8(m.ea))
		if regIsDst {
			dstVal, srcVal = rv, ev
		} else {
			dstVal, srcVal = ev, rv
		}
	} else {
		rv := uint32(c.reg.get16(Reg16(m.reg)))
		ev := uint32(c.readEA16(m.ea))
		if regIsDst {
			dstVal, srcVal = rv, ev
		} else {
			dstVal, srcVal = ev, rv
		}
	}

	result := c.applyALU(op, dstVal, srcVal, w)
	c.cyclesIdle(aluCycles(m.ea.kind, regIsDst))

	if op.kind == opCmp {
		return
	}
	if regIsDst {
		if w == WidthByte {
			c.reg.set8(Reg8(m.reg), uint8(result))
		} else {
			c.reg.set16(Reg16(m.reg), uint16(result))
		}
		return
	}
	if w == WidthByte {
		c.writeEA8(m.ea, uint8(result))
	} else {
		c.writeEA16(m.ea, uint16(result))
	}
}

func (c *CPU) aluImmAcc(op aluOpDef, w Width) {
	if w == WidthByte {
		imm := uint32(c.fetchInstructionByte())
		dst := uint32(c.reg.get8(AL))
		result := c.applyALU(op, dst, imm, w)
		c.cyclesIdle(4)
		if op.kind != opCmp {
			c.reg.set8(AL, uint8(result))
		}
		return
	}
	imm := uint32(c.fetchImm16())
	dst := uint32(c.reg.get16(AX))
	result := c.applyALU(op, dst, imm, w)
	c.cyclesIdle(4)
	if op.kind != opCmp {
		c.reg.set16(AX, uint16(result))
	}
}

// group80 implements the 0x80-0x83 immediate-ALU group: ModRM's reg field
// selects which of the eight ALU ops to apply against an r/m operand and an
// immediate (0x80/0x82: Ib against Eb; 0x81: Iv against Ev; 0x83: sign-extended
// Ib against Ev).
func registerGroup80() {
	opcodeTable[0x80] = func(c *CPU) { c.group80(WidthByte, false) }
	opcodeTable[0x81] = func(c *CPU) { c.group80(WidthWord, false) }
	opcodeTable[0x82] = func(c *CPU) { c.group80(WidthByte, false) }
	opcodeTable[0x83] = func(c *CPU) { c.group80(WidthWord, true) }
}

func (c *CPU) group80(w Width, signExtend bool) {
	m := c.decodeModRM(w)
	op := aluOps[m.reg&0x7]

	var imm uint32
	if signExtend {
		imm = uint32(int32(int8(c.fetchInstructionByte())))
	} else if w == WidthByte {
		imm = uint32(c.fetchInstructionByte())
	} else {
		imm = uint32(c.fetchImm16())
	}

	if w == WidthByte {
		dst := uint32(c.readEA8(m.ea))
		result := c.applyALU(op, dst, imm, w)
		c.cyclesIdle(aluCycles(m.ea.kind, false))
		if op.kind != opCmp {
			c.writeEA8(m.ea, uint8(result))
		}
		return
	}
	dst := uint32(c.readEA16(m.ea))
	result := c.applyALU(op, dst, imm, w)
	c.cyclesIdle(aluCycles(m.ea.kind, false))
	if op.kind != opCmp {
		c.writeEA16(m.ea, uint16(result))
	}
}

// registerTest wires the two TEST forms (0x84/0x85, r/m & reg) and the
// accumulator-immediate forms (0xA8/0xA9); TEST computes AND's flags and
// discards the result, like CMP does for SUB.
func registerTest() {
	opcodeTable[0x84] = func(c *CPU) { c.testRM(WidthByte) }
	opcodeTable[0x85] = func(c *CPU) { c.testRM(WidthWord) }
	opcodeTable[0xA8] = func(c *CPU) { c.testImmAcc(WidthByte) }
	opcodeTable[0xA9] = func(c *CPU) { c.testImmAcc(WidthWord) }
}

func (c *CPU) testRM(w Width) {
	m := c.decodeModRM(w)
	if w == WidthByte {
		rv := uint32(c.reg.get8(Reg8(m.reg)))
		ev := uint32(c.readEA8(m.ea))
		c.setFlagsLogical(ev&rv, w)
	} else {
		rv := uint32(c.reg.get16(Reg16(m.reg)))
		ev := uint32(c.readEA16(m.ea))
		c.setFlagsLogical(ev&rv, w)
	}
	c.cyclesIdle(aluCycles(m.ea.kind, false))
}

func (c *CPU) testImmAcc(w Width) {
	if w == WidthByte {
		imm := uint32(c.fetchInstructionByte())
		c.setFlagsLogical(uint32(c.reg.get8(AL))&imm, w)
	} else {
		imm := uint32(c.fetchImm16())
		c.setFlagsLogical(uint32(c.reg.get16(AX))&imm, w)
	}
	c.cyclesIdle(4)
}
