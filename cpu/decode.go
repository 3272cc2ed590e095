package cpu

// decode.go resolves ModRM bytes into operand addresses. The EA struct and
// resolveEA shape mirror the decode-table pattern from the teacher repo's
// ea.go: a small value type describing where an operand lives (register or
// a computed effective address), plus a single resolver that every
// instruction's execute function calls instead of duplicating addressing
// logic.

// eaKind distinguishes a register operand from a memory operand.
type eaKind int

const (
	eaRegister eaKind = iota
	eaMemory
)

// ea describes one decoded ModRM operand.
type ea struct {
	kind eaKind
	reg  int    // register number when kind == eaRegister
	addr uint32 // linear address when kind == eaMemory
	disp uint16 // offset portion of addr within its segment, for trace/debug
}

// modrm holds a decoded ModRM byte plus its resolved operand.
type modrm struct {
	mod  uint8
	reg  uint8 // the "reg" field: either a register operand or an opcode extension
	rm   uint8
	ea   ea
}

// decodeModRM fetches and resolves a ModRM byte (plus any displacement
// bytes) for width w, honoring any active segment override.
func (c *CPU) decodeModRM(w Width) modrm {
	b := c.fetchInstructionByte()
	mod := b >> 6
	reg := (b >> 3) & 0x7
	rm := b & 0x7

	m := modrm{mod: mod, reg: reg, rm: rm}

	if mod == 3 {
		m.ea = ea{kind: eaRegister, reg: int(rm)}
		return m
	}

	var base uint16
	defSeg := DS
	switch {
	case mod == 0 && rm == 6:
		// direct address: disp16, no base register.
		base = c.fetchImm16()
		m.ea = ea{kind: eaMemory, disp: base}
		m.ea.addr = c.linearAddr(c.reg.get16(c.segmentFor(defSeg)), base)
		return m
	case rm == 0:
		base = c.reg.get16(BX) + c.reg.get16(SI)
	case rm == 1:
		base = c.reg.get16(BX) + c.reg.get16(DI)
	case rm == 2:
		base = c.reg.get16(BP) + c.reg.get16(SI)
		defSeg = SS
	case rm == 3:
		base = c.reg.get16(BP) + c.reg.get16(DI)
		defSeg = SS
	case rm == 4:
		base = c.reg.get16(SI)
	case rm == 5:
		base = c.reg.get16(DI)
	case rm == 6:
		base = c.reg.get16(BP)
		defSeg = SS
	case rm == 7:
		base = c.reg.get16(BX)
	}

	switch mod {
	case 1:
		d := int8(c.fetchInstructionByte())
		base = uint16(int32(base) + int32(d))
	case 2:
		d := c.fetchImm16()
		base = base + d
	}

	m.ea = ea{kind: eaMemory, disp: base}
	m.ea.addr = c.linearAddr(c.reg.get16(c.segmentFor(defSeg)), base)
	return m
}

// fetchImm16 fetches a little-endian 16-bit immediate/displacement from the
// instruction stream.
func (c *CPU) fetchImm16() uint16 {
	lo := c.fetchInstructionByte()
	hi := c.fetchInstructionByte()
	return uint16(lo) | uint16(hi)<<8
}

// readEA8 reads the operand an ea describes as a byte.
func (c *CPU) readEA8(e ea) uint8 {
	if e.kind == eaRegister {
		return c.reg.get8(Reg8(e.reg))
	}
	return c.readU8(e.addr)
}

// writeEA8 writes a byte to the operand an ea describes.
func (c *CPU) writeEA8(e ea, val uint8) {
	if e.kind == eaRegister {
		c.reg.set8(Reg8(e.reg), val)
		return
	}
	c.writeU8(e.addr, val)
}

// readEA16 reads the operand an ea describes as a word.
func (c *CPU) readEA16(e ea) uint16 {
	if e.kind == eaRegister {
		return c.reg.get16(Reg16(e.reg))
	}
	return c.readU16(e.addr)
}

// writeEA16 writes a word to the operand an ea describes.
func (c *CPU) writeEA16(e ea, val uint16) {
	if e.kind == eaRegister {
		c.reg.set16(Reg16(e.reg), val)
		return
	}
	c.writeU16(e.addr, val)
}

// segRegFromField maps a ModRM reg field (0-3) to a segment register, used
// by MOV seg,r/m and PUSH/POP seg opcodes.
func segRegFromField(f uint8) Reg16 {
	switch f & 0x3 {
	case 0:
		return ES
	case 1:
		return CS
	case 2:
		return SS
	default:
		return DS
	}
}
