// Package cpu implements the cycle-accurate 8088/V20 Execution Unit and Bus
// Interface Unit described in the specification: register file, prefetch
// queue, microcode-equivalent cycle accounting, decode/execute, and
// interrupt delivery. The CPU drives a *bus.Bus and the devices attached to
// it only through that bus's public interface (spec §2/§5); it never holds
// a reference into device internals.
package cpu

// Reg16 identifies one of the eight 16-bit general-purpose or segment
// registers.
type Reg16 int

const (
	AX Reg16 = iota
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	CS
	DS
	ES
	SS
)

// Reg8 identifies one of the eight 8-bit register halves addressable via
// the first four Reg16 registers.
type Reg8 int

const (
	AL Reg8 = iota
	CL
	DL
	BL
	AH
	CH
	DH
	BH
)

// Flag identifies one bit of the FLAGS word.
type Flag uint16

// FLAGS register bit positions, matching the 8088/V20 layout. Bits not
// named here are reserved and held at their fixed power-on values (spec
// §3 "reserved bits are held at fixed values on POP").
const (
	FlagCarry     Flag = 1 << 0
	FlagReserved1 Flag = 1 << 1 // always 1 on the 8088
	FlagParity    Flag = 1 << 2
	FlagAuxCarry  Flag = 1 << 4
	FlagZero      Flag = 1 << 6
	FlagSign      Flag = 1 << 7
	FlagTrap      Flag = 1 << 8
	FlagInterrupt Flag = 1 << 9
	FlagDirection Flag = 1 << 10
	FlagOverflow  Flag = 1 << 11
)

// flagsReservedMask names the reserved FLAGS bits that setFlags forces on
// every value written (via POPF, IRET, or a direct set): bit 1 always reads
// back as 1 and bits 12-15 always read back as 0. Bits 3 and 5 are not
// forced and keep whatever value was written.
const flagsReservedMask uint16 = 0xF002
const flagsReservedClear uint16 = 0x0000

// registers holds the programmer-visible state of the 8088/V20: the eight
// general-purpose 16-bit registers, the four segment registers, FLAGS, and
// the two program-counter-like quantities the spec distinguishes (pc is
// the BIU's fetch pointer, ip is derived as pc-queue_length at any
// observation boundary; see cpu.go's ip() helper).
type registers struct {
	gpr [8]uint16 // indexed by Reg16 AX..DI
	seg [4]uint16 // indexed by Reg16 CS..SS minus CS

	pc    uint16 // BIU fetch pointer; architectural IP is pc - len(queue)
	flags uint16
}

func regIndex(r Reg16) int { return int(r) }

func (r *registers) get16(reg Reg16) uint16 {
	if reg >= CS {
		return r.seg[reg-CS]
	}
	return r.gpr[reg]
}

func (r *registers) set16(reg Reg16, val uint16) {
	if reg >= CS {
		r.seg[reg-CS] = val
		return
	}
	r.gpr[reg] = val
}

// reg8Info maps a Reg8 to its backing Reg16 and whether it is the high
// (AH/BH/CH/DH) or low (AL/BL/CL/DL) half.
func reg8Info(r Reg8) (parent Reg16, high bool) {
	switch r {
	case AL:
		return AX, false
	case CL:
		return CX, false
	case DL:
		return DX, false
	case BL:
		return BX, false
	case AH:
		return AX, true
	case CH:
		return CX, true
	case DH:
		return DX, true
	case BH:
		return BX, true
	}
	return AX, false
}

func (r *registers) get8(reg Reg8) uint8 {
	parent, high := reg8Info(reg)
	v := r.gpr[parent]
	if high {
		return uint8(v >> 8)
	}
	return uint8(v)
}

func (r *registers) set8(reg Reg8, val uint8) {
	parent, high := reg8Info(reg)
	if high {
		r.gpr[parent] = (r.gpr[parent] & 0x00FF) | uint16(val)<<8
	} else {
		r.gpr[parent] = (r.gpr[parent] & 0xFF00) | uint16(val)
	}
}

func (r *registers) getFlag(f Flag) bool { return r.flags&uint16(f) != 0 }

func (r *registers) setFlag(f Flag, v bool) {
	if v {
		r.flags |= uint16(f)
	} else {
		r.flags &^= uint16(f)
	}
}

// setFlags installs a new FLAGS value while forcing reserved bits to their
// documented fixed state (spec §3: "reserved bits are held at fixed values
// on POP").
func (r *registers) setFlags(val uint16) {
	r.flags = (val &^ flagsReservedMask) | (flagsReservedMask & 0x0002)
}

// parityTable8 is a fixed, build-time lookup table mapping a byte to its
// parity (true = even number of set bits), precomputed the way the
// original source's static PARITY_TABLE is: a read-only table populated
// before any Step call, per the design note on global mutable state
// (spec §9).
var parityTable8 [256]bool

func init() {
	for i := range parityTable8 {
		bits := 0
		for b := i; b != 0; b &= b - 1 {
			bits++
		}
		parityTable8[i] = bits%2 == 0
	}
}
