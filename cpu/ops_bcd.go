package cpu

// ops_bcd.go implements the packed/unpacked decimal adjust instructions:
// DAA, DAS (packed, operate on AL after an ADD/SUB), and AAA, AAS, AAM, AAD
// (unpacked, operate on AX). Flag behavior for these follows the commonly
// documented tables rather than an exhaustive undefined-case
// characterization: flags those tables leave undefined are left unchanged
// (OF for DAA/DAS; OF, SF, ZF and PF for AAA/AAS), except that AAM and AAD
// set flags through setFlagsLogical, which clears CF, OF and AF.

func registerBCD() {
	opcodeTable[0x27] = opDAA
	opcodeTable[0x2F] = opDAS
	opcodeTable[0x37] = opAAA
	opcodeTable[0x3F] = opAAS
	opcodeTable[0xD4] = opAAM
	opcodeTable[0xD5] = opAAD
}

func opDAA(c *CPU) {
	al := c.reg.get8(AL)
	oldAL := al
	oldCF := c.reg.getFlag(FlagCarry)
	cf := false
	af := c.reg.getFlag(FlagAuxCarry)

	if al&0x0F > 9 || af {
		carryOut := al > 0xF9
		al += 6
		af = true
		cf = oldCF || carryOut
	}
	if oldAL > 0x99 || oldCF {
		al += 0x60
		cf = true
	}

	c.reg.set8(AL, al)
	c.reg.setFlag(FlagAuxCarry, af)
	c.reg.setFlag(FlagCarry, cf)
	c.reg.setFlag(FlagZero, al == 0)
	c.reg.setFlag(FlagSign, al&0x80 != 0)
	c.reg.setFlag(FlagParity, parityTable8[al])
	c.cyclesIdle(4)
}

func opDAS(c *CPU) {
	al := c.reg.get8(AL)
	oldAL := al
	oldCF := c.reg.getFlag(FlagCarry)
	cf := false
	af := c.reg.getFlag(FlagAuxCarry)

	if al&0x0F > 9 || af {
		borrowOut := al < 6
		al -= 6
		af = true
		cf = oldCF || borrowOut
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		cf = true
	}

	c.reg.set8(AL, al)
	c.reg.setFlag(FlagAuxCarry, af)
	c.reg.setFlag(FlagCarry, cf)
	c.reg.setFlag(FlagZero, al == 0)
	c.reg.setFlag(FlagSign, al&0x80 != 0)
	c.reg.setFlag(FlagParity, parityTable8[al])
	c.cyclesIdle(4)
}

func opAAA(c *CPU) {
	al := c.reg.get8(AL)
	ah := c.reg.get8(AH)
	if al&0x0F > 9 || c.reg.getFlag(FlagAuxCarry) {
		al += 6
		ah++
		c.reg.setFlag(FlagAuxCarry, true)
		c.reg.setFlag(FlagCarry, true)
	} else {
		c.reg.setFlag(FlagAuxCarry, false)
		c.reg.setFlag(FlagCarry, false)
	}
	al &= 0x0F
	c.reg.set8(AL, al)
	c.reg.set8(AH, ah)
	c.cyclesIdle(8)
}

func opAAS(c *CPU) {
	al := c.reg.get8(AL)
	ah := c.reg.get8(AH)
	if al&0x0F > 9 || c.reg.getFlag(FlagAuxCarry) {
		al -= 6
		ah--
		c.reg.setFlag(FlagAuxCarry, true)
		c.reg.setFlag(FlagCarry, true)
	} else {
		c.reg.setFlag(FlagAuxCarry, false)
		c.reg.setFlag(FlagCarry, false)
	}
	al &= 0x0F
	c.reg.set8(AL, al)
	c.reg.set8(AH, ah)
	c.cyclesIdle(8)
}

func opAAM(c *CPU) {
	base := c.fetchInstructionByte() // conventionally 0x0A
	al := c.reg.get8(AL)
	if base == 0 {
		c.int0()
		return
	}
	ah := al / base
	al = al % base
	c.reg.set8(AH, ah)
	c.reg.set8(AL, al)
	c.setFlagsLogical(uint32(al), WidthByte)
	c.cyclesIdle(83)
}

func opAAD(c *CPU) {
	base := c.fetchInstructionByte() // conventionally 0x0A
	al := c.reg.get8(AL)
	ah := c.reg.get8(AH)
	result := uint8(uint16(ah)*uint16(base) + uint16(al))
	c.reg.set8(AL, result)
	c.reg.set8(AH, 0)
	c.setFlagsLogical(uint32(result), WidthByte)
	c.cyclesIdle(60)
}
