package cpu

// ops_flags.go implements flag manipulation (CLC/STC/CMC/CLD/STD/CLI/STI,
// LAHF/SAHF, PUSHF/POPF) and HLT/WAIT.

func registerFlagsAndMisc() {
	opcodeTable[0xF5] = func(c *CPU) { c.reg.setFlag(FlagCarry, !c.reg.getFlag(FlagCarry)); c.cyclesIdle(2) }
	opcodeTable[0xF8] = func(c *CPU) { c.reg.setFlag(FlagCarry, false); c.cyclesIdle(2) }
	opcodeTable[0xF9] = func(c *CPU) { c.reg.setFlag(FlagCarry, true); c.cyclesIdle(2) }
	opcodeTable[0xFC] = func(c *CPU) { c.reg.setFlag(FlagDirection, false); c.cyclesIdle(2) }
	opcodeTable[0xFD] = func(c *CPU) { c.reg.setFlag(FlagDirection, true); c.cyclesIdle(2) }
	opcodeTable[0xFA] = func(c *CPU) { c.reg.setFlag(FlagInterrupt, false); c.cyclesIdle(2) }
	opcodeTable[0xFB] = func(c *CPU) {
		c.reg.setFlag(FlagInterrupt, true)
		// STI delays interrupt recognition until after the next instruction,
		// matching the documented one-instruction inhibit (spec §4.3.2).
		c.interruptInhibit = true
		c.cyclesIdle(2)
	}

	opcodeTable[0x9F] = func(c *CPU) { // LAHF
		c.reg.set8(AH, uint8(c.reg.flags))
		c.cyclesIdle(4)
	}
	opcodeTable[0x9E] = func(c *CPU) { // SAHF
		ah := c.reg.get8(AH)
		preserved := c.reg.flags &^ 0x00FF
		c.reg.setFlags(preserved | uint16(ah))
		c.cyclesIdle(4)
	}
	opcodeTable[0x9C] = func(c *CPU) { // PUSHF
		c.pushStack(c.reg.flags)
		c.cyclesIdle(10)
	}
	opcodeTable[0x9D] = func(c *CPU) { // POPF
		v := c.popStack()
		oldTrap := c.reg.getFlag(FlagTrap)
		c.reg.setFlags(v)
		c.applyTrapDelay(oldTrap, c.reg.getFlag(FlagTrap))
		c.cyclesIdle(8)
	}

	opcodeTable[0xF4] = func(c *CPU) {
		c.halted = true
		c.services.push(ServiceEvent{Kind: EventHalted})
		c.cyclesIdle(2)
	}
	opcodeTable[0x9B] = func(c *CPU) {
		// WAIT: spins until the 8087's TEST pin is asserted. No coprocessor
		// is modeled, so this is a charged no-op (spec's Non-goals exclude
		// 8087 emulation).
		c.cyclesIdle(4)
	}

	opcodeTable[0x98] = func(c *CPU) { // CBW
		al := int8(c.reg.get8(AL))
		c.reg.set16(AX, uint16(int16(al)))
		c.cyclesIdle(2)
	}
	opcodeTable[0x99] = func(c *CPU) { // CWD
		ax := int16(c.reg.get16(AX))
		if ax < 0 {
			c.reg.set16(DX, 0xFFFF)
		} else {
			c.reg.set16(DX, 0)
		}
		c.cyclesIdle(5)
	}
}
