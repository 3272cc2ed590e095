package cpu

// historyCapacity bounds the instruction-history ring (spec §4.3.3).
const historyCapacity = 256

// HistoryEntry records one successfully executed instruction: its
// starting CS:IP, the raw opcode bytes, a short mnemonic, and its cycle
// cost. Oldest entries are evicted on overflow.
type HistoryEntry struct {
	CS      uint16
	IP      uint16
	Bytes   []byte
	Mnemonic string
	Cycles  uint32
}

func (c *CPU) recordHistory(entry HistoryEntry) {
	if !c.instructionHistoryOn {
		return
	}
	c.history = append(c.history, entry)
	if len(c.history) > historyCapacity {
		c.history = c.history[len(c.history)-historyCapacity:]
	}
}

// InstructionHistory returns a snapshot of the instruction-history ring,
// oldest entry first.
func (c *CPU) InstructionHistory() []HistoryEntry {
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}
