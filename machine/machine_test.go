package machine

import (
	"testing"

	"github.com/8088cycle/marty88/cpu"
	"github.com/stretchr/testify/require"
)

// newTestMachine builds a Machine with a full megabyte of backing RAM (so
// the reset vector at 0xFFFF0 is addressable) and loads prog at org,
// repointing CS:IP there so tests can write small flat programs without
// fighting the real F000:FFF0 reset vector.
func newTestMachine(t *testing.T, prog []byte, org uint32) *Machine {
	t.Helper()
	m, err := New(Config{RAMSize: 1 << 20})
	require.NoError(t, err)
	m.LoadROM(org, prog)
	m.CPU.SetResetVector(uint16(org>>4), uint16(org&0xF))
	return m
}

func TestMachineAddInstruction(t *testing.T) {
	// ADD AX, BX ; HLT
	prog := []byte{0x01, 0xD8, 0xF4}
	m := newTestMachine(t, prog, 0x1000)
	m.CPU.SetRegister16(cpu.AX, 5)
	m.CPU.SetRegister16(cpu.BX, 7)

	_, _, err := m.Step(false)
	require.NoError(t, err)
	require.Equal(t, uint16(12), m.CPU.Registers16(cpu.AX))
}

func TestMachineDivideByZeroTrap(t *testing.T) {
	// MOV CL,0 ; DIV CL ; HLT, with a divide-error handler installed at
	// IVT vector 0 that increments DX so the test can observe it fired.
	prog := []byte{
		0xB1, 0x00, // MOV CL, 0
		0xF6, 0xF1, // DIV CL
		0xF4, // HLT
	}
	m := newTestMachine(t, prog, 0x1000)

	handler := []byte{
		0x42, // INC DX
		0xCF, // IRET
	}
	m.LoadROM(0x2000, handler)
	// IVT vector 0 at linear 0x0: IP then CS.
	m.LoadROM(0x0000, []byte{0x00, 0x20, 0x00, 0x00})

	m.CPU.SetRegister16(cpu.DX, 0)
	_, _, err := m.Step(false) // MOV CL,0
	require.NoError(t, err)
	_, _, err = m.Step(false) // DIV CL -> traps; control is now at the handler
	require.NoError(t, err)
	_, _, err = m.Step(false) // INC DX in the handler
	require.NoError(t, err)

	require.Equal(t, uint16(1), m.CPU.Registers16(cpu.DX))
}

func TestMachinePITDrivesIRQ0(t *testing.T) {
	prog := []byte{0xF4} // HLT
	m := newTestMachine(t, prog, 0x1000)

	handler := []byte{
		0x43,       // INC BX
		0xB0, 0x20, // MOV AL, 0x20
		0xE6, 0x20, // OUT 0x20, AL  (non-specific EOI)
		0xCF, // IRET
	}
	m.LoadROM(0x3000, handler)
	m.LoadROM(0x0020, []byte{0x00, 0x30, 0x00, 0x00}) // IVT vector 8 = IRQ0

	// Program PIC: ICW1 single mode, ICW2 vector base 8.
	m.Bus.IoWriteU8(0x20, 0x13)
	m.Bus.IoWriteU8(0x21, 0x08)
	m.Bus.IoWriteU8(0x21, 0x00) // ICW4 (ICW1 bit 0 requested it); ICW1 already cleared the mask

	// Program PIT channel 0, mode 0, lobyte/hibyte, small reload so it
	// fires quickly.
	m.Bus.IoWriteU8(0x43, 0x30) // channel 0, lobyte/hibyte, mode 0
	m.Bus.IoWriteU8(0x40, 0x02)
	m.Bus.IoWriteU8(0x40, 0x00)

	m.CPU.SetFlags(0x0200) // IF=1
	m.CPU.SetRegister16(cpu.BX, 0)

	// HLT should wake once IRQ0 fires and run the handler.
	for i := 0; i < 10 && m.CPU.Registers16(cpu.BX) == 0; i++ {
		_, _, err := m.Step(false)
		require.NoError(t, err)
	}
	require.Equal(t, uint16(1), m.CPU.Registers16(cpu.BX))
}
