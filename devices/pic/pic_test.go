package pic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func initPIC(p *PIC, vectorBase uint8) {
	p.PortWriteU8(0, 0x13)       // ICW1: edge-triggered, single PIC, ICW4 needed
	p.PortWriteU8(1, vectorBase) // ICW2: vector base
	p.PortWriteU8(1, 0x01)       // ICW4: 8086 mode, normal EOI
	p.PortWriteU8(1, 0x00)       // OCW1: unmask everything
}

func TestPICBasicRaiseAcknowledge(t *testing.T) {
	p := New()
	initPIC(p, 0x08)

	require.False(t, p.INTR())
	p.Raise(0)
	require.True(t, p.INTR())

	vec := p.Acknowledge()
	require.Equal(t, uint8(0x08), vec)
	require.Equal(t, uint8(0x01), p.ReadISR())

	p.EOI()
	require.Equal(t, uint8(0), p.ReadISR())
}

func TestPICPriorityLowerIRQWins(t *testing.T) {
	p := New()
	initPIC(p, 0x08)

	p.Raise(3)
	p.Raise(1)
	p.Raise(0)

	vec := p.Acknowledge()
	require.Equal(t, uint8(0x08), vec, "IRQ0 has highest priority")
}

func TestPICMaskedLineNotDelivered(t *testing.T) {
	p := New()
	initPIC(p, 0x08)
	p.WriteIMR(0x01) // mask IRQ0

	p.Raise(0)
	require.False(t, p.INTR())

	p.Raise(1)
	require.True(t, p.INTR())
	require.Equal(t, uint8(0x09), p.Acknowledge())
}

func TestPICFullyNestedBlocksLowerPriorityWhileInService(t *testing.T) {
	p := New()
	initPIC(p, 0x08)

	p.Raise(2)
	vec := p.Acknowledge()
	require.Equal(t, uint8(0x0A), vec)

	// IRQ4 (lower priority than IRQ2, still in service) must not be delivered yet.
	p.Raise(4)
	require.False(t, p.INTR())

	p.EOI()
	require.True(t, p.INTR())
	require.Equal(t, uint8(0x0C), p.Acknowledge())
}

func TestPICSpuriousVectorOnEmptyAcknowledge(t *testing.T) {
	p := New()
	initPIC(p, 0x08)
	// No line pending: a spurious INTA still returns a vector (IRQ7's).
	require.Equal(t, uint8(0x0F), p.Acknowledge())
}
