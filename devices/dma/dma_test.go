package dma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefreshRequestHoldsAndReleases(t *testing.T) {
	c := New()
	c.PortWriteU8(0x0A, 0x00) // unmask channel 0

	require.False(t, c.HoldRequested())
	c.RequestRefresh()
	require.True(t, c.HoldRequested())

	c.HoldAck(4)
	require.True(t, c.Holding())
	require.False(t, c.HoldRequested(), "request cleared once serviced")

	c.ReleaseHold()
	require.False(t, c.Holding())
}

func TestMaskedChannelRequestIgnored(t *testing.T) {
	c := New()
	// Channel 1 left masked (power-on default).
	c.RequestChannel(1)
	require.False(t, c.HoldRequested())
}

func TestAddressCountProgrammingFlipFlop(t *testing.T) {
	c := New()
	c.PortWriteU8(0x0C, 0) // clear flip-flop
	c.PortWriteU8(0x00, 0x34)
	c.PortWriteU8(0x00, 0x12)

	// Readback toggles the flip-flop the same way programming did.
	lo, _ := c.PortReadU8(0x00)
	hi, _ := c.PortReadU8(0x00)
	require.Equal(t, uint8(0x34), lo)
	require.Equal(t, uint8(0x12), hi)
}

func TestAutoinitializeReloadsOnTerminalCount(t *testing.T) {
	c := New()
	c.PortWriteU8(0x0C, 0)
	c.PortWriteU8(0x02, 0x01) // channel 1 address low
	c.PortWriteU8(0x02, 0x00)
	c.PortWriteU8(0x03, 0x00) // channel 1 count low = 0
	c.PortWriteU8(0x03, 0x00)
	c.PortWriteU8(0x0B, 0x15) // mode: channel 1, write transfer, autoinitialize, demand mode

	c.PortWriteU8(0x0A, 0x01) // unmask channel 1
	c.RequestChannel(1)
	c.HoldAck(1)

	require.Equal(t, uint16(0x0001), c.ch[1].addr)
}

func TestPageRegisterExtendsAddress(t *testing.T) {
	c := New()
	c.WritePage(0, 0x0A)
	require.Equal(t, uint32(0x0A0000), c.PhysicalAddress(0))
}
