package pit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func programMode0(p *PIT, channel int, count uint16) {
	cmd := uint8(channel<<6) | 0x30 // RW=lobyte/hibyte, mode 0
	p.PortWriteU8(3, cmd)
	p.PortWriteU8(uint16(channel), uint8(count))
	p.PortWriteU8(uint16(channel), uint8(count>>8))
}

func TestPITMode0FiresOnceAtTerminalCount(t *testing.T) {
	p := New()
	programMode0(p, 0, 4)

	fired := 0
	for i := 0; i < 4; i++ {
		req := p.Tick()
		if req.IRQ {
			fired++
		}
	}
	require.Equal(t, 1, fired, "mode 0 fires exactly once at terminal count")
}

func TestPITChannel1DrivesRefreshRequest(t *testing.T) {
	p := New()
	cmd := uint8(1<<6) | 0x34 // channel 1, lobyte/hibyte, mode 2
	p.PortWriteU8(3, cmd)
	p.PortWriteU8(1, 18)
	p.PortWriteU8(1, 0)

	sawRefresh := false
	for i := 0; i < 20; i++ {
		if p.Tick().Refresh {
			sawRefresh = true
		}
	}
	require.True(t, sawRefresh)
}

func TestPITLatchCommandFreezesReadout(t *testing.T) {
	p := New()
	programMode0(p, 0, 1000)
	for i := 0; i < 100; i++ {
		p.Tick()
	}

	// Latch command for channel 0: SC=00, RW=00 (latch), mode bits ignored.
	p.PortWriteU8(3, 0x00)
	lo, _ := p.PortReadU8(0)
	hi, _ := p.PortReadU8(0)
	latched := uint16(lo) | uint16(hi)<<8

	// Counter keeps ticking after the latch, but the latched readout must
	// not reflect those further decrements.
	p.Tick()
	require.Equal(t, uint16(900), latched)
}

func TestPITLobyteOnlyReadWriteMode(t *testing.T) {
	p := New()
	// RW=01 (lobyte only), mode 0, channel 2.
	p.PortWriteU8(3, uint8(2<<6)|0x10)
	p.PortWriteU8(2, 0x55)

	v, _ := p.PortReadU8(2)
	require.Equal(t, uint8(0x55), v)
}

func TestPITGateHeldLowStopsCounting(t *testing.T) {
	p := New()
	programMode0(p, 0, 2)
	p.SetGate(0, false)

	for i := 0; i < 10; i++ {
		require.False(t, p.Tick().IRQ)
	}
}
