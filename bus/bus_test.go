package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubMem is a one-register memory-mapped device used to exercise
// RegisterMemory / range routing.
type stubMem struct {
	reads, writes int
	val           uint8
}

func (s *stubMem) MemReadU8(addr uint32) (uint8, int) {
	s.reads++
	return s.val, 1
}

func (s *stubMem) MemWriteU8(addr uint32, val uint8) int {
	s.writes++
	s.val = val
	return 1
}

func (s *stubMem) Tick() Requests { return Requests{} }

func TestReadWriteRAM(t *testing.T) {
	b := New(1024)
	b.WriteU8(0x10, 0x42)
	v, wait := b.ReadU8(0x10)
	require.Equal(t, uint8(0x42), v)
	require.Equal(t, 0, wait)
}

func TestReadUnmappedFloats0xFF(t *testing.T) {
	b := New(16)
	v, wait := b.ReadU8(0x1000)
	require.Equal(t, uint8(0xFF), v)
	require.Equal(t, 0, wait)
}

func TestWriteUnmappedIsDropped(t *testing.T) {
	b := New(16)
	// Address beyond RAM and not claimed by any device: write must not panic
	// and a subsequent read must still float to 0xFF.
	b.WriteU8(0x1000, 0x55)
	v, _ := b.ReadU8(0x1000)
	require.Equal(t, uint8(0xFF), v)
}

func TestWordAccessLittleEndian(t *testing.T) {
	b := New(1024)
	b.WriteU16(0x100, 0x1234)
	lo, _ := b.ReadU8(0x100)
	hi, _ := b.ReadU8(0x101)
	require.Equal(t, uint8(0x34), lo)
	require.Equal(t, uint8(0x12), hi)

	v, _ := b.ReadU16(0x100)
	require.Equal(t, uint16(0x1234), v)
}

func TestRegisterMemoryOverlapRejected(t *testing.T) {
	b := New(1024)
	require.NoError(t, b.RegisterMemory(0xA0000, 0xAFFFF, &stubMem{}))
	err := b.RegisterMemory(0xA8000, 0xA8FFF, &stubMem{})
	require.Error(t, err)
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "memory", rangeErr.Kind)
}

func TestMemDeviceRoutingUsesRelativeAddress(t *testing.T) {
	b := New(16)
	dev := &stubMem{val: 0x7E}
	require.NoError(t, b.RegisterMemory(0x1000, 0x1FFF, dev))

	v, wait := b.ReadU8(0x1500)
	require.Equal(t, uint8(0x7E), v)
	require.Equal(t, 1, wait)
	require.Equal(t, 1, dev.reads)

	b.WriteU8(0x1500, 0x99)
	require.Equal(t, uint8(0x99), dev.val)
	require.Equal(t, 1, dev.writes)
}

func TestWordAccessSpanningDeviceBoundarySplitsIntoTwoByteAccesses(t *testing.T) {
	b := New(0x2000)
	dev := &stubMem{val: 0xAA}
	require.NoError(t, b.RegisterMemory(0x1000, 0x1000, dev)) // exactly one byte claimed

	// Read a word straddling the boundary: byte at 0x1000 comes from dev,
	// byte at 0x1001 comes from RAM.
	b.WriteU8(0x1001, 0x11)
	_, wait := b.ReadU16(0x1000)
	require.Equal(t, 1, wait) // 1 from the device, 0 from plain RAM
	require.Equal(t, 1, dev.reads)
}

type stubPort struct{ val uint8 }

func (s *stubPort) PortReadU8(port uint16) (uint8, int)    { return s.val, 0 }
func (s *stubPort) PortWriteU8(port uint16, val uint8) int { s.val = val; return 0 }

func TestPortRouting(t *testing.T) {
	b := New(16)
	dev := &stubPort{val: 0x5A}
	require.NoError(t, b.RegisterPort(0x60, 0x63, dev))

	v, _ := b.IoReadU8(0x61)
	require.Equal(t, uint8(0x5A), v)

	b.IoWriteU8(0x61, 0x7)
	require.Equal(t, uint8(0x7), dev.val)

	// Unmapped port floats.
	v2, _ := b.IoReadU8(0x300)
	require.Equal(t, uint8(0xFF), v2)
}

func TestRegisterPortOverlapRejected(t *testing.T) {
	b := New(16)
	require.NoError(t, b.RegisterPort(0x20, 0x21, &stubPort{}))
	err := b.RegisterPort(0x21, 0x22, &stubPort{})
	require.Error(t, err)
}

type tickDevice struct {
	ticks int
	req   Requests
}

func (t *tickDevice) Tick() Requests {
	t.ticks++
	return t.req
}

func TestTickAdvancesAllDevicesExactlyOnce(t *testing.T) {
	b := New(16)
	d1 := &tickDevice{}
	d2 := &tickDevice{}
	b.RegisterDevice(d1)
	b.RegisterDevice(d2)

	b.TickN(5)
	require.Equal(t, 5, d1.ticks)
	require.Equal(t, 5, d2.ticks)
	require.Equal(t, uint64(5), b.Ticks())
}

func TestTickAggregatesNMIAndHold(t *testing.T) {
	b := New(16)
	b.RegisterDevice(&tickDevice{req: Requests{NMI: true}})
	b.RegisterDevice(&tickDevice{req: Requests{Hold: true}})

	res := b.Tick()
	require.True(t, res.NMI)
	require.True(t, res.Hold)
}

type holdDevice struct {
	tickDevice
	wants  bool
	grants []int
}

func (h *holdDevice) HoldRequested() bool  { return h.wants }
func (h *holdDevice) HoldAck(count int)    { h.grants = append(h.grants, count) }

func TestHoldDeviceDiscoveredAndGranted(t *testing.T) {
	b := New(16)
	hd := &holdDevice{wants: true}
	b.RegisterDevice(hd)

	require.True(t, b.HoldRequested())
	b.GrantHold(4)
	require.Equal(t, []int{4}, hd.grants)
}

func TestLoadROMOverwritesRAM(t *testing.T) {
	b := New(16)
	b.LoadROM(4, []byte{0xAA, 0xBB})
	v1, _ := b.ReadU8(4)
	v2, _ := b.ReadU8(5)
	require.Equal(t, uint8(0xAA), v1)
	require.Equal(t, uint8(0xBB), v2)
}
