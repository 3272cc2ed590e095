// Package machine assembles a bus.Bus, the PIC/PIT/DMA peripherals, and a
// cpu.CPU into a runnable 5150/5160-class system (spec §0, SPEC_FULL §4
// item 8). It owns the glue a real PC/XT motherboard provides for free:
// routing PIT channel 0's terminal count into the PIC's IRQ0, PIT channel
// 1's terminal count into the DMA controller's refresh request, and the
// PIC's INTR output back into the CPU's hardware interrupt pin.
package machine

import (
	"github.com/8088cycle/marty88/bus"
	"github.com/8088cycle/marty88/cpu"
	"github.com/8088cycle/marty88/devices/dma"
	"github.com/8088cycle/marty88/devices/pic"
	"github.com/8088cycle/marty88/devices/pit"
)

// Config selects the assembled machine's CPU variant and a handful of
// timing behaviors a validation harness wants to toggle independently of
// the devices actually being present (SPEC_FULL §0).
type Config struct {
	Variant cpu.Variant
	RAMSize int

	// EnableRefresh wires PIT channel 1's terminal count into a DMA
	// channel-0 HOLD request, as PC/XT hardware does. Tests that want
	// deterministic cycle counts for a single instruction typically leave
	// this false.
	EnableRefresh bool
}

const defaultRAMSize = 640 * 1024

// Machine is the assembled system: the public fields are the concrete
// components, available for direct port/memory wiring by a caller building
// a BIOS-equivalent boot image or a test fixture.
type Machine struct {
	Bus *bus.Bus
	CPU *cpu.CPU
	PIC *pic.PIC
	PIT *pit.PIT
	DMA *dma.Controller
}

// New assembles a Machine. Device port ranges are fixed at the classic
// PC/XT addresses: PIC at 0x20-0x21, PIT at 0x40-0x43, DMA channel
// registers and mask/mode ports at 0x00-0x0F.
func New(cfg Config) (*Machine, error) {
	if cfg.RAMSize <= 0 {
		cfg.RAMSize = defaultRAMSize
	}

	b := bus.New(cfg.RAMSize)
	p := pic.New()
	t := pit.New()
	d := dma.New()

	if err := b.RegisterPort(0x20, 0x21, p); err != nil {
		return nil, err
	}
	if err := b.RegisterPort(0x40, 0x43, t); err != nil {
		return nil, err
	}
	if err := b.RegisterPort(0x00, 0x0F, d); err != nil {
		return nil, err
	}

	b.RegisterDevice(p)
	b.RegisterDevice(d)

	c := cpu.New(cfg.Variant, b)

	b.RegisterDevice(&pitBridge{
		pit:            t,
		pic:            p,
		dma:            d,
		cpu:            c,
		refreshEnabled: cfg.EnableRefresh,
	})

	return &Machine{Bus: b, CPU: c, PIC: p, PIT: t, DMA: d}, nil
}

// pitBridge carries the motherboard-level wiring a PIT/PIC/DMA chipset
// normally hardwires in silicon: channel 0's terminal count to IRQ0,
// channel 1's terminal count to a DMA refresh request, and the PIC's
// output back to the CPU's INTR pin. It is ticked like any other device
// but produces no request lines of its own — its job is entirely the
// side-effecting calls into the other three components.
type pitBridge struct {
	pit *pit.PIT
	pic *pic.PIC
	dma *dma.Controller
	cpu *cpu.CPU

	refreshEnabled bool
}

func (pb *pitBridge) Tick() bus.Requests {
	req := pb.pit.Tick()
	if req.IRQ {
		pb.pic.Raise(0)
	}
	if req.Refresh && pb.refreshEnabled {
		pb.dma.RequestRefresh()
	}
	pb.pic.Tick()
	pb.cpu.SetINTR(pb.pic.INTR())
	return bus.Requests{}
}

// LoadROM copies a boot image into the machine's address space.
func (m *Machine) LoadROM(addr uint32, data []byte) { m.Bus.LoadROM(addr, data) }

// Step advances the CPU by exactly one instruction (see cpu.CPU.Step).
func (m *Machine) Step(skipBreakpoint bool) (cpu.StepResult, uint64, error) {
	return m.CPU.Step(skipBreakpoint)
}

// Reset performs an architectural CPU reset; devices are not reset (a real
// PC/XT's RESET line only resets the CPU and a handful of latches the
// chipset owns, not the PIT's programmed counters).
func (m *Machine) Reset() { m.CPU.Reset() }
