package cpu

// CpuOption is the runtime configuration surface enumerated in spec §6.
// It is a tagged union: Go expresses this as an interface with a private
// marker method (the same shape the retrieval pack's variant-instruction
// cores use for closed sets of cases), so SetOption can switch
// exhaustively over the concrete option types without an open string/enum
// key space.
type CpuOption interface {
	isCpuOption()
}

// InstructionHistory enables or disables the bounded instruction-history
// ring (spec §4.3.3).
type InstructionHistory struct{ Enabled bool }

func (InstructionHistory) isCpuOption() {}

// ScheduleInterrupt injects a periodic test NMI pulse, used by the
// validation harness: every PeriodCycles cycles, once CyclesIntoPeriod
// cycles have elapsed within the period, an NMI edge fires as if asserted
// by hardware. If Retrigger is false it fires only once.
type ScheduleInterrupt struct {
	Enabled          bool
	PeriodCycles     uint64
	CyclesIntoPeriod uint64
	Retrigger        bool
}

func (ScheduleInterrupt) isCpuOption() {}

// ScheduleDramRefresh models PIT-channel-1-driven refresh HOLD contention
// independently of an attached PIT device, for tests that want refresh
// stalls without wiring a full machine.
type ScheduleDramRefresh struct {
	Enabled          bool
	PeriodCycles     uint64
	CyclesPerRefresh uint64
	Retrigger        bool
}

func (ScheduleDramRefresh) isCpuOption() {}

// DramRefreshAdjust shifts the refresh phase by a signed cycle offset.
type DramRefreshAdjust struct{ Cycles int }

func (DramRefreshAdjust) isCpuOption() {}

// HaltResumeDelay charges an additional configurable delay when resuming
// from HLT (spec §4.3.2 "HLT").
type HaltResumeDelay struct{ Cycles uint64 }

func (HaltResumeDelay) isCpuOption() {}

// OffRailsDetection trips a ServiceEvent on pathological prefix/loop runs
// (spec §4.3.2 "Prefix chains").
type OffRailsDetection struct{ Enabled bool }

func (OffRailsDetection) isCpuOption() {}

// EnableWaitStates forces uniform bus timing (no device-requested wait
// states) when false, for tests that want deterministic cycle counts.
type EnableWaitStates struct{ Enabled bool }

func (EnableWaitStates) isCpuOption() {}

// TraceLoggingEnabled turns on trace emission (one event per bus read,
// bus write or taken jump) to the configured Logger sink (spec §9 "Trace / validator side-channels").
type TraceLoggingEnabled struct{ Enabled bool }

func (TraceLoggingEnabled) isCpuOption() {}

// EnableServiceInterrupt enables INT FC vendor-trap routing (spec §4.3.2
// "Service trap").
type EnableServiceInterrupt struct{ Enabled bool }

func (EnableServiceInterrupt) isCpuOption() {}

// SetOption applies a runtime configuration change.
func (c *CPU) SetOption(opt CpuOption) {
	switch o := opt.(type) {
	case InstructionHistory:
		c.instructionHistoryOn = o.Enabled
		if !o.Enabled {
			c.history = c.history[:0]
		}
	case ScheduleInterrupt:
		c.interruptScheduling = o.Enabled
		c.interruptCyclePeriod = o.PeriodCycles
		c.interruptCycleNum = o.CyclesIntoPeriod
		c.interruptRetrigger = o.Retrigger
	case ScheduleDramRefresh:
		c.dramRefreshSimulation = o.Enabled
		c.dramRefreshCyclePeriod = o.PeriodCycles
		c.dramRefreshCyclesPer = o.CyclesPerRefresh
		c.dramRefreshRetrigger = o.Retrigger
		c.dramRefreshTC = false
	case DramRefreshAdjust:
		c.dramRefreshAdjust = o.Cycles
	case HaltResumeDelay:
		c.haltResumeDelay = o.Cycles
	case OffRailsDetection:
		c.offRailsDetection = o.Enabled
	case EnableWaitStates:
		c.enableWaitStates = o.Enabled
	case TraceLoggingEnabled:
		c.traceEnabled = o.Enabled
		if !o.Enabled {
			c.traceFlush()
		}
	case EnableServiceInterrupt:
		c.enableServiceInterrupt = o.Enabled
	}
}

// GetOption reports whether the given option kind is currently active.
// Mirrors the original source's get_option/set_option pair (SPEC_FULL §4.1).
func (c *CPU) GetOption(opt CpuOption) bool {
	switch opt.(type) {
	case InstructionHistory:
		return c.instructionHistoryOn
	case ScheduleInterrupt:
		return c.interruptScheduling
	case ScheduleDramRefresh:
		return c.dramRefreshSimulation
	case DramRefreshAdjust:
		return true
	case HaltResumeDelay:
		return true
	case OffRailsDetection:
		return c.offRailsDetection
	case EnableWaitStates:
		return c.enableWaitStates
	case TraceLoggingEnabled:
		return c.traceEnabled
	case EnableServiceInterrupt:
		return c.enableServiceInterrupt
	}
	return false
}
