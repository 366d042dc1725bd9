package kernel

// SyncState describes the wall clock's trust level, used by the RTC
// evaluator: an unsynced or invalid clock forces every RTC card's
// LogicalState to false and raises a time-source fault.
type SyncState uint8

const (
	ClockSynced SyncState = iota
	ClockUnsynced
	ClockInvalid
)

// TimeSource is the kernel's only source of time: a monotonic clock for
// scheduling and a wall clock (with trust state) for RTC cards.
type TimeSource interface {
	NowMonotonicUs() uint64
	WallClock() (epochSec uint64, sync SyncState)
}

// DigitalInputAdapter reads one DI channel's raw boolean sample. It must
// return within a bounded time; the kernel never blocks mid-scan on I/O.
type DigitalInputAdapter interface {
	Read(channel uint32) (bool, error)
}

// AnalogInputAdapter reads one AI channel's raw centiunit sample.
type AnalogInputAdapter interface {
	Read(channel uint32) (uint32, error)
}

// DigitalOutputAdapter drives one DO channel. Write must be idempotent:
// writing the same level twice produces the same physical effect as once.
type DigitalOutputAdapter interface {
	Write(channel uint32, on bool) error
}

// FaultKind enumerates the stable fault categories recorded by FaultSink
// and surfaced on the kernel/fault bus topic (SPEC_FULL §4.10/§4.12).
type FaultKind string

const (
	FaultScanOverrun   FaultKind = "SCAN_OVERRUN"
	FaultIOError       FaultKind = "IO_ERROR"
	FaultMathFault     FaultKind = "MATH_FAULT"
	FaultTimeSource    FaultKind = "TIME_SOURCE_FAULT"
	FaultQueueOverflow FaultKind = "QUEUE_OVERFLOW"
)

// FaultSink is the one place every recoverable fault is reported,
// regardless of which card or subsystem raised it. Implementations must
// not block the caller.
type FaultSink interface {
	Record(kind FaultKind, cardID CardID, details string)
}

// NopFaultSink discards every fault; useful for tests that don't care
// about fault plumbing.
type NopFaultSink struct{}

func (NopFaultSink) Record(FaultKind, CardID, string) {}
