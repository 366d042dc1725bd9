// Package kernel implements the deterministic scan-based evaluation core
// of the controller: the card data model, the condition/binding algebra,
// the per-family evaluators, the fixed-tick scheduler, the commit
// pipeline, and the runtime control surface. Exactly one goroutine (the
// scheduler's scan loop) ever mutates a Card's runtime fields; everything
// else communicates through the bounded command queue and the published
// Snapshot.
package kernel

// Centi is an unsigned, fixed-point "centiunit": stored = round(display *
// 100). All decimal configuration and runtime numerics in the scan path
// use this type instead of float32/float64, per the no-floating-point
// invariant on the kernel path.
type Centi = uint32

// CardID uniquely and stably identifies a card; ascending CardID order is
// the one and only evaluation order (see Scheduler.runScan).
type CardID = uint32

// CardType is the family discriminant. Dispatch on CardType replaces
// virtual calls in the scan path; every switch over CardType in this
// package is exhaustive.
type CardType uint8

const (
	CardDI CardType = iota
	CardAI
	CardSIO
	CardDO
	CardMATH
	CardRTC
)

func (t CardType) String() string {
	switch t {
	case CardDI:
		return "DI"
	case CardAI:
		return "AI"
	case CardSIO:
		return "SIO"
	case CardDO:
		return "DO"
	case CardMATH:
		return "MATH"
	case CardRTC:
		return "RTC"
	default:
		return "UNKNOWN"
	}
}

// FaultPolicy governs how a card's own faults are weighed when deciding
// health and output safety behavior.
type FaultPolicy uint8

const (
	FaultInfo FaultPolicy = iota
	FaultWarn
	FaultCritical
)

// Health summarizes a card's current condition for the snapshot.
type Health uint8

const (
	HealthOK Health = iota
	HealthWarn
	HealthFault
)

// Card is a record with shared fields plus exactly one non-nil
// family-specific config/runtime pair, selected by Type. This is the
// tagged-variant idiom this kernel uses in place of inheritance: a Go
// interface-per-family would force a virtual call inside the scan loop,
// which the no-dynamic-dispatch design note rules out.
type Card struct {
	ID          CardID
	Type        CardType
	Enabled     bool
	Label       string
	FaultPolicy FaultPolicy

	DI   *DIConfig
	AI   *AIConfig
	SIO  *SIOConfig
	DO   *DOConfig
	MATH *MATHConfig
	RTC  *RTCConfig

	DIRun   *DIRuntime
	AIRun   *AIRuntime
	SIORun  *SIORuntime
	DORun   *DORuntime
	MATHRun *MATHRuntime
	RTCRun  *RTCRuntime

	// Common runtime, present on every card regardless of family.
	Health       Health
	LastEvalUs   uint64
	FaultCounter uint64
}

// EdgeMode selects which sample transition qualifies as an edge for DI.
type EdgeMode uint8

const (
	EdgeRising EdgeMode = iota
	EdgeFalling
	EdgeChange
)

// DIState is the debounce/edge-qualification state machine phase.
type DIState uint8

const (
	DIIdle DIState = iota
	DIFiltering
	DIQualified
	DIInhibited
)

// DIConfig is the DI family's configuration variant.
type DIConfig struct {
	Channel       uint32
	Invert        bool
	DebounceTime  Centi // ms, centiunits
	EdgeMode      EdgeMode
	Set           *ConditionBlock
	Reset         *ConditionBlock
	CounterVisible bool
}

// DIRuntime is the DI family's runtime variant.
type DIRuntime struct {
	State         DIState
	LogicalState  bool
	PhysicalState bool
	TriggerFlag   bool
	CurrentValue  uint32 // qualified-edge counter

	lastSample      bool // previous scan's effective (post-invert) sample
	debounceStartUs uint64
	debouncing       bool
	forcePrimed      bool // set on force-mode transition; suppresses one edge
}

// Quality describes the trust level of an AI sample.
type Quality uint8

const (
	QualityGood Quality = iota
	QualityClamped
	QualityInvalid
)

// Range is an inclusive [Min, Max] bound in centiunits.
type Range struct{ Min, Max Centi }

// AIConfig is the AI family's configuration variant.
type AIConfig struct {
	Channel     uint32
	Unit        string
	InputRange  Range
	ClampRange  Range
	OutputRange Range
	EmaAlpha    Centi // 0..100
}

// AIRuntime is the AI family's runtime variant.
type AIRuntime struct {
	CurrentValue uint32
	QualityFlag  Quality
}

// SIOMode selects how a timed-output mission behaves.
type SIOMode uint8

const (
	ModeNormal SIOMode = iota
	ModeImmediate
	ModeGated
)

// MissionState is the DO/SIO timed-sequence lifecycle.
type MissionState uint8

const (
	MissionIdle MissionState = iota
	MissionOnDelay
	MissionActive
	MissionFinished
)

// WritePolicy gates whether the control surface may force a SIO output.
type WritePolicy uint8

const (
	WriteAllowed WritePolicy = iota
	WriteForbidden
)

// SIOConfig is the SIO family's configuration variant.
type SIOConfig struct {
	Mode          SIOMode
	DelayBeforeON Centi // ms
	OnDuration    Centi // ms
	RepeatCount   uint32
	Set           *ConditionBlock
	Reset         *ConditionBlock
	WritePolicy   WritePolicy
}

// SIORuntime is the SIO family's runtime variant.
type SIORuntime struct {
	LogicalState  bool
	PhysicalState bool
	MissionState  MissionState
	CurrentValue  uint32 // completed-cycle counter

	phaseStartUs  uint64
	lastSetOk     bool
	masked        bool // set via set_output_mask when WritePolicy allows it
}

// DOConfig is the DO family's configuration variant: a SIO body plus a
// hardware channel and no WritePolicy (outputs are always writable by the
// control surface's mask commands, only the card's own logic is gated).
type DOConfig struct {
	Channel       uint32
	Mode          SIOMode
	DelayBeforeON Centi
	OnDuration    Centi
	RepeatCount   uint32
	Set           *ConditionBlock
	Reset         *ConditionBlock
	SafeState     bool // driven level on an active CRITICAL fault
}

// DORuntime embeds the SIO mission runtime plus output-specific fields.
type DORuntime struct {
	SIORuntime
	PhysicalDrive bool
	Masked        bool
	IOFault       bool // true when the most recent hardware write failed
}

// MathMode selects the MATH family's evaluation strategy.
type MathMode uint8

const (
	MathStandardPipeline MathMode = iota
	MathPID
)

// MathOperator is the arithmetic stage's operator for StandardPipeline.
type MathOperator uint8

const (
	OpAdd MathOperator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpMin
	OpMax
)

// Operand selects a MATH input's source.
type Operand struct {
	Mode  RefMode
	Value Centi   // used when Mode == RefConstant
	Ref   *SourceRef // used when Mode == RefVariable
}

// StandardParams configures the StandardPipeline mode.
type StandardParams struct {
	Operator    MathOperator
	InputA      Operand
	InputB      Operand
	RateLimit   Centi // units/sec in centiunits; 0 disables
	ClampMin    Centi
	ClampMax    Centi
	ScaleMin    Centi
	ScaleMax    Centi
	EmaAlpha    Centi
}

// IntegralResetPolicy governs PID integral-term clearing.
type IntegralResetPolicy uint8

const (
	IntegralResetOnReset IntegralResetPolicy = iota
	IntegralResetOnSignChange
	IntegralResetNever
)

// PIDParams configures the PID mode.
type PIDParams struct {
	Setpoint            Operand
	ProcessVariable      SourceRef
	KP, KI, KD          Centi
	OutputMin, OutputMax Centi
	IntegralResetPolicy IntegralResetPolicy
}

// MATHConfig is the MATH family's configuration variant.
type MATHConfig struct {
	Mode          MathMode
	Set           *ConditionBlock
	Reset         *ConditionBlock
	FallbackValue Centi
	Standard      *StandardParams
	PID           *PIDParams
}

// MATHRuntime is the MATH family's runtime variant.
type MATHRuntime struct {
	CurrentValue      uint32
	IntermediateValue uint32
	FaultStatus       bool

	prevValue    uint32 // previous scan's CurrentValue, for rate-limit/derivative
	havePrev     bool
	integral     int64 // PID integral accumulator, centiunit*ms scale
	lastErrSign  int8
}

// RTCSchedule is a wall-clock match pattern; a nil field is a wildcard.
type RTCSchedule struct {
	Year    *uint32 // absolute calendar year, wildcard if nil
	Month   *uint8  // 1..12
	Day     *uint8  // 1..31
	Hour    uint8   // 0..23
	Minute  uint8   // 0..59
	Second  uint8   // 0..59
	Weekday *uint8  // 1..7, ISO-8601 (1=Monday)
}

// RTCConfig is the RTC family's configuration variant.
type RTCConfig struct {
	Schedule        RTCSchedule
	TriggerDuration Centi // ms
}

// RTCRuntime is the RTC family's runtime variant.
type RTCRuntime struct {
	LogicalState          bool
	TimeUntilNextStartSec uint32
	TimeUntilNextEndSec   uint32

	activeUntilMs uint64
	everFired     bool
}
