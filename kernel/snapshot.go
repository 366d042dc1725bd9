package kernel

// RunMode selects the scheduler's evaluation cadence (§4.1). RUN_SLOW is
// named in §6 only to be rejected; it is not a member of this type.
type RunMode uint8

const (
	RunNormal RunMode = iota
	RunStep
	RunBreakpoint
)

// ForceMode selects how a DI or AI channel's sample is produced.
type ForceMode uint8

const (
	ForceReal ForceMode = iota
	ForceHigh           // DI only
	ForceLow            // DI only
	ForceValue          // AI only
)

// InputForce is a runtime-only override held in a parallel structure
// keyed by cardId; it never mutates config (§3 Lifecycle).
type InputForce struct {
	Mode  ForceMode
	Value uint32 // used when Mode == ForceValue
}

// TestMode mirrors the snapshot's testMode block.
type TestMode struct {
	OutputMaskGlobal bool
	InputsForced     map[CardID]InputForce
}

// SystemStatus mirrors the snapshot's system block.
type SystemStatus struct {
	AlarmActive bool
	WifiOnline  bool
	FwVersion   string
}

// CardSnapshot is the authoritative, read-only view of one card's runtime
// published in a Snapshot. It is a flattened copy, not a pointer into the
// live Card, so a reader can never observe a partially-updated card.
type CardSnapshot struct {
	ID     CardID
	Type   CardType
	Health Health

	DI   *DIRuntime
	AI   *AIRuntime
	SIO  *SIORuntime
	DO   *DORuntime
	MATH *MATHRuntime
	RTC  *RTCRuntime
}

// Snapshot is the immutable record published at the end of every
// completed scan (§3, §5). Once published, a Snapshot is never mutated;
// the next scan constructs a brand new one.
type Snapshot struct {
	Revision       uint64
	TimestampMs    uint64
	ScanIntervalMs uint32
	RunMode        RunMode
	TestMode       TestMode
	System         SystemStatus
	Cards          []CardSnapshot
}

// buildSnapshot copies every card's runtime into a fresh, immutable
// Snapshot in scan order. The copy is the price of wait-free readers: it
// happens once per scan, after evaluation, never mid-scan.
func buildSnapshot(g *Graph, revision uint64, nowMs uint64, runMode RunMode, testMode TestMode, sys SystemStatus) *Snapshot {
	cards := make([]CardSnapshot, len(g.cards))
	for i, c := range g.cards {
		cs := CardSnapshot{ID: c.ID, Type: c.Type, Health: c.Health}
		switch c.Type {
		case CardDI:
			v := *c.DIRun
			cs.DI = &v
		case CardAI:
			v := *c.AIRun
			cs.AI = &v
		case CardSIO:
			v := *c.SIORun
			cs.SIO = &v
		case CardDO:
			v := *c.DORun
			cs.DO = &v
		case CardMATH:
			v := *c.MATHRun
			cs.MATH = &v
		case CardRTC:
			v := *c.RTCRun
			cs.RTC = &v
		}
		cards[i] = cs
	}
	// The force map is copied as well: the scheduler keeps mutating its own.
	forced := make(map[CardID]InputForce, len(testMode.InputsForced))
	for id, f := range testMode.InputsForced {
		forced[id] = f
	}
	testMode.InputsForced = forced
	return &Snapshot{
		Revision:       revision,
		TimestampMs:    nowMs,
		ScanIntervalMs: g.ScanIntervalMs,
		RunMode:        runMode,
		TestMode:       testMode,
		System:         sys,
		Cards:          cards,
	}
}

// SnapshotExchange is a single-producer, multi-consumer wait-free
// exchange: the scheduler (sole producer) calls Publish; any number of
// readers call Load without blocking the producer or each other. It is
// implemented as an atomically-swapped pointer to an immutable Snapshot —
// the "triple buffer or seq-lock" design note reduces, for a single
// producer with no requirement to recycle buffers, to a plain atomic
// pointer swap.
type SnapshotExchange struct {
	cell atomicSnapshotPtr
}

func NewSnapshotExchange() *SnapshotExchange { return &SnapshotExchange{} }

// Publish installs snap as the latest snapshot. Revision must be
// strictly greater than any previously published revision; the
// scheduler, as sole producer, is responsible for that invariant.
func (x *SnapshotExchange) Publish(snap *Snapshot) { x.cell.Store(snap) }

// Load returns the most recently published snapshot, or nil if none has
// been published yet.
func (x *SnapshotExchange) Load() *Snapshot { return x.cell.Load() }
