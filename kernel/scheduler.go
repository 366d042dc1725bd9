package kernel

import (
	"advancedtimer/errcode"
	"advancedtimer/x/conv"
)

// faultDetail builds a fault's Details string from a label and a
// channel number without going through fmt: the scan path has a
// no-dynamic-allocation-per-scan invariant, and conv.Utoa formats
// straight into a stack buffer.
func faultDetail(label string, channel uint32) string {
	var buf [20]byte
	return label + " channel " + string(conv.Utoa(buf[:], uint64(channel)))
}

// Scheduler is the kernel's single scan thread. Every field below is
// touched only from tick/runScan except where guarded by the command
// queue or the SnapshotExchange; there is no other synchronization
// because there is no other writer.
type Scheduler struct {
	graph    *Graph
	oldGraph *Graph // retained one generation back, for carryOver diagnostics

	runMode          RunMode
	stepPending      bool
	breakpointPaused bool
	breakpointAck    bool // true for one card: the one just resumed past by continue
	breakpoints      map[CardID]bool
	testMode         TestMode

	cmdQueue chan Command
	results  chan CommandResult

	snapshots *SnapshotExchange
	faults    FaultSink
	time      TimeSource

	di DigitalInputAdapter
	ai AnalogInputAdapter
	do DigitalOutputAdapter

	revision    uint64
	system      SystemStatus
	cursor      int    // index into graph.cards: the next position to evaluate
	pausedAtID  CardID // cardId the scan is halted in front of; 0 when not paused
	scanStartUs uint64 // wall time the in-progress pass began, for overrun accounting
}

// NewScheduler wires a committed Graph to its adapters and support
// services. The command queue is sized from graph.CommandQueueCap so a
// burst of control-surface traffic degrades to BUSY rather than
// unbounded memory growth (§4.9).
func NewScheduler(g *Graph, di DigitalInputAdapter, ai AnalogInputAdapter, do DigitalOutputAdapter, ts TimeSource, faults FaultSink) *Scheduler {
	if faults == nil {
		faults = NopFaultSink{}
	}
	cap := g.CommandQueueCap
	if cap <= 0 {
		cap = 32
	}
	return &Scheduler{
		graph:     g,
		runMode:   RunNormal,
		testMode:  TestMode{InputsForced: make(map[CardID]InputForce)},
		cmdQueue:  make(chan Command, cap),
		results:   make(chan CommandResult, cap),
		snapshots: NewSnapshotExchange(),
		faults:    faults,
		time:      ts,
		di:        di,
		ai:        ai,
		do:        do,
	}
}

// Snapshots exposes the read-only snapshot exchange for bus binding and
// tests.
func (s *Scheduler) Snapshots() *SnapshotExchange { return s.snapshots }

// Submit enqueues cmd for application on the next scan's drain step. It
// never blocks: a full queue is reported as errcode.Busy immediately,
// matching the bounded-queue invariant in §4.9.
func (s *Scheduler) Submit(cmd Command) error {
	select {
	case s.cmdQueue <- cmd:
		return nil
	default:
		s.faults.Record(FaultQueueOverflow, 0, "command queue full")
		return errcode.Busy
	}
}

// Results returns the channel CommandResults are published on, one per
// submitted Command, in drain order.
func (s *Scheduler) Results() <-chan CommandResult { return s.results }

// SwapConfig installs newGraph as the active configuration, carrying
// forward runtime state for cards whose ID and Type are unchanged
// (§4.1's atomic-swap contract). It must only be called between scans
// (i.e. from the same goroutine driving Tick, or with Tick paused).
func (s *Scheduler) SwapConfig(newGraph *Graph) {
	carryOver(s.graph, newGraph)
	s.oldGraph = s.graph
	s.graph = newGraph
	s.cursor = 0
	s.breakpointPaused = false
	s.breakpointAck = false
	s.pausedAtID = 0
	if s.breakpoints != nil {
		kept := make(map[CardID]bool, len(s.breakpoints))
		for id, v := range s.breakpoints {
			if newGraph.CardByID(id) != nil {
				kept[id] = v
			}
		}
		s.breakpoints = kept
	}
}

// Tick advances the scan according to the scheduler's run mode, and
// publishes a Snapshot whenever a full ordered pass over the graph
// completes. Callers (cmd/kernel's run loop) invoke Tick once per
// ScanIntervalMs tick of the process clock; Tick itself decides whether
// that tick is a no-op (STEP without a pending step, or BREAKPOINT
// paused in front of a card), advances the whole graph (NORMAL), or
// advances exactly one card at the current cursor position (STEP).
func (s *Scheduler) Tick() {
	nowUs := s.time.NowMonotonicUs()
	s.drainCommands()

	switch s.runMode {
	case RunStep:
		if !s.stepPending {
			return
		}
		s.stepPending = false
		s.runScan(nowUs, 1)
		return
	case RunBreakpoint:
		if s.breakpointPaused {
			return
		}
	}

	s.runScan(nowUs, 0)
}

// drainCommands applies every command queued since the last scan, in
// FIFO order, stamping each result with the revision about to be
// published — satisfying the "visible no later than R+1" ordering
// guarantee in §5.
func (s *Scheduler) drainCommands() {
	for {
		select {
		case cmd := <-s.cmdQueue:
			res := s.applyCommand(cmd)
			res.SnapshotRevision = s.revision + 1
			select {
			case s.results <- res:
			default:
			}
		default:
			return
		}
	}
}

// runScan advances the scan from the current cursor position (§4.1):
// sample inputs (with force substitution), evaluate enabled cards in
// ascending cardId order, derive masked DO drive, and write outputs.
// limit caps how many card positions this call may advance past before
// returning early; limit <= 0 means "no limit" (run to completion or to
// the next breakpoint). Whenever the cursor reaches the end of the
// card list — whether that takes one call (NORMAL/BREAKPOINT) or many
// (STEP, one per step_once) — the pass is finalized: snapshot published,
// revision advanced, and SCAN_OVERRUN checked against the full pass's
// wall-clock cost.
func (s *Scheduler) runScan(startUs uint64, limit int) {
	g := s.graph
	r := graphReader{g}

	if s.cursor == 0 {
		s.scanStartUs = startUs
	}

	advanced := 0
	for s.cursor < len(g.cards) {
		c := g.cards[s.cursor]

		if !c.Enabled {
			// A disabled card is never evaluated, so skipping past it
			// doesn't consume the step budget: step_once still advances
			// exactly one *evaluated* card.
			s.cursor++
			if s.cursor >= len(g.cards) {
				s.finishScan(startUs)
				return
			}
			continue
		}

		if s.runMode == RunBreakpoint && s.breakpoints[c.ID] && !s.breakpointAck {
			s.breakpointPaused = true
			s.pausedAtID = c.ID
			return
		}
		s.breakpointAck = false

		s.evalCard(c, startUs, g, r)
		s.cursor++
		advanced++

		if s.cursor >= len(g.cards) {
			s.finishScan(startUs)
			return
		}
		if limit > 0 && advanced >= limit {
			return
		}
	}
}

// evalCard runs the single card-family evaluator for c and records any
// fault it raises. Split out of runScan so STEP mode can drive it one
// card at a time while NORMAL/BREAKPOINT drive it in a tight loop.
func (s *Scheduler) evalCard(c *Card, startUs uint64, g *Graph, r graphReader) {
	switch c.Type {
	case CardDI:
		sample, forceTransition := s.sampleDI(c)
		evalDI(c, sample, forceTransition, startUs, r)
		c.Health = applyFaultPolicy(c.FaultPolicy, false)

	case CardAI:
		sample := s.sampleAI(c)
		evalAI(c, sample)
		hasFault := c.AIRun.QualityFlag == QualityInvalid
		c.Health = applyFaultPolicy(c.FaultPolicy, hasFault)
		if hasFault {
			s.faults.Record(FaultIOError, c.ID, faultDetail("AI read failed", c.AI.Channel))
		}

	case CardSIO:
		evalSIO(c, startUs, r)
		c.Health = applyFaultPolicy(c.FaultPolicy, false)

	case CardDO:
		evalDO(c, startUs, s.testMode.OutputMaskGlobal, r)
		ioFault := false
		if s.do != nil {
			if err := s.do.Write(c.DO.Channel, c.DORun.PhysicalDrive); err != nil {
				ioFault = true
				s.faults.Record(FaultIOError, c.ID, faultDetail("DO write failed", c.DO.Channel))
			}
		}
		c.DORun.IOFault = ioFault
		c.Health = applyFaultPolicy(c.FaultPolicy, ioFault)

	case CardMATH:
		evalMATH(c, g.ScanIntervalMs, r)
		c.Health = applyFaultPolicy(c.FaultPolicy, c.MATHRun.FaultStatus)
		if c.MATHRun.FaultStatus {
			s.faults.Record(FaultMathFault, c.ID, "MATH evaluation fault")
		}

	case CardRTC:
		epochSec, sync := uint64(0), ClockInvalid
		if s.time != nil {
			epochSec, sync = s.time.WallClock()
		}
		fault := evalRTC(c, epochSec, sync, DefaultRTCRetriggerPolicy)
		c.Health = applyFaultPolicy(c.FaultPolicy, fault)
		if fault {
			s.faults.Record(FaultTimeSource, c.ID, "RTC clock not synced")
		}
	}
	c.LastEvalUs = startUs
}

// finishScan closes out a completed pass over the graph: resets the
// cursor for the next pass, advances revision, and publishes the
// snapshot. SCAN_OVERRUN is only meaningful for a NORMAL pass, whose
// wall-clock cost is the scheduler's own evaluation time — STEP and
// BREAKPOINT passes are paced by human commissioning action between
// calls, not by evaluation cost, so their elapsed time is not budget-
// checked.
func (s *Scheduler) finishScan(startUs uint64) {
	g := s.graph
	s.cursor = 0
	s.breakpointPaused = false
	s.breakpointAck = false
	s.pausedAtID = 0
	s.revision++

	endUs := s.time.NowMonotonicUs()
	if s.runMode == RunNormal {
		if elapsed := endUs - s.scanStartUs; uint64(g.OverrunBudgetUs) > 0 && elapsed > uint64(g.OverrunBudgetUs) {
			s.faults.Record(FaultScanOverrun, 0, "scan exceeded overrun budget")
		}
	}

	nowMs := endUs / 1000
	snap := buildSnapshot(g, s.revision, nowMs, s.runMode, s.testMode, s.system)
	s.snapshots.Publish(snap)
}

// sampleDI reads a DI card's channel, substituting the test-mode force
// if one is active for this cardId, and reports whether this scan is the
// one where the force state itself just changed (which suppresses edge
// evaluation for one scan, per §6's force semantics).
func (s *Scheduler) sampleDI(c *Card) (sample bool, forceTransition bool) {
	force, forced := s.testMode.InputsForced[c.ID]
	wasForced := c.DIRun.forcePrimed
	if !forced {
		if wasForced {
			c.DIRun.forcePrimed = false
			sample = s.readDIHardware(c)
			return sample, true
		}
		return s.readDIHardware(c), false
	}
	switch force.Mode {
	case ForceHigh:
		sample = true
	case ForceLow:
		sample = false
	default:
		sample = s.readDIHardware(c)
	}
	if !wasForced {
		return sample, true
	}
	return sample, false
}

func (s *Scheduler) readDIHardware(c *Card) bool {
	if s.di == nil {
		return false
	}
	v, err := s.di.Read(c.DI.Channel)
	if err != nil {
		s.faults.Record(FaultIOError, c.ID, faultDetail("DI read failed", c.DI.Channel))
		return false
	}
	return v
}

// sampleAI reads an AI card's channel, substituting the test-mode force
// if one is active for this cardId.
func (s *Scheduler) sampleAI(c *Card) AISample {
	if force, ok := s.testMode.InputsForced[c.ID]; ok && force.Mode == ForceValue {
		return AISample{Value: force.Value}
	}
	if s.ai == nil {
		return AISample{Err: errcode.HALNotReady}
	}
	v, err := s.ai.Read(c.AI.Channel)
	if err != nil {
		s.faults.Record(FaultIOError, c.ID, faultDetail("AI read failed", c.AI.Channel))
		return AISample{Err: err}
	}
	return AISample{Value: v}
}
