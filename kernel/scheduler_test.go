package kernel

import (
	"testing"

	"advancedtimer/errcode"
)

type fakeTime struct {
	nowUs uint64
	sec   uint64
	sync  SyncState
}

func (f *fakeTime) NowMonotonicUs() uint64       { return f.nowUs }
func (f *fakeTime) WallClock() (uint64, SyncState) { return f.sec, f.sync }

type fakeDI struct{ v bool }

func (f fakeDI) Read(channel uint32) (bool, error) { return f.v, nil }

type fakeAI struct{ v uint32 }

func (f fakeAI) Read(channel uint32) (uint32, error) { return f.v, nil }

type fakeDO struct{ writes map[uint32]bool }

func (f *fakeDO) Write(channel uint32, on bool) error {
	if f.writes == nil {
		f.writes = make(map[uint32]bool)
	}
	f.writes[channel] = on
	return nil
}

func newSingleDIGraph() *Graph {
	c := &Card{
		ID:      1,
		Type:    CardDI,
		Enabled: true,
		DI:      &DIConfig{Channel: 0, EdgeMode: EdgeRising, Set: alwaysTrueBlock()},
		DIRun:   &DIRuntime{},
	}
	return NewGraph([]*Card{c}, nil, 100, 2000, 20000, 8)
}

func TestScheduler_TickPublishesSnapshot(t *testing.T) {
	g := newSingleDIGraph()
	ts := &fakeTime{nowUs: 0}
	sched := NewScheduler(g, fakeDI{v: true}, fakeAI{}, &fakeDO{}, ts, NopFaultSink{})

	sched.Tick()
	snap := sched.Snapshots().Load()
	if snap == nil {
		t.Fatal("expected a snapshot to be published after Tick")
	}
	if snap.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", snap.Revision)
	}
	if len(snap.Cards) != 1 {
		t.Fatalf("expected 1 card in the snapshot, got %d", len(snap.Cards))
	}
}

func TestScheduler_DisabledCardSkipsEvaluation(t *testing.T) {
	g := newSingleDIGraph()
	g.cards[0].Enabled = false
	ts := &fakeTime{nowUs: 0}
	sched := NewScheduler(g, fakeDI{v: true}, fakeAI{}, &fakeDO{}, ts, NopFaultSink{})

	sched.Tick()
	if g.cards[0].DIRun.TriggerFlag {
		t.Fatal("a disabled card must not be evaluated")
	}
}

func TestScheduler_SubmitFullQueueReturnsBusy(t *testing.T) {
	g := newSingleDIGraph()
	g.CommandQueueCap = 1
	sched := NewScheduler(g, fakeDI{}, fakeAI{}, &fakeDO{}, &fakeTime{}, NopFaultSink{})

	if err := sched.Submit(Command{Name: CmdStepOnce}); err != nil {
		t.Fatalf("expected first submit to succeed, got %v", err)
	}
	if err := sched.Submit(Command{Name: CmdStepOnce}); err == nil {
		t.Fatal("expected second submit against a full queue to fail with Busy")
	}
}

func TestScheduler_StepModeOnlyAdvancesOnPendingStep(t *testing.T) {
	g := newSingleDIGraph()
	sched := NewScheduler(g, fakeDI{v: true}, fakeAI{}, &fakeDO{}, &fakeTime{}, NopFaultSink{})
	sched.runMode = RunStep

	sched.Tick()
	if sched.Snapshots().Load() != nil {
		t.Fatal("STEP mode must not advance the scan without a pending step")
	}

	sched.stepPending = true
	sched.Tick()
	if sched.Snapshots().Load() == nil {
		t.Fatal("STEP mode must advance exactly once a step is pending")
	}
}

func TestScheduler_OverrunBudgetRaisesFault(t *testing.T) {
	g := newSingleDIGraph()
	g.OverrunBudgetUs = 10
	ts := &fakeTime{nowUs: 0}
	faults := NewMemoryFaultSink()
	sched := NewScheduler(g, fakeDI{v: true}, fakeAI{}, &fakeDO{}, ts, faults)

	// NowMonotonicUs is called twice per scan (start, end); bump it between
	// calls to simulate a scan that overran its budget.
	calls := 0
	sched.time = timeFunc(func() uint64 {
		calls++
		if calls == 1 {
			return 0
		}
		return 10_000
	})
	sched.Tick()

	found := false
	for _, r := range faults.Records() {
		if r.Kind == FaultScanOverrun {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a SCAN_OVERRUN fault when elapsed time exceeds the budget")
	}
}

type timeFunc func() uint64

func (f timeFunc) NowMonotonicUs() uint64         { return f() }
func (f timeFunc) WallClock() (uint64, SyncState) { return 0, ClockSynced }

// failingDO fails every write up to (and excluding) failUntil calls,
// then succeeds — used to simulate a hardware IO fault the scheduler
// must latch into DORun.IOFault/c.Health for the next scan.
type failingDO struct {
	calls     int
	failUntil int
}

func (f *failingDO) Write(channel uint32, on bool) error {
	f.calls++
	if f.calls <= f.failUntil {
		return errcode.HALNotReady
	}
	return nil
}

func newSingleDOGraph(safeState bool) *Graph {
	// Set reads this card's own cycle counter (>= 0), which resolves
	// through graphReader; alwaysTrueBlock's card 0 is absent here.
	c := &Card{
		ID:          1,
		Type:        CardDO,
		Enabled:     true,
		FaultPolicy: FaultCritical,
		DO:          &DOConfig{Channel: 0, Mode: ModeImmediate, OnDuration: 60000, Set: &ConditionBlock{ClauseA: Clause{Source: SourceRef{CardID: 1, Field: "currentValue", Type: FieldNumber}, Operator: OpGTE, Threshold: 0}}, SafeState: safeState},
		DORun:       &DORuntime{},
	}
	return NewGraph([]*Card{c}, nil, 100, 2000, 20000, 8)
}

func TestScheduler_DOWriteFailureLatchesHealthAndIOFault(t *testing.T) {
	g := newSingleDOGraph(false)
	do := &failingDO{failUntil: 1}
	sched := NewScheduler(g, fakeDI{}, fakeAI{}, do, &fakeTime{}, NopFaultSink{})

	sched.Tick()
	if !g.cards[0].DORun.IOFault {
		t.Fatal("a failed DO write must latch DORun.IOFault")
	}
	if g.cards[0].Health != HealthFault {
		t.Fatal("a failed DO write on a FaultCritical card must raise Health to HealthFault")
	}
}

func TestScheduler_DOSafeStateOverridesOnNextScanAfterIOFault(t *testing.T) {
	g := newSingleDOGraph(false) // safe-low
	do := &failingDO{failUntil: 1}
	sched := NewScheduler(g, fakeDI{}, fakeAI{}, do, &fakeTime{}, NopFaultSink{})

	sched.Tick() // first write fails, latches IOFault
	if !g.cards[0].DORun.PhysicalDrive {
		t.Fatal("expected the mission FSM's own drive before any fault was latched")
	}

	sched.Tick() // second write: evalDO now sees IOFault latched from scan 1
	if g.cards[0].DORun.PhysicalDrive {
		t.Fatal("expected SafeState=false (safe-low) to force PhysicalDrive false once a critical IO fault is latched")
	}
}
