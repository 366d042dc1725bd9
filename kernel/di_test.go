package kernel

import "testing"

func alwaysTrueBlock() *ConditionBlock {
	return &ConditionBlock{ClauseA: Clause{Source: SourceRef{CardID: 0, Type: FieldNumber}, Operator: OpGTE, Threshold: 0}}
}

func newDICard(edge EdgeMode, debounceMs Centi, invert bool) *Card {
	return &Card{
		ID:   1,
		Type: CardDI,
		DI: &DIConfig{
			Channel:      1,
			Invert:       invert,
			DebounceTime: debounceMs,
			EdgeMode:     edge,
			Set:          alwaysTrueBlock(),
		},
		DIRun: &DIRuntime{},
	}
}

func TestEvalDI_RisingEdgeQualifiesAfterDebounce(t *testing.T) {
	c := newDICard(EdgeRising, 50, false)
	r := fakeReader{nums: map[CardID]Centi{0: 0}}

	evalDI(c, false, false, 0, r) // idle, low
	if c.DIRun.State != DIIdle {
		t.Fatalf("expected idle state, got %v", c.DIRun.State)
	}

	evalDI(c, true, false, 0, r) // rising edge at t=0
	if c.DIRun.State != DIFiltering {
		t.Fatalf("expected filtering state after edge, got %v", c.DIRun.State)
	}
	if c.DIRun.TriggerFlag {
		t.Fatal("must not qualify before debounce elapses")
	}

	evalDI(c, true, false, 30_000, r) // 30ms in, still debouncing
	if c.DIRun.TriggerFlag {
		t.Fatal("must not qualify before debounce elapses")
	}

	evalDI(c, true, false, 60_000, r) // 60ms in, debounce satisfied
	if !c.DIRun.TriggerFlag {
		t.Fatal("expected edge to qualify once debounce time elapses")
	}
	if c.DIRun.CurrentValue != 1 {
		t.Fatalf("expected counter to increment once, got %d", c.DIRun.CurrentValue)
	}
	if c.DIRun.State != DIQualified {
		t.Fatalf("expected qualified state, got %v", c.DIRun.State)
	}
}

func TestEvalDI_ResetDominatesSet(t *testing.T) {
	c := newDICard(EdgeRising, 0, false)
	c.DI.Reset = alwaysTrueBlock()
	r := fakeReader{nums: map[CardID]Centi{0: 0}}

	c.DIRun.CurrentValue = 5
	evalDI(c, true, false, 0, r)
	if c.DIRun.CurrentValue != 0 {
		t.Fatalf("reset must zero the counter, got %d", c.DIRun.CurrentValue)
	}
	if c.DIRun.LogicalState {
		t.Fatal("reset must clear logical state")
	}
	if c.DIRun.State != DIInhibited {
		t.Fatalf("expected inhibited state under reset, got %v", c.DIRun.State)
	}
}

func TestEvalDI_InvertFlipsPhysicalState(t *testing.T) {
	c := newDICard(EdgeRising, 0, true)
	r := fakeReader{nums: map[CardID]Centi{0: 0}}
	evalDI(c, true, false, 0, r)
	if c.DIRun.PhysicalState {
		t.Fatal("inverted DI reading true must report physical state false")
	}
}

func TestEvalDI_ForceTransitionSuppressesOneEdge(t *testing.T) {
	c := newDICard(EdgeRising, 0, false)
	r := fakeReader{nums: map[CardID]Centi{0: 0}}

	evalDI(c, false, false, 0, r)
	// Force kicks in and substitutes high; scheduler flags forceTransition.
	evalDI(c, true, true, 1000, r)
	if c.DIRun.TriggerFlag {
		t.Fatal("the scan where force mode itself changes must not qualify an edge")
	}
	if c.DIRun.CurrentValue != 0 {
		t.Fatalf("expected no counter increment on the force-transition scan, got %d", c.DIRun.CurrentValue)
	}
}

func TestClassifyEdge(t *testing.T) {
	cases := []struct {
		prev, cur bool
		mode      EdgeMode
		want      bool
	}{
		{false, true, EdgeRising, true},
		{true, false, EdgeRising, false},
		{true, false, EdgeFalling, true},
		{false, true, EdgeFalling, false},
		{false, true, EdgeChange, true},
		{true, true, EdgeChange, false},
	}
	for _, tc := range cases {
		got := classifyEdge(tc.prev, tc.cur, tc.mode)
		if got != tc.want {
			t.Errorf("classifyEdge(%v, %v, %v) = %v, want %v", tc.prev, tc.cur, tc.mode, got, tc.want)
		}
	}
}
