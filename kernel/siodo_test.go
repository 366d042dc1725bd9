package kernel

import "testing"

func TestMissionStep_NormalModeGoesThroughOnDelayThenActive(t *testing.T) {
	rt := &SIORuntime{}
	missionStep(rt, ModeNormal, 100, 200, 1, true, false, 0) // rising edge at t=0
	if rt.MissionState != MissionOnDelay {
		t.Fatalf("expected ON_DELAY after a rising edge, got %v", rt.MissionState)
	}

	missionStep(rt, ModeNormal, 100, 200, 1, true, false, 50_000) // still within delay
	if rt.MissionState != MissionOnDelay {
		t.Fatalf("expected still ON_DELAY before delay elapses, got %v", rt.MissionState)
	}

	missionStep(rt, ModeNormal, 100, 200, 1, true, false, 150_000) // delay elapsed
	if rt.MissionState != MissionActive {
		t.Fatalf("expected ACTIVE once delay elapses, got %v", rt.MissionState)
	}
	if !rt.PhysicalState {
		t.Fatal("expected PhysicalState true while ACTIVE")
	}

	missionStep(rt, ModeNormal, 100, 200, 1, true, false, 400_000) // on duration elapsed, repeatCount=1 reached
	if rt.MissionState != MissionFinished {
		t.Fatalf("expected FINISHED after repeatCount reached, got %v", rt.MissionState)
	}
	if rt.CurrentValue != 1 {
		t.Fatalf("expected cycle counter 1, got %d", rt.CurrentValue)
	}
}

func TestMissionStep_ImmediateModeSkipsOnDelayFirstCycle(t *testing.T) {
	rt := &SIORuntime{}
	missionStep(rt, ModeImmediate, 100, 200, 0, true, false, 0)
	if rt.MissionState != MissionActive {
		t.Fatalf("expected ACTIVE immediately on the first cycle in IMMEDIATE mode, got %v", rt.MissionState)
	}
}

func TestMissionStep_ResetDominatesDuringActive(t *testing.T) {
	rt := &SIORuntime{MissionState: MissionActive, PhysicalState: true, CurrentValue: 3}
	missionStep(rt, ModeNormal, 0, 0, 0, true, true, 0)
	if rt.MissionState != MissionIdle {
		t.Fatalf("expected reset to force IDLE, got %v", rt.MissionState)
	}
	if rt.CurrentValue != 0 {
		t.Fatalf("expected reset to zero the cycle counter, got %d", rt.CurrentValue)
	}
}

func TestMissionStep_GatedModeAbortsOnSetFalseDuringActive(t *testing.T) {
	rt := &SIORuntime{}
	missionStep(rt, ModeGated, 0, 200, 0, true, false, 0) // delay=0, goes straight to active next call
	missionStep(rt, ModeGated, 0, 200, 0, true, false, 0)
	if rt.MissionState != MissionActive {
		t.Fatalf("expected ACTIVE, got %v", rt.MissionState)
	}
	missionStep(rt, ModeGated, 0, 200, 0, false, false, 1000) // set drops while ACTIVE
	if rt.MissionState != MissionIdle {
		t.Fatalf("GATED mode must abort to IDLE the moment set goes false, got %v", rt.MissionState)
	}
}

func TestEvalDO_OutputMaskSuppressesPhysicalDrive(t *testing.T) {
	c := &Card{
		ID:   10,
		Type: CardDO,
		DO:   &DOConfig{Mode: ModeImmediate, OnDuration: 60000, RepeatCount: 0, Set: alwaysTrueBlock()},
		DORun: &DORuntime{},
	}
	r := fakeReader{nums: map[CardID]Centi{0: 0}}
	evalDO(c, 0, false, r)
	if !c.DORun.PhysicalDrive {
		t.Fatal("expected PhysicalDrive true once ACTIVE with no mask")
	}

	evalDO(c, 1000, true, r) // global mask now on
	if c.DORun.PhysicalDrive {
		t.Fatal("expected PhysicalDrive false while the global output mask is set")
	}
}

func TestEvalDO_SafeStateHighOverridesOnCriticalFault(t *testing.T) {
	c := &Card{
		ID:          11,
		Type:        CardDO,
		FaultPolicy: FaultCritical,
		DO:          &DOConfig{Mode: ModeImmediate, SafeState: true},
		DORun:       &DORuntime{IOFault: true},
	}
	r := fakeReader{nums: map[CardID]Centi{0: 0}}
	evalDO(c, 0, false, r)
	if !c.DORun.PhysicalDrive {
		t.Fatal("expected SafeState=true to force PhysicalDrive true under an active critical fault")
	}
}

func TestEvalDO_SafeStateLowOverridesOnCriticalFault(t *testing.T) {
	c := &Card{
		ID:          12,
		Type:        CardDO,
		FaultPolicy: FaultCritical,
		DO:          &DOConfig{Mode: ModeImmediate, RepeatCount: 0, Set: alwaysTrueBlock(), SafeState: false},
		DORun:       &DORuntime{IOFault: true},
	}
	r := fakeReader{nums: map[CardID]Centi{0: 0}}
	evalDO(c, 0, false, r)
	if c.DORun.PhysicalDrive {
		t.Fatal("expected SafeState=false (safe-low) to force PhysicalDrive false even though Set is active")
	}
}

func TestEvalDO_NoOverrideWithoutActiveIOFault(t *testing.T) {
	c := &Card{
		ID:          13,
		Type:        CardDO,
		FaultPolicy: FaultCritical,
		DO:          &DOConfig{Mode: ModeImmediate, RepeatCount: 0, Set: alwaysTrueBlock(), SafeState: false},
		DORun:       &DORuntime{},
	}
	r := fakeReader{nums: map[CardID]Centi{0: 0}}
	evalDO(c, 0, false, r)
	if !c.DORun.PhysicalDrive {
		t.Fatal("expected normal mission-driven PhysicalDrive when no IO fault is active")
	}
}
