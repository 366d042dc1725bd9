package kernel

// missionStep advances the shared DO/SIO timed-mission state machine
// (§4.5). Reset precedence is absolute: if both setOk and resetOk are
// true in the same scan, reset wins. repeatCount == 0 means infinite
// until reset. PhysicalState tracks the ACTIVE phase only.
func missionStep(rt *SIORuntime, mode SIOMode, delayBeforeONMs, onDurationMs, repeatCount uint32, setOk, resetOk bool, nowUs uint64) {
	risingEdge := setOk && !rt.lastSetOk
	rt.lastSetOk = setOk

	if resetOk {
		rt.MissionState = MissionIdle
		rt.LogicalState = false
		rt.CurrentValue = 0
		rt.PhysicalState = false
		return
	}

	switch rt.MissionState {
	case MissionIdle, MissionFinished:
		if risingEdge {
			wasNeverCycled := rt.CurrentValue == 0
			rt.LogicalState = true
			rt.CurrentValue = 0
			rt.phaseStartUs = nowUs
			if mode == ModeImmediate && wasNeverCycled {
				rt.MissionState = MissionActive
			} else {
				rt.MissionState = MissionOnDelay
			}
		}

	case MissionOnDelay:
		if mode == ModeGated && !setOk {
			rt.MissionState = MissionIdle
			rt.LogicalState = false
			break
		}
		if elapsedMs(nowUs, rt.phaseStartUs) >= delayBeforeONMs {
			rt.MissionState = MissionActive
			rt.phaseStartUs = nowUs
		}

	case MissionActive:
		if mode == ModeGated && !setOk {
			rt.MissionState = MissionIdle
			rt.LogicalState = false
			break
		}
		if elapsedMs(nowUs, rt.phaseStartUs) >= onDurationMs {
			rt.CurrentValue++
			if repeatCount != 0 && rt.CurrentValue >= repeatCount {
				rt.MissionState = MissionFinished
				rt.LogicalState = false
			} else {
				rt.MissionState = MissionOnDelay
				rt.phaseStartUs = nowUs
			}
		}
	}

	rt.PhysicalState = rt.MissionState == MissionActive
}

func elapsedMs(nowUs, startUs uint64) uint32 {
	if nowUs < startUs {
		return 0
	}
	return uint32((nowUs - startUs) / 1000)
}

// evalSIO runs one scan of an SIO card.
func evalSIO(c *Card, nowUs uint64, r fieldReader) {
	cfg, rt := c.SIO, c.SIORun
	setOk := evalCondition(cfg.Set, r)
	resetOk := evalCondition(cfg.Reset, r)
	missionStep(rt, cfg.Mode, cfg.DelayBeforeON, cfg.OnDuration, cfg.RepeatCount, setOk, resetOk, nowUs)
}

// evalDO runs one scan of a DO card: the shared mission FSM plus output
// masking. physicalDrive = logicalDrive AND NOT (outputMaskGlobal OR
// outputMaskLocal); logicalDrive here is PhysicalState (the ACTIVE-phase
// flag), matching §4.1 step 5.
func evalDO(c *Card, nowUs uint64, outputMaskGlobal bool, r fieldReader) {
	cfg, rt := c.DO, c.DORun
	setOk := evalCondition(cfg.Set, r)
	resetOk := evalCondition(cfg.Reset, r)
	missionStep(&rt.SIORuntime, cfg.Mode, cfg.DelayBeforeON, cfg.OnDuration, cfg.RepeatCount, setOk, resetOk, nowUs)

	rt.PhysicalDrive = rt.PhysicalState && !(outputMaskGlobal || rt.Masked)

	// A critical fault overrides whatever the mission FSM and mask
	// computed: the output is forced to its configured safe level,
	// whether that level is high or low.
	if c.FaultPolicy == FaultCritical && rt.IOFault {
		rt.PhysicalDrive = cfg.SafeState
	}
}
