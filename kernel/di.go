package kernel

// evalDI runs one scan of the DI debounce+edge+counter state machine
// (§4.3). sample is the raw pin read (already substituted with a forced
// value by the scheduler if input force is active); forceTransition is
// true exactly on the scan where the force mode itself changed, which
// re-primes the edge detector without evaluating an edge.
func evalDI(c *Card, sample bool, forceTransition bool, nowUs uint64, r fieldReader) {
	cfg, rt := c.DI, c.DIRun
	effective := sample
	if cfg.Invert {
		effective = !effective
	}
	rt.PhysicalState = effective

	if forceTransition {
		rt.lastSample = effective
		rt.debouncing = false
		rt.forcePrimed = true
		// No edge evaluated this scan; the state machine otherwise
		// continues so reset/idle transitions are not skipped.
	}

	setOk := evalCondition(cfg.Set, r)
	resetOk := evalCondition(cfg.Reset, r)

	switch {
	case resetOk:
		rt.CurrentValue = 0
		rt.LogicalState = false
		rt.TriggerFlag = false
		rt.State = DIInhibited
		rt.debouncing = false
		rt.lastSample = effective
	case !setOk:
		rt.State = DIIdle
		rt.TriggerFlag = false
		rt.lastSample = effective
	default:
		rt.TriggerFlag = false
		edge := classifyEdge(rt.lastSample, effective, cfg.EdgeMode)
		if rt.forcePrimed {
			// Suppress the edge this scan; the sample is now primed.
			edge = false
			rt.forcePrimed = false
		}
		switch {
		case edge && !rt.debouncing:
			rt.debouncing = true
			rt.debounceStartUs = nowUs
			rt.State = DIFiltering
		case rt.debouncing:
			elapsedMs := (nowUs - rt.debounceStartUs) / 1000
			if uint32(elapsedMs) >= cfg.DebounceTime {
				rt.TriggerFlag = true
				rt.CurrentValue++
				rt.LogicalState = effective
				rt.State = DIQualified
				rt.debouncing = false
			} else {
				rt.State = DIFiltering
			}
		default:
			// No edge, not debouncing: state holds at whatever it last
			// settled to (Idle/Qualified), no re-classification needed.
			if rt.State != DIQualified {
				rt.State = DIIdle
			}
		}
		rt.lastSample = effective
	}
}

// classifyEdge reports whether the sample transition from prev to cur
// matches mode.
func classifyEdge(prev, cur bool, mode EdgeMode) bool {
	switch mode {
	case EdgeRising:
		return !prev && cur
	case EdgeFalling:
		return prev && !cur
	case EdgeChange:
		return prev != cur
	default:
		return false
	}
}
