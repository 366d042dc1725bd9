package kernel

import "advancedtimer/x/mathx"

// evalMATH runs one scan of a MATH card (§4.6), dispatching to the
// StandardPipeline or PID mode. resetOk forces currentValue back to
// fallbackValue regardless of mode; !setOk holds the last value.
func evalMATH(c *Card, scanIntervalMs uint32, r fieldReader) {
	cfg, rt := c.MATH, c.MATHRun
	setOk := evalCondition(cfg.Set, r)
	resetOk := evalCondition(cfg.Reset, r)

	if resetOk {
		rt.CurrentValue = cfg.FallbackValue
		rt.FaultStatus = false
		if cfg.PID == nil || cfg.PID.IntegralResetPolicy == IntegralResetOnReset {
			rt.integral = 0
		}
		rt.lastErrSign = 0
		rt.havePrev = false
		return
	}
	if !setOk {
		return // hold last value
	}

	switch cfg.Mode {
	case MathStandardPipeline:
		evalMathStandard(cfg.Standard, rt, cfg.FallbackValue, scanIntervalMs, r)
	case MathPID:
		evalMathPID(cfg.PID, rt, cfg.FallbackValue, scanIntervalMs, r)
	}
}

func evalMathStandard(p *StandardParams, rt *MATHRuntime, fallback Centi, scanIntervalMs uint32, r fieldReader) {
	a, aok := resolveOperand(p.InputA, r)
	b, bok := resolveOperand(p.InputB, r)
	if !aok || !bok {
		rt.CurrentValue = fallback
		rt.FaultStatus = true
		return
	}

	result, fault := applyMathOperator(p.Operator, a, b)
	if fault {
		rt.CurrentValue = fallback
		rt.FaultStatus = true
		rt.havePrev = false
		return
	}
	rt.FaultStatus = false
	rt.IntermediateValue = result

	if p.RateLimit > 0 && rt.havePrev {
		maxDelta := mathx.RoundDiv(uint64(p.RateLimit)*uint64(scanIntervalMs), uint64(1000))
		result = rateLimit(rt.prevValue, result, uint32(maxDelta))
	}

	if p.ClampMin < p.ClampMax {
		result = mathx.Clamp(result, p.ClampMin, p.ClampMax)
	}

	if !(p.ScaleMin == p.ClampMin && p.ScaleMax == p.ClampMax) && p.ClampMax > p.ClampMin {
		result = mathx.MapU32(result, p.ClampMin, p.ClampMax, p.ScaleMin, p.ScaleMax)
	}

	if p.EmaAlpha < 100 {
		result = mathx.EmaU32Centi(rt.CurrentValue, result, p.EmaAlpha)
	}

	rt.prevValue = result
	rt.havePrev = true
	rt.CurrentValue = result
}

// applyMathOperator implements the D-MATH-001 policy: POW rejects
// negative (i.e. unrepresentable in unsigned centiunit space) results and
// overflow as domain faults; MOD follows unsigned truncated division
// (both operands are unsigned centiunits, so there is no sign
// convention to choose between).
func applyMathOperator(op MathOperator, a, b Centi) (Centi, bool) {
	switch op {
	case OpAdd:
		sum := uint64(a) + uint64(b)
		if sum > uint64(^uint32(0)) {
			return 0, true
		}
		return uint32(sum), false
	case OpSub:
		if b > a {
			return 0, true
		}
		return a - b, false
	case OpMul:
		prod := uint64(a) * uint64(b)
		if prod > uint64(^uint32(0)) {
			return 0, true
		}
		return uint32(prod), false
	case OpDiv:
		if b == 0 {
			return 0, true
		}
		return a / b, false
	case OpMod:
		if b == 0 {
			return 0, true
		}
		return a % b, false
	case OpPow:
		return integerPow(a, b)
	case OpMin:
		return mathx.Min(a, b), false
	case OpMax:
		return mathx.Max(a, b), false
	default:
		return 0, true
	}
}

// integerPow raises a to the integer power b/100 truncated to a whole
// exponent (centiunit exponents with a fractional part are not supported
// in the kernel's integer path); overflow beyond uint32 is a fault.
func integerPow(a, b Centi) (Centi, bool) {
	exp := b / 100
	result := uint64(1)
	base := uint64(a)
	for i := uint32(0); i < exp; i++ {
		result *= base
		if result > uint64(^uint32(0)) {
			return 0, true
		}
	}
	return uint32(result), false
}

func rateLimit(prev, next, maxDelta uint32) uint32 {
	if next > prev && next-prev > maxDelta {
		return prev + maxDelta
	}
	if prev > next && prev-next > maxDelta {
		return prev - maxDelta
	}
	return next
}

func evalMathPID(p *PIDParams, rt *MATHRuntime, fallback Centi, scanIntervalMs uint32, r fieldReader) {
	sp, spok := resolveOperand(p.Setpoint, r)
	pv, pvok := r.readNumber(p.ProcessVariable.CardID, p.ProcessVariable.Field)
	if !spok || !pvok {
		rt.CurrentValue = fallback
		rt.FaultStatus = true
		return
	}
	rt.FaultStatus = false

	err := int64(sp) - int64(pv)
	errSign := signOf(err)

	switch p.IntegralResetPolicy {
	case IntegralResetOnSignChange:
		if rt.lastErrSign != 0 && errSign != 0 && errSign != rt.lastErrSign {
			rt.integral = 0
		}
	}
	rt.lastErrSign = errSign

	// Integral accumulates err*scanIntervalMs; anti-windup clamps the
	// integral contribution (back-calculation) to the output range
	// before adding proportional/derivative terms.
	rt.integral += err * int64(scanIntervalMs)
	integralTerm := rt.integral * int64(p.KI) / 100000 // ms->s and centiunit scale
	minI := int64(p.OutputMin)
	maxI := int64(p.OutputMax)
	if integralTerm > maxI {
		integralTerm = maxI
		rt.integral = maxI * 100000 / int64(maxInt64(int64(p.KI), 1))
	} else if integralTerm < minI {
		integralTerm = minI
		rt.integral = minI * 100000 / int64(maxInt64(int64(p.KI), 1))
	}

	derivative := int64(0)
	if rt.havePrev {
		dPV := int64(pv) - int64(rt.prevValue)
		derivative = -dPV * int64(p.KD) / 100
	}
	rt.prevValue = pv
	rt.havePrev = true

	proportional := err * int64(p.KP) / 100

	out := proportional + integralTerm + derivative
	clamped := mathx.Clamp(out, int64(p.OutputMin), int64(p.OutputMax))
	rt.CurrentValue = uint32(clamped)
}

func signOf(v int64) int8 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
