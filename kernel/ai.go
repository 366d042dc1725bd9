package kernel

import "advancedtimer/x/mathx"

// AISample is the outcome of reading an AI channel: either a raw
// centiunit value or an adapter failure.
type AISample struct {
	Value uint32
	Err   error
}

// evalAI runs one scan of the stateless (except for its EMA accumulator)
// AI pipeline (§4.4): raw -> clamp into ClampRange -> affine map from
// InputRange to OutputRange -> EMA with EmaAlpha/100. AI ignores
// set/reset entirely; commit rejects condition blocks on AI cards.
func evalAI(c *Card, sample AISample) {
	cfg, rt := c.AI, c.AIRun

	if sample.Err != nil {
		rt.QualityFlag = QualityInvalid
		return
	}

	raw := sample.Value
	quality := QualityGood
	if raw < cfg.InputRange.Min || raw > cfg.InputRange.Max {
		quality = QualityClamped
	}

	clamped := mathx.Clamp(raw, cfg.ClampRange.Min, cfg.ClampRange.Max)
	scaled := mathx.MapU32(clamped, cfg.InputRange.Min, cfg.InputRange.Max, cfg.OutputRange.Min, cfg.OutputRange.Max)
	rt.CurrentValue = mathx.EmaU32Centi(rt.CurrentValue, scaled, cfg.EmaAlpha)
	rt.QualityFlag = quality
}
