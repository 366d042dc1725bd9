package kernel

import (
	"advancedtimer/errcode"
	"advancedtimer/x/fmtx"
)

// ValidationError is one entry in a commit's structured error list: a
// field path, a stable code, and a human message. ValidateCandidate runs
// every step and returns all errors found; Commit aborts if there is any,
// and active is left byte-identical (§4.8 step 8, §8 invariant 8).
type ValidationError struct {
	Path    string
	Code    errcode.Code
	Message string
}

func (e ValidationError) Error() string {
	return fmtx.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Code)
}

// HardwareProfile holds a per-family card capacity for the active
// platform (§4.8 step 7, V-CFG-017..019). Only a zero capacity is
// enforced: it rejects every card of that family. A non-zero capacity is
// not compared against the number of cards.
type HardwareProfile struct {
	MaxDI   int
	MaxAI   int
	MaxSIO  int
	MaxDO   int
	MaxMATH int
	MaxRTC  int
}

// CandidateConfig is a staged configuration envelope in its parsed,
// pre-graph form: everything the commit pipeline needs to validate
// before it is trusted to become a Graph. It intentionally mirrors
// Graph's inputs rather than a raw document, since parsing from the
// wire/document format is the config-lifecycle layer's job, not the
// pipeline's.
type CandidateConfig struct {
	SchemaVersion    string
	Cards            []*Card
	Bindings         []Binding
	ScanIntervalMs   uint32
	JitterBudgetUs   uint32
	OverrunBudgetUs  uint32
	CommandQueueCap  int
	WifiStaOnly      bool
}

const supportedSchemaVersion = "2.0.0"

// ValidateCandidate runs the eight-step commit pipeline's first seven
// steps (schema, identity/shape, references, type/range/unit,
// ownership, topology, hardware gates) and returns every error found.
// An empty return means the candidate is safe to swap in.
func ValidateCandidate(cand *CandidateConfig, profile HardwareProfile) []ValidationError {
	var errs []ValidationError

	// Step 1: schema.
	if cand.SchemaVersion != "" && cand.SchemaVersion != supportedSchemaVersion {
		errs = append(errs, ValidationError{"schemaVersion", errcode.UnsupportedSchemaVersion, "unsupported schema version"})
	}
	if cand.ScanIntervalMs < 10 || cand.ScanIntervalMs > 1000 {
		errs = append(errs, ValidationError{"scanIntervalMs", errcode.VCFG005, "scan interval out of bounds"})
	}
	if !cand.WifiStaOnly {
		errs = append(errs, ValidationError{"wifi.staOnly", errcode.VCFG015, "wifi.staOnly must be true"})
	}

	// Step 2: identity & shape.
	seen := make(map[CardID]bool, len(cand.Cards))
	counts := map[CardType]int{}
	for _, c := range cand.Cards {
		path := fmtx.Sprintf("cards[%d]", c.ID)
		if seen[c.ID] {
			errs = append(errs, ValidationError{path, errcode.VCFG002, "duplicate cardId"})
		}
		seen[c.ID] = true
		counts[c.Type]++

		if c.Label == "" {
			errs = append(errs, ValidationError{path + ".label", errcode.VCFG004, "label must be non-empty"})
		}

		switch c.Type {
		case CardAI:
			if c.AI == nil {
				errs = append(errs, ValidationError{path, errcode.VCFG004, "AI card missing config"})
			}
		case CardRTC:
			if c.RTC == nil {
				errs = append(errs, ValidationError{path, errcode.VCFG004, "RTC card missing config"})
			}
		case CardDI:
			errs = append(errs, validateConditionShape(path+".set", c.DI != nil && c.DI.Set != nil, c.DI)...)
		case CardSIO:
			if c.SIO != nil {
				errs = append(errs, validateCondBlockShape(path+".set", c.SIO.Set)...)
				errs = append(errs, validateCondBlockShape(path+".reset", c.SIO.Reset)...)
			}
		case CardDO:
			if c.DO != nil {
				errs = append(errs, validateCondBlockShape(path+".set", c.DO.Set)...)
				errs = append(errs, validateCondBlockShape(path+".reset", c.DO.Reset)...)
			}
		case CardMATH:
			errs = append(errs, validateMathShape(path, c.MATH)...)
		}
	}

	// Step 3 & 4: reference resolution, type/range/unit compatibility.
	idx := make(map[CardID]*Card, len(cand.Cards))
	for _, c := range cand.Cards {
		idx[c.ID] = c
	}
	checkRef := func(path string, ref SourceRef) {
		target, ok := idx[ref.CardID]
		if !ok {
			errs = append(errs, ValidationError{path, errcode.VCFG003, "reference does not resolve to an existing card"})
			return
		}
		if !fieldExists(target, ref.Field, ref.Type) {
			errs = append(errs, ValidationError{path, errcode.VCFG003, "reference field does not exist or has the wrong type"})
		}
	}
	for _, c := range cand.Cards {
		walkConditionRefs(c, func(path string, ref SourceRef) { checkRef(path, ref) })
	}
	for i, b := range cand.Bindings {
		path := fmtx.Sprintf("bindings[%d]", i)
		if b.Source.Mode == RefVariable && b.Source.Ref != nil {
			checkRef(path+".source", *b.Source.Ref)
		}
		if _, ok := idx[b.Target.CardID]; !ok {
			errs = append(errs, ValidationError{path + ".target", errcode.VCFG003, "binding target does not resolve"})
		}
	}

	// Step 5: ownership — no two bindings target the same (cardId, path).
	owner := make(map[string]int)
	for i, b := range cand.Bindings {
		key := fmtx.Sprintf("%d/%s", b.Target.CardID, b.Target.Path)
		if other, taken := owner[key]; taken {
			errs = append(errs, ValidationError{fmtx.Sprintf("bindings[%d]", i), errcode.VCFG014, fmtx.Sprintf("target already owned by bindings[%d]", other)})
		} else {
			owner[key] = i
		}
	}

	// Step 6: topology — build the dependency DAG from condition/binding
	// references and detect cycles; evaluation order must equal
	// ascending cardId, so a cycle is the only failure mode checked
	// here (forward references to higher IDs are always legal: they
	// simply see last scan's value, per §5's ordering guarantee).
	if cycle := detectCycle(cand.Cards, cand.Bindings); cycle {
		errs = append(errs, ValidationError{"cards", errcode.VCFG013, "dependency graph contains a cycle"})
	}

	// Step 7: hardware profile gates.
	gate := func(n, max int, path string, code errcode.Code) {
		if max == 0 && n > 0 {
			errs = append(errs, ValidationError{path, code, "card family unavailable on this hardware profile"})
		}
	}
	gate(counts[CardDI], profile.MaxDI, "cards[DI]", errcode.VCFG017)
	gate(counts[CardAI], profile.MaxAI, "cards[AI]", errcode.VCFG018)
	gate(counts[CardSIO], profile.MaxSIO, "cards[SIO]", errcode.VCFG019)
	gate(counts[CardDO], profile.MaxDO, "cards[DO]", errcode.VCFG019)
	gate(counts[CardMATH], profile.MaxMATH, "cards[MATH]", errcode.VCFG017)
	gate(counts[CardRTC], profile.MaxRTC, "cards[RTC]", errcode.VCFG017)

	return errs
}

func validateConditionShape(path string, _ bool, cfg *DIConfig) []ValidationError {
	if cfg == nil {
		return nil
	}
	var errs []ValidationError
	errs = append(errs, validateCondBlockShape(path, cfg.Set)...)
	errs = append(errs, validateCondBlockShape(path+".reset", cfg.Reset)...)
	return errs
}

func validateCondBlockShape(path string, b *ConditionBlock) []ValidationError {
	if b == nil {
		return nil
	}
	var errs []ValidationError
	if b.Combiner != CombineNone && b.ClauseB == nil {
		errs = append(errs, ValidationError{path, errcode.VCFG006, "combiner set but clauseB missing"})
	}
	if b.Combiner == CombineNone && b.ClauseB != nil {
		errs = append(errs, ValidationError{path, errcode.VCFG006, "clauseB present without a combiner"})
	}
	checkOperator := func(p string, c Clause) {
		switch c.Source.Type {
		case FieldBool:
			if c.Operator != OpEQ && c.Operator != OpNEQ {
				errs = append(errs, ValidationError{p, errcode.VCFG007, "boolean field only supports EQ/NEQ"})
			}
		case FieldState:
			if c.Operator != OpEQ {
				errs = append(errs, ValidationError{p, errcode.VCFG007, "state field only supports EQ"})
			}
		}
	}
	checkOperator(path+".clauseA", b.ClauseA)
	if b.ClauseB != nil {
		checkOperator(path+".clauseB", *b.ClauseB)
	}
	return errs
}

func validateMathShape(path string, cfg *MATHConfig) []ValidationError {
	if cfg == nil {
		return nil
	}
	var errs []ValidationError
	switch cfg.Mode {
	case MathStandardPipeline:
		if cfg.Standard == nil {
			errs = append(errs, ValidationError{path + ".standard", errcode.VCFG004, "StandardPipeline mode requires standard params"})
			break
		}
		if cfg.Standard.Operator > OpMax {
			errs = append(errs, ValidationError{path + ".standard.operator", errcode.VCFG010, "unknown operator"})
		}
		if cfg.Standard.ClampMin > cfg.Standard.ClampMax {
			errs = append(errs, ValidationError{path + ".standard.clamp", errcode.VCFG011, "clampMin exceeds clampMax"})
		}
		if cfg.Standard.ScaleMin > cfg.Standard.ScaleMax {
			errs = append(errs, ValidationError{path + ".standard.scale", errcode.VCFG011, "scaleMin exceeds scaleMax"})
		}
	case MathPID:
		if cfg.PID == nil {
			errs = append(errs, ValidationError{path + ".pid", errcode.VCFG004, "PID mode requires pid params"})
			break
		}
		if cfg.PID.OutputMin > cfg.PID.OutputMax {
			errs = append(errs, ValidationError{path + ".pid.output", errcode.VCFG011, "outputMin exceeds outputMax"})
		}
	}
	return errs
}

// fieldExists reports whether field is a valid, type-matching field name
// for card's family, mirroring graphReader's dispatch tables so
// reference validation and reference resolution never disagree.
func fieldExists(c *Card, field string, t FieldType) bool {
	boolFields := map[CardType][]string{
		CardDI:   {"logicalState", "physicalState", "triggerFlag"},
		CardSIO:  {"logicalState", "physicalState"},
		CardDO:   {"logicalState", "physicalState", "physicalDrive"},
		CardMATH: {"faultStatus"},
		CardRTC:  {"logicalState"},
	}
	numberFields := map[CardType][]string{
		CardDI:   {"currentValue"},
		CardAI:   {"currentValue"},
		CardSIO:  {"currentValue"},
		CardDO:   {"currentValue"},
		CardMATH: {"currentValue", "intermediateValue"},
	}
	stateFields := map[CardType][]string{
		CardSIO: {"missionState"},
		CardDO:  {"missionState"},
	}
	var table map[CardType][]string
	switch t {
	case FieldBool:
		table = boolFields
	case FieldNumber:
		table = numberFields
	case FieldState:
		table = stateFields
	default:
		return false
	}
	for _, f := range table[c.Type] {
		if f == field {
			return true
		}
	}
	return false
}

func walkConditionRefs(c *Card, visit func(path string, ref SourceRef)) {
	walk := func(prefix string, b *ConditionBlock) {
		if b == nil {
			return
		}
		visit(prefix+".clauseA", b.ClauseA.Source)
		if b.ClauseB != nil {
			visit(prefix+".clauseB", b.ClauseB.Source)
		}
	}
	path := fmtx.Sprintf("cards[%d]", c.ID)
	switch c.Type {
	case CardDI:
		if c.DI != nil {
			walk(path+".set", c.DI.Set)
			walk(path+".reset", c.DI.Reset)
		}
	case CardSIO:
		if c.SIO != nil {
			walk(path+".set", c.SIO.Set)
			walk(path+".reset", c.SIO.Reset)
		}
	case CardDO:
		if c.DO != nil {
			walk(path+".set", c.DO.Set)
			walk(path+".reset", c.DO.Reset)
		}
	case CardMATH:
		if c.MATH != nil {
			walk(path+".set", c.MATH.Set)
			walk(path+".reset", c.MATH.Reset)
			if c.MATH.Standard != nil {
				if c.MATH.Standard.InputA.Mode == RefVariable && c.MATH.Standard.InputA.Ref != nil {
					visit(path+".standard.inputA", *c.MATH.Standard.InputA.Ref)
				}
				if c.MATH.Standard.InputB.Mode == RefVariable && c.MATH.Standard.InputB.Ref != nil {
					visit(path+".standard.inputB", *c.MATH.Standard.InputB.Ref)
				}
			}
			if c.MATH.PID != nil {
				visit(path+".pid.processVariable", c.MATH.PID.ProcessVariable)
				if c.MATH.PID.Setpoint.Mode == RefVariable && c.MATH.PID.Setpoint.Ref != nil {
					visit(path+".pid.setpoint", *c.MATH.PID.Setpoint.Ref)
				}
			}
		}
	}
}

// detectCycle reports whether the condition/binding reference graph
// among cand's cards contains a cycle. Edges come from two sources
// (§3 Topology): a card's set/reset condition clauses and MATH operand
// refs (walkConditionRefs), and every Binding's target → source edge.
// Forward references to a higher cardId are legal (they read last
// scan's value); only a cycle — a reference chain that returns to its
// own origin — is ever rejected, since ascending-cardId evaluation
// order is fixed and total by construction and therefore cannot itself
// "disagree" with a DAG that has no cycles.
func detectCycle(cards []*Card, bindings []Binding) bool {
	type state uint8
	const (
		unvisited state = iota
		visiting
		done
	)
	idx := make(map[CardID]*Card, len(cards))
	for _, c := range cards {
		idx[c.ID] = c
	}
	marks := make(map[CardID]state, len(cards))

	bindingDeps := make(map[CardID][]CardID, len(bindings))
	for _, b := range bindings {
		if b.Source.Mode == RefVariable && b.Source.Ref != nil {
			bindingDeps[b.Target.CardID] = append(bindingDeps[b.Target.CardID], b.Source.Ref.CardID)
		}
	}

	var deps func(c *Card) []CardID
	deps = func(c *Card) []CardID {
		var out []CardID
		add := func(ref SourceRef) { out = append(out, ref.CardID) }
		walkConditionRefs(c, func(_ string, ref SourceRef) { add(ref) })
		out = append(out, bindingDeps[c.ID]...)
		return out
	}

	var visit func(id CardID) bool
	visit = func(id CardID) bool {
		switch marks[id] {
		case visiting:
			return true
		case done:
			return false
		}
		marks[id] = visiting
		if c := idx[id]; c != nil {
			for _, d := range deps(c) {
				if visit(d) {
					return true
				}
			}
		}
		marks[id] = done
		return false
	}

	for _, c := range cards {
		if visit(c.ID) {
			return true
		}
	}
	return false
}
