package kernel

// FieldType is the declared type of a clause's source field, used both at
// commit time (type/range/unit compatibility) and at scan time (operator
// legality).
type FieldType uint8

const (
	FieldBool FieldType = iota
	FieldNumber
	FieldState
)

// Operator is a clause's comparison. GT/GTE/LT/LTE/EQ/NEQ are valid for
// FieldNumber; only EQ/NEQ for FieldBool; only EQ for FieldState.
type Operator uint8

const (
	OpGT Operator = iota
	OpGTE
	OpLT
	OpLTE
	OpEQ
	OpNEQ
)

// SourceRef names one card's field as a clause or binding source.
type SourceRef struct {
	CardID CardID
	Field  string
	Type   FieldType
}

// Clause is one leg of a condition block.
type Clause struct {
	Source    SourceRef
	Operator  Operator
	Threshold Centi
}

// Combiner joins clauseA and clauseB.
type Combiner uint8

const (
	CombineNone Combiner = iota
	CombineAnd
	CombineOr
)

// ConditionBlock is the two-clause boolean algebra attached to
// DI/DO/SIO/MATH set/reset fields. AIConfig and RTCConfig have no
// set/reset fields, so AI and RTC cards cannot carry one; the commit
// pipeline never emits V-CFG-008/009.
type ConditionBlock struct {
	ClauseA  Clause
	ClauseB  *Clause // required iff Combiner != CombineNone
	Combiner Combiner
}

// RefMode selects a binding or MATH operand's source kind.
type RefMode uint8

const (
	RefConstant RefMode = iota
	RefVariable
)

// BindingSource is either a constant centiunit value or a reference to
// another card's field.
type BindingSource struct {
	Mode  RefMode
	Value Centi
	Ref   *SourceRef
}

// BindingTarget names the consumer parameter path a Binding writes to.
type BindingTarget struct {
	CardID CardID
	Path   string
}

// Binding is a validated, typed edge from a consumer parameter to a
// constant or to another card's output.
type Binding struct {
	BindingID uint32
	Target    BindingTarget
	Source    BindingSource
}

// fieldReader resolves a SourceRef against either the card currently
// being evaluated this scan (fresh values for lower cardId references)
// or the previous-scan snapshot (for references to cards with a higher
// cardId, per the same-scan visibility contract in §4.2/§5).
type fieldReader interface {
	// readBool/readNumber/readState fetch a field by name off the named
	// card's appropriate runtime record. ok is false if the card or
	// field does not exist or the card is disabled (never fatal during
	// a scan; such configs are rejected at commit, not at runtime).
	readBool(cardID CardID, field string) (val bool, ok bool)
	readNumber(cardID CardID, field string) (val Centi, ok bool)
	readState(cardID CardID, field string) (val MissionState, ok bool)
}

// evalClause evaluates a single clause against the reader.
func evalClause(c Clause, r fieldReader) bool {
	switch c.Source.Type {
	case FieldBool:
		v, ok := r.readBool(c.Source.CardID, c.Source.Field)
		if !ok {
			return false
		}
		want := c.Threshold != 0
		switch c.Operator {
		case OpEQ:
			return v == want
		case OpNEQ:
			return v != want
		default:
			return false // illegal operator for BOOL, rejected at commit
		}
	case FieldNumber:
		v, ok := r.readNumber(c.Source.CardID, c.Source.Field)
		if !ok {
			return false
		}
		return compareNumber(v, c.Operator, c.Threshold)
	case FieldState:
		v, ok := r.readState(c.Source.CardID, c.Source.Field)
		if !ok {
			return false
		}
		if c.Operator != OpEQ {
			return false // only EQ is defined for STATE
		}
		return uint32(v) == c.Threshold
	default:
		return false
	}
}

func compareNumber(v Centi, op Operator, threshold Centi) bool {
	switch op {
	case OpGT:
		return v > threshold
	case OpGTE:
		return v >= threshold
	case OpLT:
		return v < threshold
	case OpLTE:
		return v <= threshold
	case OpEQ:
		return v == threshold
	case OpNEQ:
		return v != threshold
	default:
		return false
	}
}

// evalCondition evaluates an optional condition block; a nil block is
// treated as AlwaysFalse, so a DI/DO/SIO/MATH card that wants
// unconditional behavior needs an explicit AlwaysTrue clause (commit does
// not check for one).
func evalCondition(block *ConditionBlock, r fieldReader) bool {
	if block == nil {
		return false
	}
	a := evalClause(block.ClauseA, r)
	switch block.Combiner {
	case CombineNone:
		return a
	case CombineAnd:
		if !a {
			return false
		}
		return evalClause(*block.ClauseB, r)
	case CombineOr:
		if a {
			return true
		}
		return evalClause(*block.ClauseB, r)
	default:
		return false
	}
}

// resolveOperand resolves a MATH Operand to a concrete value through r.
func resolveOperand(op Operand, r fieldReader) (Centi, bool) {
	if op.Mode == RefConstant {
		return op.Value, true
	}
	if op.Ref == nil {
		return 0, false
	}
	return r.readNumber(op.Ref.CardID, op.Ref.Field)
}

// resolveBindingSource resolves a BindingSource to a concrete value.
func resolveBindingSource(s BindingSource, r fieldReader) (Centi, bool) {
	if s.Mode == RefConstant {
		return s.Value, true
	}
	if s.Ref == nil {
		return 0, false
	}
	return r.readNumber(s.Ref.CardID, s.Ref.Field)
}
