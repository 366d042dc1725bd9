package kernel

import "testing"

type fakeReader struct {
	bools  map[CardID]bool
	nums   map[CardID]Centi
	states map[CardID]MissionState
}

func (f fakeReader) readBool(id CardID, field string) (bool, bool) {
	v, ok := f.bools[id]
	return v, ok
}

func (f fakeReader) readNumber(id CardID, field string) (Centi, bool) {
	v, ok := f.nums[id]
	return v, ok
}

func (f fakeReader) readState(id CardID, field string) (MissionState, bool) {
	v, ok := f.states[id]
	return v, ok
}

func TestEvalClause_Number(t *testing.T) {
	r := fakeReader{nums: map[CardID]Centi{1: 500}}
	c := Clause{Source: SourceRef{CardID: 1, Type: FieldNumber}, Operator: OpGTE, Threshold: 500}
	if !evalClause(c, r) {
		t.Fatal("expected GTE(500, 500) to be true")
	}
	c.Operator = OpGT
	if evalClause(c, r) {
		t.Fatal("expected GT(500, 500) to be false")
	}
}

func TestEvalClause_Bool(t *testing.T) {
	r := fakeReader{bools: map[CardID]bool{1: true}}
	c := Clause{Source: SourceRef{CardID: 1, Type: FieldBool}, Operator: OpEQ, Threshold: 1}
	if !evalClause(c, r) {
		t.Fatal("expected EQ(true, true) to be true")
	}
	// GT is illegal for BOOL and must fail closed, not panic.
	c.Operator = OpGT
	if evalClause(c, r) {
		t.Fatal("illegal operator on BOOL clause must evaluate false")
	}
}

func TestEvalClause_MissingSource(t *testing.T) {
	r := fakeReader{}
	c := Clause{Source: SourceRef{CardID: 99, Type: FieldNumber}, Operator: OpEQ, Threshold: 0}
	if evalClause(c, r) {
		t.Fatal("a clause referencing an absent source must evaluate false, never true")
	}
}

func TestEvalCondition_NilBlockIsAlwaysFalse(t *testing.T) {
	if evalCondition(nil, fakeReader{}) {
		t.Fatal("nil condition block must be AlwaysFalse")
	}
}

func TestEvalCondition_And(t *testing.T) {
	r := fakeReader{nums: map[CardID]Centi{1: 10, 2: 20}}
	block := &ConditionBlock{
		ClauseA:  Clause{Source: SourceRef{CardID: 1, Type: FieldNumber}, Operator: OpEQ, Threshold: 10},
		ClauseB:  &Clause{Source: SourceRef{CardID: 2, Type: FieldNumber}, Operator: OpEQ, Threshold: 20},
		Combiner: CombineAnd,
	}
	if !evalCondition(block, r) {
		t.Fatal("expected AND of two true clauses to be true")
	}
	block.ClauseB.Threshold = 21
	if evalCondition(block, r) {
		t.Fatal("expected AND with one false clause to be false")
	}
}

func TestEvalCondition_Or(t *testing.T) {
	r := fakeReader{nums: map[CardID]Centi{1: 10, 2: 20}}
	block := &ConditionBlock{
		ClauseA:  Clause{Source: SourceRef{CardID: 1, Type: FieldNumber}, Operator: OpEQ, Threshold: 999},
		ClauseB:  &Clause{Source: SourceRef{CardID: 2, Type: FieldNumber}, Operator: OpEQ, Threshold: 20},
		Combiner: CombineOr,
	}
	if !evalCondition(block, r) {
		t.Fatal("expected OR with one true clause to be true")
	}
}

func TestResolveOperand_Constant(t *testing.T) {
	v, ok := resolveOperand(Operand{Mode: RefConstant, Value: 42}, fakeReader{})
	if !ok || v != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", v, ok)
	}
}

func TestResolveOperand_VariableMissingRef(t *testing.T) {
	_, ok := resolveOperand(Operand{Mode: RefVariable, Ref: nil}, fakeReader{})
	if ok {
		t.Fatal("a variable operand with a nil ref must not resolve")
	}
}
