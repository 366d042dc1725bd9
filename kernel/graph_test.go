package kernel

import "testing"

func TestNewGraph_SortsByAscendingID(t *testing.T) {
	cards := []*Card{
		{ID: 5, Type: CardDI, DIRun: &DIRuntime{}},
		{ID: 1, Type: CardDI, DIRun: &DIRuntime{}},
		{ID: 3, Type: CardDI, DIRun: &DIRuntime{}},
	}
	g := NewGraph(cards, nil, 100, 0, 0, 8)
	want := []CardID{1, 3, 5}
	for i, id := range want {
		if g.cards[i].ID != id {
			t.Fatalf("expected ascending order %v, got %v at index %d", want, g.cards[i].ID, i)
		}
	}
}

func TestCardByID_AbsentReturnsNil(t *testing.T) {
	g := NewGraph(nil, nil, 100, 0, 0, 8)
	if g.CardByID(42) != nil {
		t.Fatal("expected nil for an absent card")
	}
}

func TestCarryOver_PreservesRuntimeForSameIDAndType(t *testing.T) {
	old := NewGraph([]*Card{{ID: 1, Type: CardDI, DIRun: &DIRuntime{CurrentValue: 7}, Health: HealthWarn}}, nil, 100, 0, 0, 8)
	next := NewGraph([]*Card{{ID: 1, Type: CardDI, DIRun: &DIRuntime{}}}, nil, 100, 0, 0, 8)

	carryOver(old, next)

	if next.cards[0].DIRun.CurrentValue != 7 {
		t.Fatalf("expected carried-over counter 7, got %d", next.cards[0].DIRun.CurrentValue)
	}
	if next.cards[0].Health != HealthWarn {
		t.Fatalf("expected carried-over health, got %v", next.cards[0].Health)
	}
}

func TestCarryOver_DropsStateWhenTypeChanges(t *testing.T) {
	old := NewGraph([]*Card{{ID: 1, Type: CardDI, DIRun: &DIRuntime{CurrentValue: 7}}}, nil, 100, 0, 0, 8)
	next := NewGraph([]*Card{{ID: 1, Type: CardAI, AIRun: &AIRuntime{CurrentValue: 99}}}, nil, 100, 0, 0, 8)

	carryOver(old, next)

	if next.cards[0].AIRun.CurrentValue != 99 {
		t.Fatal("a type change must not carry over the old family's runtime state")
	}
}

func TestGraphReader_ReadNumberUnknownField(t *testing.T) {
	g := NewGraph([]*Card{{ID: 1, Type: CardDI, Enabled: true, DIRun: &DIRuntime{}}}, nil, 100, 0, 0, 8)
	r := graphReader{g}
	if _, ok := r.readNumber(1, "doesNotExist"); ok {
		t.Fatal("expected ok=false for an unknown field")
	}
}

func TestGraphReader_DisabledCardNotReadable(t *testing.T) {
	g := NewGraph([]*Card{{ID: 1, Type: CardDI, Enabled: false, DIRun: &DIRuntime{CurrentValue: 5}}}, nil, 100, 0, 0, 8)
	r := graphReader{g}
	if _, ok := r.readNumber(1, "currentValue"); ok {
		t.Fatal("a disabled card's fields must not be readable")
	}
}
