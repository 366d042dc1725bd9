package kernel

// Graph is the active, committed configuration in its runtime form: a
// flat, ascending-cardId-ordered array of cards plus the bindings that
// feed their bindable parameters. It is the "two handles" the atomic
// swap protocol exchanges (see commit.go) and is otherwise immutable for
// the duration of a scan.
type Graph struct {
	ScanIntervalMs   uint32
	JitterBudgetUs   uint32
	OverrunBudgetUs  uint32
	CommandQueueCap  int

	cards           []*Card          // ascending by ID; the one and only evaluation order
	index           map[CardID]int   // ID -> position in cards
	bindingsByTarget map[CardID][]Binding
}

// NewGraph builds a Graph from an already-validated set of cards and
// bindings (validation happens in the commit pipeline; NewGraph trusts
// its input). Cards are sorted ascending by ID.
func NewGraph(cards []*Card, bindings []Binding, scanIntervalMs, jitterBudgetUs, overrunBudgetUs uint32, cmdQueueCap int) *Graph {
	sorted := make([]*Card, len(cards))
	copy(sorted, cards)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].ID > sorted[j].ID; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	g := &Graph{
		ScanIntervalMs:  scanIntervalMs,
		JitterBudgetUs:  jitterBudgetUs,
		OverrunBudgetUs: overrunBudgetUs,
		CommandQueueCap: cmdQueueCap,
		cards:           sorted,
		index:           make(map[CardID]int, len(sorted)),
		bindingsByTarget: make(map[CardID][]Binding),
	}
	for i, c := range sorted {
		g.index[c.ID] = i
	}
	for _, b := range bindings {
		g.bindingsByTarget[b.Target.CardID] = append(g.bindingsByTarget[b.Target.CardID], b)
	}
	return g
}

// Cards returns the ascending-cardId-ordered card list. Callers must not
// mutate the slice's identity (append/reslice); per-card field mutation
// during a scan is the scheduler's job alone.
func (g *Graph) Cards() []*Card { return g.cards }

// CardByID returns the card with the given ID, or nil if absent.
func (g *Graph) CardByID(id CardID) *Card {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.cards[i]
}

// carryOver copies edge/counter/FSM state from an old graph into a newly
// built one for every card whose ID and Type are unchanged, per the
// scheduler's swapConfig contract (§4.1): a commit must not discard
// in-flight debounce windows, mission phases, or counters for cards that
// survive unmodified in identity.
func carryOver(oldGraph, newGraph *Graph) {
	if oldGraph == nil {
		return
	}
	for _, nc := range newGraph.cards {
		oc := oldGraph.CardByID(nc.ID)
		if oc == nil || oc.Type != nc.Type {
			continue
		}
		switch nc.Type {
		case CardDI:
			if oc.DIRun != nil && nc.DIRun != nil {
				*nc.DIRun = *oc.DIRun
			}
		case CardAI:
			if oc.AIRun != nil && nc.AIRun != nil {
				*nc.AIRun = *oc.AIRun
			}
		case CardSIO:
			if oc.SIORun != nil && nc.SIORun != nil {
				*nc.SIORun = *oc.SIORun
			}
		case CardDO:
			if oc.DORun != nil && nc.DORun != nil {
				*nc.DORun = *oc.DORun
			}
		case CardMATH:
			if oc.MATHRun != nil && nc.MATHRun != nil {
				*nc.MATHRun = *oc.MATHRun
			}
		case CardRTC:
			if oc.RTCRun != nil && nc.RTCRun != nil {
				*nc.RTCRun = *oc.RTCRun
			}
		}
		nc.Health = oc.Health
		nc.FaultCounter = oc.FaultCounter
	}
}

// graphReader adapts a Graph into the fieldReader interface evalCondition
// and the MATH/binding resolvers need. Because cards are mutated in
// ascending-ID order in place, a reference to a lower ID sees this scan's
// fresh value and a reference to a higher ID sees last scan's value
// automatically — no separate "previous snapshot" buffer is needed.
type graphReader struct{ g *Graph }

func (r graphReader) readBool(id CardID, field string) (bool, bool) {
	c := r.g.CardByID(id)
	if c == nil || !c.Enabled {
		return false, false
	}
	switch c.Type {
	case CardDI:
		if c.DIRun == nil {
			return false, false
		}
		switch field {
		case "logicalState":
			return c.DIRun.LogicalState, true
		case "physicalState":
			return c.DIRun.PhysicalState, true
		case "triggerFlag":
			return c.DIRun.TriggerFlag, true
		}
	case CardSIO:
		if c.SIORun == nil {
			return false, false
		}
		switch field {
		case "logicalState":
			return c.SIORun.LogicalState, true
		case "physicalState":
			return c.SIORun.PhysicalState, true
		}
	case CardDO:
		if c.DORun == nil {
			return false, false
		}
		switch field {
		case "logicalState":
			return c.DORun.LogicalState, true
		case "physicalState":
			return c.DORun.PhysicalState, true
		case "physicalDrive":
			return c.DORun.PhysicalDrive, true
		}
	case CardMATH:
		if c.MATHRun == nil {
			return false, false
		}
		if field == "faultStatus" {
			return c.MATHRun.FaultStatus, true
		}
	case CardRTC:
		if c.RTCRun == nil {
			return false, false
		}
		if field == "logicalState" {
			return c.RTCRun.LogicalState, true
		}
	}
	return false, false
}

func (r graphReader) readNumber(id CardID, field string) (Centi, bool) {
	c := r.g.CardByID(id)
	if c == nil || !c.Enabled {
		return 0, false
	}
	switch c.Type {
	case CardDI:
		if c.DIRun != nil && field == "currentValue" {
			return c.DIRun.CurrentValue, true
		}
	case CardAI:
		if c.AIRun != nil && field == "currentValue" {
			return c.AIRun.CurrentValue, true
		}
	case CardSIO:
		if c.SIORun != nil && field == "currentValue" {
			return c.SIORun.CurrentValue, true
		}
	case CardDO:
		if c.DORun != nil && field == "currentValue" {
			return c.DORun.CurrentValue, true
		}
	case CardMATH:
		if c.MATHRun != nil {
			switch field {
			case "currentValue":
				return c.MATHRun.CurrentValue, true
			case "intermediateValue":
				return c.MATHRun.IntermediateValue, true
			}
		}
	}
	return 0, false
}

func (r graphReader) readState(id CardID, field string) (MissionState, bool) {
	c := r.g.CardByID(id)
	if c == nil || !c.Enabled || field != "missionState" {
		return 0, false
	}
	switch c.Type {
	case CardSIO:
		if c.SIORun != nil {
			return c.SIORun.MissionState, true
		}
	case CardDO:
		if c.DORun != nil {
			return c.DORun.MissionState, true
		}
	}
	return 0, false
}
