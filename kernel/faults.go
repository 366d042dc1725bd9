package kernel

import "sync"

// FaultRecord is one entry recorded by MemoryFaultSink, used by tests and
// by the bus-bound fault sink (bus_binding.go) to republish faults.
type FaultRecord struct {
	Kind    FaultKind
	CardID  CardID
	Details string
}

// MemoryFaultSink accumulates fault records and fires an optional
// callback for each one; it never blocks the kernel thread since appends
// to a plain slice are O(1) amortized and the callback (if any) must
// itself be non-blocking.
type MemoryFaultSink struct {
	mu      sync.Mutex
	records []FaultRecord
	OnFault func(FaultRecord)
}

func NewMemoryFaultSink() *MemoryFaultSink { return &MemoryFaultSink{} }

func (s *MemoryFaultSink) Record(kind FaultKind, cardID CardID, details string) {
	rec := FaultRecord{Kind: kind, CardID: cardID, Details: details}
	s.mu.Lock()
	s.records = append(s.records, rec)
	cb := s.OnFault
	s.mu.Unlock()
	if cb != nil {
		cb(rec)
	}
}

// Records returns a snapshot copy of everything recorded so far.
func (s *MemoryFaultSink) Records() []FaultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FaultRecord, len(s.records))
	copy(out, s.records)
	return out
}

// applyFaultPolicy derives a card's Health from whether it currently has
// an active fault and its configured FaultPolicy (§7 IO fault kind):
// INFO never raises above OK, WARN caps at Warn, CRITICAL allows Fault.
func applyFaultPolicy(policy FaultPolicy, hasFault bool) Health {
	if !hasFault {
		return HealthOK
	}
	switch policy {
	case FaultInfo:
		return HealthOK
	case FaultWarn:
		return HealthWarn
	case FaultCritical:
		return HealthFault
	default:
		return HealthWarn
	}
}
