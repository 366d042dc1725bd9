package kernel

import (
	"encoding/json"

	"advancedtimer/errcode"
	"advancedtimer/kernel/storage"
	"advancedtimer/x/fmtx"
)

// ConfigLifecycle implements the §4.8/§6 config lifecycle request set
// (get_active, save_staged, validate_staged, commit, restore) against a
// Storage backend and a Scheduler. It is the one place persistence
// slots are rotated; the commit pipeline's validation logic itself
// lives in commit.go and has no storage dependency of its own.
type ConfigLifecycle struct {
	store    storage.Storage
	sched    *Scheduler
	profile  HardwareProfile
	onCommit func(status CommandStatus, code errcode.Code)
}

func NewConfigLifecycle(store storage.Storage, sched *Scheduler, profile HardwareProfile) *ConfigLifecycle {
	return &ConfigLifecycle{store: store, sched: sched, profile: profile}
}

// GetActive returns the bytes currently in the active slot.
func (cl *ConfigLifecycle) GetActive() ([]byte, error) {
	return cl.store.Read(storage.SlotActive)
}

// SaveStaged writes data into the staged slot without validating it;
// validation is a separate, explicit step (ValidateStaged/Commit), per
// §4.8's input contract.
func (cl *ConfigLifecycle) SaveStaged(data []byte) error {
	return cl.store.WriteAtomic(storage.SlotStaged, data)
}

// ValidateStaged decodes and validates whatever is currently in the
// staged slot, without swapping it in.
func (cl *ConfigLifecycle) ValidateStaged() ([]ValidationError, *CandidateConfig, error) {
	raw, err := cl.store.Read(storage.SlotStaged)
	if err != nil {
		return nil, nil, err
	}
	if raw == nil {
		return nil, nil, errcode.NotFound
	}
	cand, err := decodeCandidate(raw)
	if err != nil {
		return []ValidationError{{"", errcode.InvalidRequest, err.Error()}}, nil, nil
	}
	return ValidateCandidate(cand, cl.profile), cand, nil
}

// Commit runs the full commit pipeline (§4.8 steps 1-8) against the
// staged slot: validate, and on success rotate active -> lkg, promote
// staged -> active, and swap the running scheduler onto the new graph.
// Any validation failure leaves active and lkg untouched.
func (cl *ConfigLifecycle) Commit() ([]ValidationError, error) {
	errs, cand, err := cl.ValidateStaged()
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		cl.notify(StatusFailure, errcode.VCFG004)
		return errs, nil
	}

	raw, err := cl.store.Read(storage.SlotStaged)
	if err != nil {
		return nil, err
	}
	if err := cl.store.Rotate(storage.SlotActive, storage.SlotLKG); err != nil {
		cl.notify(StatusFailure, errcode.CommitFailed)
		return nil, fmtx.Errorf("commit: rotate active->lkg: %w", err)
	}
	if err := cl.store.WriteAtomic(storage.SlotActive, raw); err != nil {
		cl.notify(StatusFailure, errcode.CommitFailed)
		return nil, fmtx.Errorf("commit: promote staged->active: %w", err)
	}

	g := NewGraph(cand.Cards, cand.Bindings, cand.ScanIntervalMs, cand.JitterBudgetUs, cand.OverrunBudgetUs, cand.CommandQueueCap)
	if cl.sched != nil {
		cl.sched.SwapConfig(g)
	}
	cl.notify(StatusSuccess, errcode.OK)
	return nil, nil
}

// Restore re-runs the commit protocol using LKG or FACTORY as the
// source instead of staged (§4.8 "Restore uses the same commit
// protocol").
func (cl *ConfigLifecycle) Restore(source storage.Slot) ([]ValidationError, error) {
	if source != storage.SlotLKG && source != storage.SlotFactory {
		return nil, errcode.InvalidRequest
	}
	raw, err := cl.store.Read(source)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errcode.NotFound
	}
	if err := cl.store.WriteAtomic(storage.SlotStaged, raw); err != nil {
		return nil, fmtx.Errorf("restore: stage %s: %w", source, err)
	}
	errs, err := cl.Commit()
	if err != nil {
		return nil, fmtx.Errorf("restore: %w", err)
	}
	if len(errs) > 0 {
		cl.notify(StatusFailure, errcode.RestoreFailed)
	}
	return errs, nil
}

func (cl *ConfigLifecycle) notify(status CommandStatus, code errcode.Code) {
	if cl.onCommit != nil {
		cl.onCommit(status, code)
	}
}

// candidateDoc is the JSON-document shape CandidateConfig is decoded
// from; the document/wire format is JSON (not the kernel's internal
// centiunit-typed structs) so staged bytes are a portable, inspectable
// artifact independent of this process's Go types.
type candidateDoc struct {
	SchemaVersion   string    `json:"schemaVersion"`
	ScanIntervalMs  uint32    `json:"scanIntervalMs"`
	JitterBudgetUs  uint32    `json:"jitterBudgetUs"`
	OverrunBudgetUs uint32    `json:"overrunBudgetUs"`
	CommandQueueCap int       `json:"commandQueueCap"`
	WifiStaOnly     bool      `json:"wifiStaOnly"`
	Cards           []*Card   `json:"cards"`
	Bindings        []Binding `json:"bindings"`
}

func decodeCandidate(raw []byte) (*CandidateConfig, error) {
	var doc candidateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmtx.Errorf("decode candidate: %w", err)
	}
	return &CandidateConfig{
		SchemaVersion:   doc.SchemaVersion,
		Cards:           doc.Cards,
		Bindings:        doc.Bindings,
		ScanIntervalMs:  doc.ScanIntervalMs,
		JitterBudgetUs:  doc.JitterBudgetUs,
		OverrunBudgetUs: doc.OverrunBudgetUs,
		CommandQueueCap: doc.CommandQueueCap,
		WifiStaOnly:     doc.WifiStaOnly,
	}, nil
}
