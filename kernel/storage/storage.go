// Package storage implements the kernel's slot-addressed byte store
// (§6.1): active/staged/lkg/factory, selected by process configuration
// rather than ambient environment variables.
package storage

import "advancedtimer/x/fmtx"

// Slot names one of the four logical persistence slots the commit
// pipeline rotates between. Storage itself is opaque bytes; the kernel
// owns the schema inside them.
type Slot string

const (
	SlotActive  Slot = "active"
	SlotStaged  Slot = "staged"
	SlotLKG     Slot = "lkg"
	SlotFactory Slot = "factory"
)

// Storage is the opaque, slot-addressed byte store the commit pipeline
// rotates through. Read of an empty slot returns (nil, nil): an absent
// slot is not itself an error, callers decide what that means.
type Storage interface {
	Read(slot Slot) ([]byte, error)
	WriteAtomic(slot Slot, data []byte) error
	Rotate(src, dst Slot) error
}

// ErrSlotEmpty is never returned by Read; kept only so callers that want
// to distinguish "empty" from "absent" have a place to hang that
// decision, mirroring the interface the example pack's blob stores use.
var ErrSlotEmpty = fmtx.Errorf("storage: slot empty")
