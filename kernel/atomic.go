package kernel

import "sync/atomic"

// atomicSnapshotPtr is a renameable alias so snapshot.go doesn't spell
// out the generic instantiation inline.
type atomicSnapshotPtr = atomic.Pointer[Snapshot]
