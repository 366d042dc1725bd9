package kernel

import (
	"context"

	"advancedtimer/bus"
	"advancedtimer/errcode"
	"advancedtimer/kernel/storage"
	"advancedtimer/x/klog"

	"github.com/google/uuid"
)

// Bound wires a Scheduler and a ConfigLifecycle onto the process bus
// (SPEC_FULL §4.10): kernel/cmd, kernel/snapshot (retained),
// kernel/fault, kernel/commit/result (retained). This is plumbing only
// — it adds no invariant, error code, or ordering guarantee beyond
// those already owned by Scheduler and ConfigLifecycle.
type Bound struct {
	conn  *bus.Connection
	sched *Scheduler
	cl    *ConfigLifecycle
	log   *klog.Logger
}

var (
	topicCmd          = bus.T("kernel", "cmd")
	topicCmdLast       = bus.T("kernel", "cmd", "last")
	topicSnapshot     = bus.T("kernel", "snapshot")
	topicFault        = bus.T("kernel", "fault")
	topicCommitResult = bus.T("kernel", "commit", "result")
)

// Bind subscribes to kernel/cmd before returning, then starts the
// background goroutines that drain kernel/cmd into the scheduler's
// command queue and republish command results. Faults reach kernel/fault
// through a BusFaultSink that the caller builds and hands to
// NewScheduler; Bind does not install one. It returns a Bound the caller
// keeps alive for the process lifetime; there is no Unbind because the
// kernel process never outlives its bus connection.
func Bind(ctx context.Context, conn *bus.Connection, sched *Scheduler, cl *ConfigLifecycle, log *klog.Logger) *Bound {
	b := &Bound{conn: conn, sched: sched, cl: cl, log: log}
	cmdSub := conn.Subscribe(topicCmd)
	go b.runCommandLoop(ctx, cmdSub)
	go b.runResultLoop(ctx)
	return b
}

// BusFaultSink adapts a bus.Connection into a FaultSink: every recorded
// fault is also published on kernel/fault so the watchdog and metrics
// services see a uniform feed regardless of which subsystem raised it.
type BusFaultSink struct {
	conn *bus.Connection
	next FaultSink
}

func NewBusFaultSink(conn *bus.Connection, next FaultSink) *BusFaultSink {
	return &BusFaultSink{conn: conn, next: next}
}

func (s *BusFaultSink) Record(kind FaultKind, cardID CardID, details string) {
	if s.next != nil {
		s.next.Record(kind, cardID, details)
	}
	s.conn.Publish(s.conn.NewMessage(topicFault, FaultRecord{Kind: kind, CardID: cardID, Details: details}, false))
}

func (b *Bound) runCommandLoop(ctx context.Context, sub *bus.Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			cmd, ok := msg.Payload.(Command)
			if !ok {
				b.conn.Reply(msg, CommandResult{Status: StatusFailure, ErrorCode: errcode.InvalidRequest, Message: "payload is not a Command"}, false)
				continue
			}
			if cmd.RequestID == "" {
				cmd.RequestID = uuid.NewString()
			}
			if err := b.sched.Submit(cmd); err != nil {
				b.conn.Reply(msg, CommandResult{RequestID: cmd.RequestID, Status: StatusFailure, ErrorCode: errcode.Of(err), Message: "command queue full"}, false)
				if b.log != nil {
					b.log.Component("bus").Warn("command rejected", "reason", "queue_full")
				}
			}
		}
	}
}

func (b *Bound) runResultLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-b.sched.Results():
			if !ok {
				return
			}
			b.conn.Publish(b.conn.NewMessage(topicCmdLast, res, true))
		}
	}
}

// PublishSnapshot publishes the latest snapshot, retained, on
// kernel/snapshot and returns; before the first completed scan it
// publishes nothing. The caller invokes it after each Tick (cmd/kernel's
// run loop does so on every ticker tick).
func (b *Bound) PublishSnapshot() {
	snap := b.sched.Snapshots().Load()
	if snap == nil {
		return
	}
	b.conn.Publish(b.conn.NewMessage(topicSnapshot, snap, true))
}

// CommitResultEvent is the payload published on kernel/commit/result.
type CommitResultEvent struct {
	Status CommandStatus     `json:"status"`
	Code   errcode.Code      `json:"errorCode,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// PublishCommitResult broadcasts a commit/restore outcome retained on
// kernel/commit/result, independent of which caller triggered it.
func (b *Bound) PublishCommitResult(status CommandStatus, code errcode.Code, errs []ValidationError) {
	payload := CommitResultEvent{Status: status, Code: code, Errors: errs}
	b.conn.Publish(b.conn.NewMessage(topicCommitResult, payload, true))
}

// Commit runs the config lifecycle's commit and publishes the outcome
// on kernel/commit/result.
func (b *Bound) Commit() ([]ValidationError, error) {
	errs, err := b.cl.Commit()
	if err != nil {
		return errs, err
	}
	if len(errs) > 0 {
		b.PublishCommitResult(StatusFailure, errcode.ValidationFailed, errs)
	} else {
		b.PublishCommitResult(StatusSuccess, errcode.OK, nil)
	}
	return errs, nil
}

// Restore runs the config lifecycle's restore and publishes the outcome.
func (b *Bound) Restore(source storage.Slot) ([]ValidationError, error) {
	errs, err := b.cl.Restore(source)
	if err != nil {
		return errs, err
	}
	if len(errs) > 0 {
		b.PublishCommitResult(StatusFailure, errcode.RestoreFailed, errs)
	} else {
		b.PublishCommitResult(StatusSuccess, errcode.OK, nil)
	}
	return errs, nil
}

