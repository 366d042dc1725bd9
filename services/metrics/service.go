// Package metrics subscribes to the kernel's bus topics and exposes
// Prometheus metrics for scan timing, overruns, faults, and commit
// outcomes (SPEC_FULL §4.12).
package metrics

import (
	"context"

	"advancedtimer/bus"
	"advancedtimer/kernel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	topicSnapshot     = bus.T("kernel", "snapshot")
	topicFault        = bus.T("kernel", "fault")
	topicCommitResult = bus.T("kernel", "commit", "result")
)

var (
	scanDurationUs = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kernel",
		Name:      "scan_duration_us",
		Help:      "Observed gap, in microseconds, between consecutive published snapshot timestamps.",
		Buckets:   []float64{500, 1000, 2000, 5000, 10000, 20000, 50000, 100000},
	})
	scanOverrunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kernel",
		Name:      "scan_overruns_total",
		Help:      "Total SCAN_OVERRUN faults observed.",
	})
	faultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kernel",
		Name:      "fault_total",
		Help:      "Total faults observed, by kind.",
	}, []string{"kind"})
	commitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kernel",
		Name:      "commit_total",
		Help:      "Total commit/restore outcomes, by status.",
	}, []string{"status"})
	snapshotRevision = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kernel",
		Name:      "snapshot_revision",
		Help:      "Revision of the most recently observed snapshot.",
	})
)

// Service drains kernel/snapshot, kernel/fault, and kernel/commit/result
// into the package-level collectors above. It holds no state of its own
// beyond the previous snapshot timestamp, used to derive scan_duration_us.
type Service struct {
	lastTimestampMs uint64
}

func New() *Service { return &Service{} }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	snapSub := conn.Subscribe(topicSnapshot)
	defer snapSub.Unsubscribe()
	faultSub := conn.Subscribe(topicFault)
	defer faultSub.Unsubscribe()
	commitSub := conn.Subscribe(topicCommitResult)
	defer commitSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-snapSub.Channel():
			if !ok {
				continue
			}
			if snap, ok := msg.Payload.(*kernel.Snapshot); ok {
				s.observeSnapshot(snap)
			}

		case msg, ok := <-faultSub.Channel():
			if !ok {
				continue
			}
			if rec, ok := msg.Payload.(kernel.FaultRecord); ok {
				s.observeFault(rec)
			}

		case msg, ok := <-commitSub.Channel():
			if !ok {
				continue
			}
			if ev, ok := msg.Payload.(kernel.CommitResultEvent); ok {
				commitTotal.WithLabelValues(statusLabel(ev.Status)).Inc()
			}
		}
	}
}

func (s *Service) observeSnapshot(snap *kernel.Snapshot) {
	snapshotRevision.Set(float64(snap.Revision))
	if s.lastTimestampMs != 0 && snap.TimestampMs >= s.lastTimestampMs {
		scanDurationUs.Observe(float64(snap.TimestampMs-s.lastTimestampMs) * 1000)
	}
	s.lastTimestampMs = snap.TimestampMs
}

func (s *Service) observeFault(rec kernel.FaultRecord) {
	faultTotal.WithLabelValues(string(rec.Kind)).Inc()
	if rec.Kind == kernel.FaultScanOverrun {
		scanOverrunsTotal.Inc()
	}
}

func statusLabel(st kernel.CommandStatus) string {
	if st == kernel.StatusSuccess {
		return "success"
	}
	return "failure"
}

// Start the metrics service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
