// Package heartbeat implements the kernel's liveness and watchdog
// escalation service: a periodic liveness tick plus a counter of
// consecutive SCAN_OVERRUN faults that, past a configured threshold,
// raises kernel/watchdog/escalate for the platform adapter to act on.
package heartbeat

import (
	"context"
	"time"

	"advancedtimer/bus"
	"advancedtimer/kernel"
	svcconfig "advancedtimer/services/config"
	"advancedtimer/x/klog"
)

var (
	topicConfigWatchdog = bus.T("config", "watchdog")
	topicFault           = bus.T("kernel", "fault")
	topicLiveness        = bus.T("kernel", "watchdog", "liveness")
	topicEscalate        = bus.T("kernel", "watchdog", "escalate")
)

// EscalateEvent is published on kernel/watchdog/escalate once
// consecutive SCAN_OVERRUN faults exceed the configured threshold.
type EscalateEvent struct {
	ConsecutiveOverruns uint32
	Threshold            uint32
}

// Service is the watchdog/heartbeat service.
type Service struct {
	Logger *klog.Logger

	periodMs  uint32
	threshold uint32
	overruns  uint32
}

func New() *Service {
	return &Service{periodMs: 1000, threshold: 5}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigWatchdog)
	defer cfgSub.Unsubscribe()
	faultSub := conn.Subscribe(topicFault)
	defer faultSub.Unsubscribe()

	tick := time.NewTicker(time.Duration(s.periodMs) * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.Logger != nil {
				s.Logger.Info("watchdog service stopping")
			}
			return

		case <-tick.C:
			conn.Publish(conn.NewMessage(topicLiveness, time.Now().Unix(), true))

		case msg, ok := <-cfgSub.Channel():
			if !ok {
				continue
			}
			if w, ok := msg.Payload.(svcconfig.WatchdogSettings); ok {
				s.applyConfig(w, tick)
			}

		case msg, ok := <-faultSub.Channel():
			if !ok {
				continue
			}
			rec, ok := msg.Payload.(kernel.FaultRecord)
			if !ok {
				continue
			}
			s.observeFault(conn, rec)
		}
	}
}

func (s *Service) applyConfig(w svcconfig.WatchdogSettings, tick *time.Ticker) {
	if w.PeriodMs > 0 {
		s.periodMs = w.PeriodMs
		tick.Reset(time.Duration(s.periodMs) * time.Millisecond)
	}
	if w.OverrunThreshold > 0 {
		s.threshold = w.OverrunThreshold
	}
	if s.Logger != nil {
		s.Logger.Info("watchdog config applied", "period_ms", s.periodMs, "threshold", s.threshold)
	}
}

func (s *Service) observeFault(conn *bus.Connection, rec kernel.FaultRecord) {
	if rec.Kind != kernel.FaultScanOverrun {
		s.overruns = 0
		return
	}
	s.overruns++
	if s.overruns > s.threshold {
		if s.Logger != nil {
			s.Logger.Warn("watchdog escalation", "consecutive_overruns", s.overruns, "threshold", s.threshold)
		}
		conn.Publish(conn.NewMessage(topicEscalate, EscalateEvent{ConsecutiveOverruns: s.overruns, Threshold: s.threshold}, false))
	}
}

// Start the watchdog service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
