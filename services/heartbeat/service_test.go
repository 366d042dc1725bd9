package heartbeat

import (
	"context"
	"testing"
	"time"

	"advancedtimer/bus"
	"advancedtimer/kernel"
	svcconfig "advancedtimer/services/config"
)

func TestApplyConfig_UpdatesPeriodAndThreshold(t *testing.T) {
	s := New()
	tick := time.NewTicker(time.Hour)
	defer tick.Stop()

	s.applyConfig(svcconfig.WatchdogSettings{PeriodMs: 250, OverrunThreshold: 3}, tick)
	if s.periodMs != 250 || s.threshold != 3 {
		t.Fatalf("expected period=250 threshold=3, got period=%d threshold=%d", s.periodMs, s.threshold)
	}
}

func TestApplyConfig_ZeroFieldsLeaveDefaultsUnchanged(t *testing.T) {
	s := New()
	tick := time.NewTicker(time.Hour)
	defer tick.Stop()

	s.applyConfig(svcconfig.WatchdogSettings{}, tick)
	if s.periodMs != 1000 || s.threshold != 5 {
		t.Fatalf("expected defaults to survive a zero-valued config, got period=%d threshold=%d", s.periodMs, s.threshold)
	}
}

func TestObserveFault_NonOverrunResetsCounter(t *testing.T) {
	s := New()
	s.overruns = 4
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	s.observeFault(conn, kernel.FaultRecord{Kind: kernel.FaultIOError})
	if s.overruns != 0 {
		t.Fatalf("expected a non-overrun fault to reset the counter, got %d", s.overruns)
	}
}

func TestObserveFault_EscalatesPastThreshold(t *testing.T) {
	s := New()
	s.threshold = 2
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(topicEscalate)

	s.observeFault(conn, kernel.FaultRecord{Kind: kernel.FaultScanOverrun})
	s.observeFault(conn, kernel.FaultRecord{Kind: kernel.FaultScanOverrun})
	s.observeFault(conn, kernel.FaultRecord{Kind: kernel.FaultScanOverrun}) // 3rd > threshold(2)

	select {
	case msg := <-sub.Channel():
		ev, ok := msg.Payload.(EscalateEvent)
		if !ok || ev.ConsecutiveOverruns != 3 {
			t.Fatalf("unexpected escalate payload: %+v", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an escalate event once consecutive overruns exceed the threshold")
	}
}

func TestService_StartPublishesLiveness(t *testing.T) {
	s := New()
	s.periodMs = 10
	b := bus.NewBus(4)
	conn := b.NewConnection("kernel")
	subConn := b.NewConnection("observer")
	sub := subConn.Subscribe(topicLiveness)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sub.Channel():
	case <-time.After(time.Second):
		t.Fatal("expected at least one liveness tick within the timeout")
	}
}
