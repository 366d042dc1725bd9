package kernel

import "time"

// RTCRetriggerPolicy resolves the spec's open question D-SCH-002. This
// kernel adopts IGNORE_WHILE_ACTIVE: a schedule match that recurs while
// the previous trigger's window is still active has no effect.
type RTCRetriggerPolicy uint8

const (
	RetriggerIgnoreWhileActive RTCRetriggerPolicy = iota
	RetriggerRestartWindow
	RetriggerExtendWindow
)

// DefaultRTCRetriggerPolicy is the conservative default named in §9 and
// adopted by D-SCH-002 (see SPEC_FULL.md §9.1).
const DefaultRTCRetriggerPolicy = RetriggerIgnoreWhileActive

// evalRTC runs one scan of the RTC evaluator (§4.7). nowEpochSec and sync
// come from the TimeSource adapter's wall clock; an unsynced or invalid
// clock forces LogicalState false and is reported by the caller as a
// time-source fault.
func evalRTC(c *Card, nowEpochSec uint64, sync SyncState, policy RTCRetriggerPolicy) (fault bool) {
	cfg, rt := c.RTC, c.RTCRun

	if sync != ClockSynced {
		rt.LogicalState = false
		return true
	}

	nowMs := nowEpochSec * 1000
	t := time.Unix(int64(nowEpochSec), 0).UTC()

	active := nowMs < rt.activeUntilMs
	matched := scheduleMatches(cfg.Schedule, t)

	if matched && !active {
		rt.LogicalState = true
		rt.activeUntilMs = nowMs + uint64(cfg.TriggerDuration)
		rt.everFired = true
	} else if matched && active {
		switch policy {
		case RetriggerRestartWindow:
			rt.activeUntilMs = nowMs + uint64(cfg.TriggerDuration)
		case RetriggerExtendWindow:
			rt.activeUntilMs += uint64(cfg.TriggerDuration)
		case RetriggerIgnoreWhileActive:
			// no-op: window runs to its original expiry
		}
	}

	rt.LogicalState = nowMs < rt.activeUntilMs
	rt.TimeUntilNextStartSec, rt.TimeUntilNextEndSec = scheduleCountdown(cfg.Schedule, t, rt)
	return false
}

// scheduleMatches reports whether every non-wildcard field of s matches
// the wall-clock instant t. Calendar bounds follow D-SCH-001: month
// 1..12, day 1..31, hour 0..23, minute 0..59, second 0..59, weekday 1..7
// (ISO-8601, 1=Monday).
func scheduleMatches(s RTCSchedule, t time.Time) bool {
	if s.Year != nil && uint32(t.Year()) != *s.Year {
		return false
	}
	if s.Month != nil && uint8(t.Month()) != *s.Month {
		return false
	}
	if s.Day != nil && uint8(t.Day()) != *s.Day {
		return false
	}
	if uint8(t.Hour()) != s.Hour {
		return false
	}
	if uint8(t.Minute()) != s.Minute {
		return false
	}
	if uint8(t.Second()) != s.Second {
		return false
	}
	if s.Weekday != nil {
		wd := isoWeekday(t.Weekday())
		if wd != *s.Weekday {
			return false
		}
	}
	return true
}

func isoWeekday(wd time.Weekday) uint8 {
	if wd == time.Sunday {
		return 7
	}
	return uint8(wd)
}

// scheduleCountdown estimates seconds until the next matching instant and
// until the current active window (if any) ends. This deliberately does
// not search candidate instants one second at a time on the scan path
// (that would turn every RTC card into an O(seconds-until-match) scan
// cost); instead it computes the next hour:minute:second occurrence
// analytically and reports it as-is. When year/month/day/weekday filters
// are also set, the reported countdown is a lower-bound estimate (the
// true next match may fall on a later day than the next clock-time
// occurrence); LogicalState correctness at the actual trigger instant is
// unaffected since triggering itself is decided by scheduleMatches every
// scan, not by this countdown.
func scheduleCountdown(s RTCSchedule, now time.Time, rt *RTCRuntime) (untilStartSec, untilEndSec uint32) {
	nowMs := uint64(now.Unix()) * 1000
	if nowMs < rt.activeUntilMs {
		untilEndSec = uint32((rt.activeUntilMs - nowMs) / 1000)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), int(s.Hour), int(s.Minute), int(s.Second), 0, time.UTC)
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	untilStartSec = uint32(target.Sub(now).Seconds())
	return untilStartSec, untilEndSec
}
