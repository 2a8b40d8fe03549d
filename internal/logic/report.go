package logic

import "time"

// Reporter decides when counter reports and heartbeats are due.
// It is not safe for concurrent use; the report loop owns it.
type Reporter struct {
	startTime     time.Time
	lastHeartbeat time.Time
	last          Counters
	reported      bool
	reports       int
}

// NewReporter creates a Reporter. The startTime is used for calculating
// uptime in heartbeat events.
func NewReporter(startTime time.Time) *Reporter {
	return &Reporter{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Changed reports whether counters differ from the last report.
// Before the first report it always returns true.
func (r *Reporter) Changed(c Counters) bool {
	return !r.reported || c != r.last
}

// Report builds a report from a decoder snapshot and records it as the
// latest. Deltas are relative to the previous report (or zero on the first).
func (r *Reporter) Report(snap Snapshot, now time.Time) CounterReport {
	rep := CounterReport{
		Timestamp:  now,
		Iterations: snap.Iterations,
		Counters:   snap.Counters,
	}
	if r.reported {
		rep.Deltas = snap.Counters.Sub(r.last)
	}
	r.last = snap.Counters
	r.reported = true
	r.reports++
	return rep
}

// Reports returns the number of reports built since startup.
func (r *Reporter) Reports() int {
	return r.reports
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (r *Reporter) CheckHeartbeat(now time.Time, interval time.Duration, iterations uint64) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(r.lastHeartbeat) < interval {
		return nil
	}

	r.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp:  now,
		Uptime:     now.Sub(r.startTime),
		Iterations: iterations,
		Reports:    r.reports,
	}
}
